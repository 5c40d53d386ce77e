package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath is used when HISTORY_DB_PATH is unset.
func DefaultSQLitePath() string {
	return filepath.Join(os.Getenv("HOME"), ".go_bilisum", "history.db")
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	ddl, err := schema("sqlite.sql")
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	summarized := 0
	if e.Summarized {
		summarized = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (input, video_id, title, source, text_length, summarized, miss, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Input, e.VideoID, e.Title, e.Source, e.TextLength, summarized, e.Miss,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, video_id, title, source, text_length, summarized, miss, created_at
		 FROM runs ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			summarized int
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.Input, &e.VideoID, &e.Title, &e.Source,
			&e.TextLength, &summarized, &e.Miss, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Summarized = summarized != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
