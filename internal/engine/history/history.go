// Package history records pipeline outcomes in SQLite or Postgres.
package history

import (
	"context"
	"embed"
	"strings"
	"time"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Entry is one pipeline run, successful or not.
type Entry struct {
	ID         int64     `json:"id"`
	Input      string    `json:"input"`
	VideoID    string    `json:"video_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Source     string    `json:"source,omitempty"`
	TextLength int       `json:"text_length"`
	Summarized bool      `json:"summarized"`
	Miss       string    `json:"miss,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open returns a Postgres store when databaseURL is set, SQLite at sqlitePath otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		s, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := OpenSQLite(sqlitePath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}

func schema(name string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
