package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, Entry{
		Input:      "https://b23.tv/abc",
		VideoID:    "BV1jv7YzJED2",
		Title:      "Go 并发",
		Source:     "subtitle",
		TextLength: 1234,
		Summarized: true,
		CreatedAt:  at,
	}))
	require.NoError(t, s.Record(ctx, Entry{Input: "hello", Miss: "no bilibili video found"}))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// newest first
	assert.Equal(t, "hello", got[0].Input)
	assert.Equal(t, "no bilibili video found", got[0].Miss)
	assert.False(t, got[0].Summarized)
	assert.False(t, got[0].CreatedAt.IsZero())

	assert.Equal(t, "BV1jv7YzJED2", got[1].VideoID)
	assert.Equal(t, 1234, got[1].TextLength)
	assert.True(t, got[1].Summarized)
	assert.True(t, at.Equal(got[1].CreatedAt))
}

func TestSQLiteRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Entry{Input: fmt.Sprintf("av%d", i)}))
	}

	got, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "av4", got[0].Input)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, clampLimit(0))
	assert.Equal(t, defaultLimit, clampLimit(-1))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxLimit, clampLimit(maxLimit+1))
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "")
	assert.Error(t, err)
}
