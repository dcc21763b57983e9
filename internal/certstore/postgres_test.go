package certstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDB implements database.Querier for a single-row cache table.
type mockDB struct {
	pem       []byte
	fetchedAt time.Time
	found     bool
	err       error
	lastSQL   string
	lastArgs  []any
}

type mockRow struct {
	db *mockDB
}

func (r mockRow) Scan(dest ...any) error {
	if r.db.err != nil {
		return r.db.err
	}
	if !r.db.found {
		return pgx.ErrNoRows
	}
	*dest[0].(*[]byte) = r.db.pem
	*dest[1].(*time.Time) = r.db.fetchedAt
	return nil
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.lastSQL = sql
	m.lastArgs = args
	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL = sql
	m.lastArgs = args
	return mockRow{db: m}
}

func TestPostgresCache_Miss(t *testing.T) {
	db := &mockDB{}
	c := NewPostgresCache(db, 0)

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []any{"k"}, db.lastArgs)
}

func TestPostgresCache_Hit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &mockDB{pem: []byte("pem"), fetchedAt: now.Add(-time.Hour), found: true}
	c := NewPostgresCache(db, 0)
	c.now = func() time.Time { return now }

	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("pem"), got)
}

func TestPostgresCache_StaleEntryIsMiss(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &mockDB{pem: []byte("pem"), fetchedAt: now.Add(-2 * time.Hour), found: true}
	c := NewPostgresCache(db, time.Hour)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresCache_Put(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &mockDB{}
	c := NewPostgresCache(db, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put(context.Background(), "k", []byte("pem")))
	assert.Contains(t, db.lastSQL, "ON CONFLICT (cache_key) DO UPDATE")
	assert.Equal(t, []any{"k", []byte("pem"), now}, db.lastArgs)
}

func TestPostgresCache_Errors(t *testing.T) {
	db := &mockDB{err: errors.New("connection reset")}
	c := NewPostgresCache(db, 0)

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, c.Put(context.Background(), "k", []byte("pem")))
	assert.Error(t, c.Delete(context.Background(), "k"))
}
