package certstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/skillgate/internal/platform/database"
)

// PostgresCache persists certificate PEM bytes in the certificate_cache table.
type PostgresCache struct {
	db  database.Querier
	ttl time.Duration
	now func() time.Time
}

// NewPostgresCache creates a cache over db. Entries older than ttl are
// treated as misses; a zero ttl never expires them.
func NewPostgresCache(db database.Querier, ttl time.Duration) *PostgresCache {
	return &PostgresCache{db: db, ttl: ttl, now: time.Now}
}

func (p *PostgresCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		pem       []byte
		fetchedAt time.Time
	)
	err := p.db.QueryRow(ctx,
		`SELECT pem, fetched_at FROM certificate_cache WHERE cache_key = $1`,
		key,
	).Scan(&pem, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying certificate cache: %w", err)
	}
	if p.ttl > 0 && p.now().Sub(fetchedAt) > p.ttl {
		return nil, false, nil
	}
	return pem, true, nil
}

func (p *PostgresCache) Put(ctx context.Context, key string, pem []byte) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO certificate_cache (cache_key, pem, fetched_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET pem = EXCLUDED.pem, fetched_at = EXCLUDED.fetched_at`,
		key, pem, p.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting certificate cache: %w", err)
	}
	return nil
}

func (p *PostgresCache) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM certificate_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("deleting certificate cache entry: %w", err)
	}
	return nil
}
