package certstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valinor-ai/skillgate/internal/platform/database"
	"github.com/valinor-ai/skillgate/internal/skillauth"
)

// Backend is a certificate cache that also supports manual purges.
type Backend interface {
	skillauth.CertificateCache
	Delete(ctx context.Context, key string) error
}

// Options selects and configures a Backend.
type Options struct {
	Kind       string // memory, redis or postgres
	MaxEntries int
	TTL        time.Duration
	Redis      RedisConfig
	DB         database.Querier
}

// Open builds the backend named by opts.Kind. The returned close function
// releases any connection the backend opened; it is never nil.
func Open(ctx context.Context, opts Options) (Backend, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "memory":
		return NewMemoryCache(opts.MaxEntries), noop, nil
	case "redis":
		client, err := NewRedisClient(ctx, opts.Redis)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisCache(client, opts.TTL), client.Close, nil
	case "postgres":
		if opts.DB == nil {
			return nil, noop, fmt.Errorf("postgres certificate cache requires a database connection")
		}
		return NewPostgresCache(opts.DB, opts.TTL), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown certificate cache backend %q", opts.Kind)
	}
}
