package skillauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// CertificateCache stores raw PEM bytes by key. Implementations must be safe
// for concurrent use; concurrent Puts for one key may race, last write wins.
type CertificateCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, pem []byte) error
}

// Fetcher retrieves the bytes behind an already validated certificate URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CacheKey derives the cache key for a normalized certificate URL.
func CacheKey(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

type retriever struct {
	cache   CertificateCache
	fetcher Fetcher
	group   singleflight.Group
}

// retrieve returns cached PEM for url or fetches and stores it. Concurrent
// misses for one key share a single fetch.
func (r *retriever) retrieve(ctx context.Context, normalizedURL string) ([]byte, error) {
	key := CacheKey(normalizedURL)

	if r.cache != nil {
		pemBytes, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, key, err)
		}
		if ok {
			return pemBytes, nil
		}
	}

	// The shared fetch is detached from any one caller so a cancelled
	// request cannot fail the others waiting on the same key. The fetcher's
	// own timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetchAndStore(fetchCtx, key, normalizedURL)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCertificateUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (r *retriever) fetchAndStore(ctx context.Context, key, normalizedURL string) ([]byte, error) {
	if r.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", ErrCertificateUnavailable)
	}
	pemBytes, err := r.fetcher.Fetch(ctx, normalizedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateUnavailable, err)
	}
	if len(pemBytes) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrCertificateUnavailable)
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, key, pemBytes); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", ErrIO, key, err)
		}
	}
	return pemBytes, nil
}
