package certstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/skillgate/internal/certstore"
	"golang.org/x/sync/errgroup"
)

func TestMemoryCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c := certstore.NewMemoryCache(0)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	pem := []byte("-----BEGIN CERTIFICATE-----")
	require.NoError(t, c.Put(ctx, "k", pem))
	pem[0] = 'X'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "-----BEGIN CERTIFICATE-----", string(got))

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := certstore.NewMemoryCache(2)

	require.NoError(t, c.Put(ctx, "a", []byte("a")))
	require.NoError(t, c.Put(ctx, "b", []byte("b")))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Put(ctx, "c", []byte("c")))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := certstore.NewMemoryCache(8)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		key := fmt.Sprintf("key-%d", i%4)
		g.Go(func() error {
			if err := c.Put(ctx, key, []byte(key)); err != nil {
				return err
			}
			v, ok, err := c.Get(ctx, key)
			if err != nil {
				return err
			}
			if ok && string(v) != key {
				return fmt.Errorf("corrupted entry %q: %q", key, v)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 4, c.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	backend, closeFn, err := certstore.Open(ctx, certstore.Options{Kind: "memory", MaxEntries: 4})
	require.NoError(t, err)
	assert.IsType(t, &certstore.MemoryCache{}, backend)
	assert.NoError(t, closeFn())

	_, _, err = certstore.Open(ctx, certstore.Options{Kind: "postgres"})
	assert.Error(t, err)

	_, _, err = certstore.Open(ctx, certstore.Options{Kind: "memcached"})
	assert.Error(t, err)
}
