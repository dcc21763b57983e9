// Package certstore provides CertificateCache backends for the signing
// certificate PEM bytes: in-process memory, Redis and Postgres.
package certstore

import (
	"context"
	"sync"
)

// MemoryCache is an in-process cache with least-recently-used eviction once
// maxEntries is reached. A non-positive maxEntries disables eviction.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string][]byte
	order      []string // least recently used first
	maxEntries int
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string][]byte),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the bytes stored under key.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	m.touchLocked(key)
	return append([]byte(nil), v...), true, nil
}

// Put stores a copy of pem under key, replacing any previous value.
func (m *MemoryCache) Put(_ context.Context, key string, pem []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[key] = append([]byte(nil), pem...)
	m.touchLocked(key)
	return nil
}

// Delete removes key. Used for manual purges after certificate rotation.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.removeFromOrderLocked(key)
	return nil
}

// Len reports the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCache) touchLocked(key string) {
	m.removeFromOrderLocked(key)
	m.order = append(m.order, key)
}

func (m *MemoryCache) removeFromOrderLocked(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
