package cache

import (
	"context"
	"sync"
	"time"

	"threadlens/internal/logging"
)

// MemoryCache is the in-process cache backend, used by tests and
// single-shot runs. No size bound: eviction policy is out of the cache
// contract.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get returns the entry for key, treating expired entries as absent and
// evicting them opportunistically.
func (c *MemoryCache) Get(_ context.Context, key Key) (*Entry, bool, error) {
	k := key.String()

	c.mu.RLock()
	entry, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if entry.Expired(time.Now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[k]; ok && cur.Expired(time.Now()) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		logging.CacheDebug("expired entry evicted: %s", k)
		return nil, false, nil
	}

	return &entry, true, nil
}

// Set upserts the entry.
func (c *MemoryCache) Set(_ context.Context, entry Entry) error {
	c.mu.Lock()
	c.entries[entry.Key.String()] = entry
	c.mu.Unlock()
	return nil
}

// Len reports the live entry count (expired entries may still be
// counted until their next read).
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close is a no-op for the memory backend.
func (c *MemoryCache) Close() error { return nil }
