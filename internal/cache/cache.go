// Package cache provides a small generic TTL cache with a bounded size and
// oldest-expiry eviction. It backs the short-lived provider-result caches so
// the eviction policy can change without touching call sites.
package cache

import (
	"sync"
	"time"

	"github.com/pathwise/mri-engine/internal/metrics"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps keys to values with a fixed TTL. Expired entries are treated as
// absent. When the cache grows past maxEntries, the entry closest to expiry
// is evicted. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option applies a configuration option to a Cache.
type Option func(clock *func() time.Time)

// WithClock overrides the cache's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(clock *func() time.Time) {
		if now != nil {
			*clock = now
		}
	}
}

// New creates a cache with the given TTL and maximum entry count. A
// maxEntries of zero or less means unbounded.
func New[K comparable, V any](ttl time.Duration, maxEntries int, opts ...Option) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:    make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&c.now)
	}
	return c
}

// Get returns the cached value for key. An expired entry is removed and
// reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: another writer may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache TTL, evicting the entry with the
// oldest expiry when the bound is exceeded.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}

	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}

	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.expiresAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		metrics.CacheEviction()
	}
}

// Len returns the number of stored entries, including not-yet-purged expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
