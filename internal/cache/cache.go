// Package cache provides an in-memory key-value store with per-entry
// expiration.
// It is used to reduce GitHub API requests for data that tolerates
// staleness, like pull request details and repository metadata.
package cache

import (
	"sync"
	"time"
)

// Default lifetimes for the data classes stored by the pollers.
const (
	TTLPRDetail   = 5 * time.Minute
	TTLRepository = 10 * time.Minute
	TTLBotDetect  = 30 * time.Minute
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Stats are cumulative counters of cache effectiveness.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the fraction of lookups served from the cache.
// It returns 0 when no lookups happened yet.
func (s *Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Cache is a concurrency-safe map with per-entry time-to-live.
// Expired entries are treated as absent on lookup and reaped periodically
// by a background janitor.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	stats   Stats

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a cache and starts its janitor goroutine.
// The janitor removes expired entries every cleanupInterval.
// Stop must be called to terminate the janitor.
func New[K comparable, V any](cleanupInterval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:  map[K]entry[V]{},
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	go c.janitor(cleanupInterval)

	return c
}

// Get returns the value stored for key.
// The second return value is false when the key is absent or its entry
// expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists {
		c.stats.Misses++

		var zero V
		return zero, false
	}

	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.stats.Misses++
		c.stats.Evictions++

		var zero V
		return zero, false
	}

	c.stats.Hits++

	return e.value, true
}

// Set stores value under key with the given lifetime.
// An existing entry for the key is replaced.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes the entry for key, if one exists.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// CleanupExpired removes all expired entries and returns how many were
// removed.
func (c *Cache[K, V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	c.stats.Evictions += uint64(removed)

	return removed
}

// Len returns the number of stored entries, including not yet reaped
// expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Stop terminates the janitor goroutine and blocks until it exited.
// It can be called multiple times.
func (c *Cache[K, V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	<-c.doneChan
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	defer close(c.doneChan)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-c.stopChan:
			return
		}
	}
}
