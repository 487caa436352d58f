package cache

import (
	"strings"
	"sync"
	"time"
)

// ResultCache is a short-TTL cache for analysis results, keyed by
// symbol/kind/params. It sits outside the indicator pipelines: the
// pipelines stay pure functions of the snapshot, and callers decide
// whether a cached result is fresh enough.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

func New(ttl time.Duration) *ResultCache {
	return &ResultCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key builds the composite cache key.
func Key(symbol, kind string, params ...string) string {
	parts := append([]string{symbol, kind}, params...)
	return strings.Join(parts, "/")
}

// Get returns the cached value when present and unexpired.
func (c *ResultCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache TTL.
func (c *ResultCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Reset clears entries, optionally only those for one symbol.
// Returns the number of entries removed.
func (c *ResultCache) Reset(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if symbol == "" {
		count := len(c.entries)
		c.entries = make(map[string]entry)
		return count
	}

	prefix := symbol + "/"
	count := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			count++
		}
	}
	return count
}

// Sweep drops expired entries; callers run it periodically to bound memory.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			count++
		}
	}
	return count
}

// Len returns the number of stored entries, expired or not.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
