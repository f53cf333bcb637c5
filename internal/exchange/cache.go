package exchange

import (
	"sync"
	"time"
)

type cacheEntry struct {
	rate      float64
	expiresAt time.Time
}

// rateCache is a process-wide TTL cache keyed by currency pair.
type rateCache struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
	now   func() time.Time
}

func newRateCache(now func() time.Time) *rateCache {
	return &rateCache{items: make(map[string]cacheEntry), now: now}
}

func (c *rateCache) get(key string) (float64, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return 0, false
	}
	return entry.rate, true
}

func (c *rateCache) set(key string, rate float64, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = cacheEntry{rate: rate, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}
