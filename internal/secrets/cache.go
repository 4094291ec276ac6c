package secrets

import (
	"sync"
	"time"
)

// cacheEntry is a cached secret value with its expiration time.
type cacheEntry struct {
	value      string
	expiration time.Time
}

func (e cacheEntry) expired() bool {
	return time.Now().After(e.expiration)
}

// ttlCache is a small thread-safe TTL cache for resolved secret values.
// Expired entries are dropped on access.
type ttlCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration

	mu sync.Mutex
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *ttlCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return "", false
	}
	if entry.expired() {
		delete(c.entries, key)
		return "", false
	}

	return entry.value, true
}

func (c *ttlCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}
