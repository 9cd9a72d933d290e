package hubstaff

import (
	"sync"
	"time"
)

// ttlCache is a bounded cache with per-entry expiry, used for user-name
// and task-detail lookups so the same metadata is not refetched on every
// poll cycle. When full, the oldest entry is evicted.
type ttlCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[K]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

func newTTLCache[K comparable, V any](ttl time.Duration, max int) *ttlCache[K, V] {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if max <= 0 {
		max = 1024
	}
	return &ttlCache[K, V]{
		ttl:     ttl,
		max:     max,
		entries: make(map[K]cacheEntry[V]),
	}
}

func (c *ttlCache[K, V]) get(key K) (V, bool) {
	return c.getAt(key, time.Now())
}

func (c *ttlCache[K, V]) getAt(key K, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || now.Sub(entry.storedAt) > c.ttl {
		if ok {
			delete(c.entries, key)
		}
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[K, V]) put(key K, value V) {
	c.putAt(key, value, time.Now())
}

func (c *ttlCache[K, V]) putAt(key K, value V, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.max {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry[V]{value: value, storedAt: now}
}

// evictLocked drops expired entries, then the oldest entry if still full.
// Must be called with the mutex held.
func (c *ttlCache[K, V]) evictLocked(now time.Time) {
	var oldestKey K
	var oldestAt time.Time
	first := true

	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			continue
		}
		if first || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
			first = false
		}
	}

	if len(c.entries) >= c.max && !first {
		delete(c.entries, oldestKey)
	}
}

func (c *ttlCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
