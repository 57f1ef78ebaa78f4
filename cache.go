package modelguard

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type cacheEntry struct {
	key       string
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// ExpiringCache is a size-bounded key/value store with per-entry TTL and LRU
// eviction. A single mutex serializes every operation; misses are a
// first-class absent result, never an error. Safe for concurrent use.
type ExpiringCache struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	hits       int64
	misses     int64
}

// NewExpiringCache creates a cache holding at most maxSize entries. Entries
// set without an explicit TTL expire after defaultTTL.
func NewExpiringCache(maxSize int, defaultTTL time.Duration) *ExpiringCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &ExpiringCache{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the live value for key. Absent covers both unknown keys and
// expired entries; an expired entry is evicted on the spot. A hit marks the
// entry most recently used.
func (c *ExpiringCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set stores value under key. Expired entries are purged first, then
// least-recently-used entries are evicted until the store is strictly below
// capacity, then the entry is inserted as most recently used. A ttl <= 0
// falls back to the default TTL.
func (c *ExpiringCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.purgeExpired(now)

	if elem, exists := c.entries[key]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.createdAt = now
		entry.expiresAt = now.Add(ttl)
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	c.entries[key] = elem
}

// Invalidate removes key and reports whether it was present.
func (c *ExpiringCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		return false
	}
	c.removeElement(elem)
	return true
}

// InvalidatePrefix removes every key beginning with prefix and returns the
// number of entries removed.
func (c *ExpiringCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

// Clear drops every entry but keeps hit/miss counters.
func (c *ExpiringCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the current number of entries, including any not yet observed
// to be expired.
func (c *ExpiringCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of size and hit-rate counters.
func (c *ExpiringCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// purgeExpired removes every entry whose deadline passed. Caller holds c.mu.
func (c *ExpiringCache) purgeExpired(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*cacheEntry).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

// removeElement unlinks an entry from both indexes. Caller holds c.mu.
func (c *ExpiringCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry).key)
}
