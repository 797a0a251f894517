package cache

import (
	"sync"
	"time"

	"tilegate/internal/metrics"
)

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// MemoryCache is the in-process tile cache. Entries older than the TTL are
// reported as misses but stay resident until a capacity eviction or an
// overwrite removes them.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	items   map[TileKey]*memoryEntry
	metrics *metrics.Metrics
}

func NewMemoryCache(maxSize int, ttl time.Duration, m *metrics.Metrics) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		maxSize: maxSize,
		items:   make(map[TileKey]*memoryEntry),
		metrics: m,
	}
}

func (c *MemoryCache) Get(key TileKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Since(ent.storedAt) >= c.ttl {
		// Stale entries count as misses but are not deleted here.
		return nil, false
	}
	return ent.data, true
}

// Put overwrites the entry for key with a fresh timestamp. When the map
// grows past maxSize, only the single oldest entry is evicted per insert;
// a burst of distinct tiles trims down one entry per subsequent Put.
func (c *MemoryCache) Put(key TileKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &memoryEntry{data: data, storedAt: time.Now()}
	if len(c.items) > c.maxSize {
		c.evictOldest()
	}
}

func (c *MemoryCache) evictOldest() {
	var oldestKey TileKey
	var oldestTime time.Time
	found := false

	for key, ent := range c.items {
		if !found || ent.storedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = ent.storedAt
			found = true
		}
	}

	if found {
		delete(c.items, oldestKey)
		if c.metrics != nil {
			c.metrics.Evictions.Add(1)
		}
	}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
