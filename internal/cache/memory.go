package cache

import (
	"container/list"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements bounded in-memory caching. Expiry is checked on read;
// entries are never swept proactively. Once more than maxEntries are stored
// the oldest-inserted entry is evicted.
type MemoryCache struct {
	cache      *gocache.Cache
	mu         sync.Mutex
	order      *list.List // insertion order, front is oldest
	elements   map[string]*list.Element
	maxEntries int
}

// NewMemoryCache creates a new memory cache. maxEntries <= 0 means unbounded.
func NewMemoryCache(defaultTTL time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		// cleanupInterval 0 disables the janitor
		cache:      gocache.New(defaultTTL, 0),
		order:      list.New(),
		elements:   make(map[string]*list.Element),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a value in the cache with the given TTL (0 uses the default).
// Re-setting a key counts as a fresh insertion.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Set(key, value, ttl)

	if el, ok := c.elements[key]; ok {
		c.order.MoveToBack(el)
	} else {
		c.elements[key] = c.order.PushBack(key)
	}

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		oldestKey := oldest.Value.(string)
		c.order.Remove(oldest)
		delete(c.elements, oldestKey)
		c.cache.Delete(oldestKey)
	}

	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elements[key]; ok {
		c.order.Remove(el)
		delete(c.elements, key)
	}
	c.cache.Delete(key)
	return nil
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.elements = make(map[string]*list.Element)
	c.cache.Flush()
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
