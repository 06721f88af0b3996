package prefetch

import (
	"sync"
	"sync/atomic"
	"time"

	"archivesync/pkg/models"
)

// Listing is one cached destination prefix listing.
type Listing struct {
	Prefix   string
	Objects  map[string]models.ObjectInfo // keyed by object key
	CachedAt time.Time
}

// Lookup returns the object info for a key within the listing.
func (l *Listing) Lookup(key string) (models.ObjectInfo, bool) {
	obj, ok := l.Objects[key]
	return obj, ok
}

// Cache holds destination listings keyed by prefix so that repeated runs
// against an unchanged destination avoid re-listing every prefix.
type Cache struct {
	mu      sync.RWMutex
	cache   map[string]*Listing
	ttl     time.Duration
	maxSize int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewCache creates a listing cache with the given TTL and size bound.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Cache{
		cache:   make(map[string]*Listing),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached listing, treating expired entries as misses.
func (c *Cache) Get(prefix string) (*Listing, bool) {
	c.mu.RLock()
	listing, exists := c.cache[prefix]
	c.mu.RUnlock()

	if !exists || time.Since(listing.CachedAt) > c.ttl {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return listing, true
}

// Set stores a prefix listing, evicting the oldest entry when full.
func (c *Cache) Set(prefix string, objects map[string]models.ObjectInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[prefix]; !exists && len(c.cache) >= c.maxSize {
		c.evictOldest()
	}

	c.cache[prefix] = &Listing{
		Prefix:   prefix,
		Objects:  objects,
		CachedAt: time.Now(),
	}
}

// evictOldest removes the oldest entry (LRU-like)
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, listing := range c.cache {
		if oldestKey == "" || listing.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = listing.CachedAt
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
		c.evictions.Add(1)
	}
}

// Invalidate drops one prefix from the cache. Called after writes under
// that prefix so the next run re-lists it.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, prefix)
}

// Clear drops all cached listings.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*Listing)
}

// Stats returns cache statistics
type Stats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	size := len(c.cache)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:      size,
		MaxSize:   c.maxSize,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}
