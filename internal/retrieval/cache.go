package retrieval

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 50
)

// CacheObserver is notified of cache lookups. telemetry.Metrics implements it.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// CacheConfig configures a ContextCache.
type CacheConfig struct {
	TTL        time.Duration // Entries older than this are stale (default 5m)
	MaxEntries int           // Oldest-inserted entry is evicted beyond this (default 50)
	KeyPrefix  int           // Normalized query runes kept in the key (default 100)
	Observer   CacheObserver
	Now        func() time.Time
}

type cacheEntry struct {
	value     HybridContext
	createdAt time.Time
}

// ContextCache memoizes HybridContext values per user and normalized query.
// Values are copied in and out, so callers may modify what they receive.
// Eviction is insertion-ordered (FIFO). Reads run concurrently; inserts and
// evictions are serialized.
type ContextCache struct {
	cfg CacheConfig

	mu      sync.RWMutex
	entries map[string]cacheEntry
	order   []string // Keys, oldest insertion first

	flight singleflight.Group
}

// NewContextCache creates an empty cache.
func NewContextCache(cfg CacheConfig) *ContextCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.KeyPrefix <= 0 {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ContextCache{
		cfg:     cfg,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the fresh cached context for the query, if present.
func (c *ContextCache) Get(userID, query string) (HybridContext, bool) {
	return c.lookup(CacheKey(userID, query, c.cfg.KeyPrefix))
}

func (c *ContextCache) lookup(key string) (HybridContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.cfg.Now().Sub(e.createdAt) > c.cfg.TTL {
		return HybridContext{}, false
	}
	return e.value.clone(), true
}

// GetOrCompute returns the cached context for the query or calls compute
// and stores its result. Concurrent misses on the same key share a single
// compute call. Errors are returned and not cached.
func (c *ContextCache) GetOrCompute(ctx context.Context, userID, query string, compute func(context.Context) (HybridContext, error)) (HybridContext, error) {
	key := CacheKey(userID, query, c.cfg.KeyPrefix)
	if v, ok := c.lookup(key); ok {
		c.observe(true)
		return v, nil
	}
	c.observe(false)

	v, err, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return HybridContext{}, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		return HybridContext{}, err
	}
	return v.(HybridContext).clone(), nil
}

// store inserts a copy of value under key. A stale entry for the key is
// dropped first, so the new value takes the newest position in the eviction
// order.
func (c *ContextCache) store(key string, value HybridContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	}
	c.entries[key] = cacheEntry{value: value.clone(), createdAt: c.cfg.Now()}
	c.order = append(c.order, key)

	for len(c.order) > c.cfg.MaxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *ContextCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of entries, including stale ones not yet replaced.
func (c *ContextCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge removes every entry.
func (c *ContextCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

func (c *ContextCache) observe(hit bool) {
	if c.cfg.Observer == nil {
		return
	}
	if hit {
		c.cfg.Observer.CacheHit()
	} else {
		c.cfg.Observer.CacheMiss()
	}
}
