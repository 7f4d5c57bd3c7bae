package catalog

import (
	"context"
	"sync"
)

// Cache stores resolved references keyed by the code that resolved them.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, code string) (ProductReference, bool)
	Put(ctx context.Context, code string, ref ProductReference)
}

// MemoryCache is an append-only in-process cache. There is no eviction:
// catalog price changes stay invisible until the cache (or its Resolver)
// is rebuilt, so long-running callers should build one per batch.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]ProductReference
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]ProductReference)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, code string) (ProductReference, bool) {
	c.mu.RLock()
	ref, ok := c.items[code]
	c.mu.RUnlock()
	if !ok {
		return ProductReference{}, false
	}
	return ref.Clone(), true
}

// Put implements Cache. The first value stored for a code wins; concurrent
// writers of the same code would store the same reference anyway.
func (c *MemoryCache) Put(_ context.Context, code string, ref ProductReference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[code]; exists {
		return
	}
	c.items[code] = ref.Clone()
}

// Len returns the number of cached codes.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

var _ Cache = (*MemoryCache)(nil)
