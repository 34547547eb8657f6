package profile

import (
	"context"
	"sync"
)

// MemoryCache is the default single-process cache: append-only,
// idempotently overwritable entries.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]Profile
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]Profile)}
}

func (c *MemoryCache) Get(_ context.Context, id string) (Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.m[id]
	return p, ok
}

func (c *MemoryCache) Set(_ context.Context, p Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[p.ID] = p
}
