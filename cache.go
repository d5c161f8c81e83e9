package cmsengine

import (
	"context"
	"sync"
	"time"
)

// ListCache is an in-memory cache of list results with TTL, keyed by the
// query that produced them. A zero TTL disables caching.
type ListCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	ttl     time.Duration
}

type cacheEntry[T any] struct {
	items   []T
	fetched time.Time
}

// NewListCache creates a ListCache whose entries live for ttl.
func NewListCache[T any](ttl time.Duration) *ListCache[T] {
	return &ListCache[T]{entries: make(map[string]cacheEntry[T]), ttl: ttl}
}

func (c *ListCache[T]) valid(e cacheEntry[T], ok bool) bool {
	return ok && time.Since(e.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ListCache[T]) Invalidate() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Get returns the cached result for key, calling load on a miss. Callers
// must not modify the returned slice.
func (c *ListCache[T]) Get(ctx context.Context, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if c.ttl <= 0 {
		return load(ctx)
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if c.valid(e, ok) {
		return e.items, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; c.valid(e, ok) {
		return e.items, nil
	}
	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.entries[key] = cacheEntry[T]{items: items, fetched: time.Now()}
	return items, nil
}
