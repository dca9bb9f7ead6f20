package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a bounded in-process cache. Entries expire after the TTL
// given to NewMemoryCache; the per-call ttl of Set is ignored.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache holds up to size entries, each for at most ttl. A ttl of
// zero keeps entries until they are evicted by size.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := c.lru.Get(key)
	return data, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.lru.Add(key, data)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
