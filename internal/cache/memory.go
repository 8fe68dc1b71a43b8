package cache

import (
	"context"
	"sync"
	"time"

	"MexcPulse/internal/model"
)

type memoryItem struct {
	snap     model.Snapshot
	expireAt time.Time
}

// MemoryCache implements SnapshotCache in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates an in-memory cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &MemoryCache{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) Put(_ context.Context, snap model.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[snap.Symbol] = memoryItem{snap: snap, expireAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, symbol string) (model.Snapshot, error) {
	c.mu.RLock()
	item, ok := c.items[symbol]
	c.mu.RUnlock()
	if !ok || c.now().After(item.expireAt) {
		return model.Snapshot{}, ErrCacheMiss
	}
	return item.snap, nil
}

func (c *MemoryCache) Purge(_ context.Context) (int, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, item := range c.items {
		if now.After(item.expireAt) {
			delete(c.items, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) Close() error { return nil }
