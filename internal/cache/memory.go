package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryCache is an in-process cache. Expired entries are never served and are
// removed in the background.
type MemoryCache struct {
	items *ttlcache.Cache[string, []byte]
	once  sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns a cache holding at most capacity entries, evicting the least
// recently used one when full. A zero capacity is unbounded.
func NewMemoryCache(capacity uint64) *MemoryCache {
	opts := []ttlcache.Option[string, []byte]{
		// A hit must not push back the expiry of a cached result.
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []byte](capacity))
	}

	c := &MemoryCache{items: ttlcache.New[string, []byte](opts...)}
	go c.items.Start()
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrCacheMiss
	}
	return clone(item.Value()), nil
}

// Set stores the value. A zero ttl keeps it until it is deleted or evicted.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	c.items.Set(key, clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Len() int {
	return c.items.Len()
}

func (c *MemoryCache) Close() error {
	c.once.Do(c.items.Stop)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
