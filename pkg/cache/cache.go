// Package cache provides a two-tier (in-process + Redis) read-through
// cache for the engine's more expensive read paths, namely risk
// dashboards recomputed from a plan's full schedule item set.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Cache fronts a Redis instance with a small in-process map so a hot
// key (the currently-open plan's risk dashboard) doesn't round-trip to
// Redis on every poll from the UI.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration

	mu    sync.RWMutex
	local map[string]entry
}

// New connects to addr and returns a Cache whose entries expire after
// ttl. ttl defaults to 30 seconds when zero or negative.
func New(addr string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		redis: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:   ttl,
		local: make(map[string]entry),
	}
}

// Get returns the cached bytes for key, checking the in-process map
// before falling back to Redis. The second return value is false on a
// miss in both tiers.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	if e, ok := c.local[key]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.value, true
	}
	c.mu.RUnlock()

	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	c.mu.Lock()
	c.local[key] = entry{value: val, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return val, true
}

// Set writes value to both tiers under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.local[key] = entry{value: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return c.redis.Set(ctx, key, value, c.ttl).Err()
}

// Invalidate drops key from both tiers, used whenever the underlying
// plan is mutated (scheduled, risk-repaired, undone, redone).
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()

	return c.redis.Del(ctx, key).Err()
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.redis.Close()
}
