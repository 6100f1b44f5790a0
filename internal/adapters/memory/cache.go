package memory

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Cache is a map-backed key/value cache. Expiry is not modelled.
type Cache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewCache() *Cache {
	return &Cache{values: map[string][]byte{}}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *Cache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.values[key]), 10, 64)
	n++
	c.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

func (c *Cache) Hit(ctx context.Context, key string, _ time.Duration) (int64, error) {
	return c.Incr(ctx, key)
}
