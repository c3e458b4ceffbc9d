// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/ReviewForge/internal/port/cache"
)

// Cache combines an in-process L1 with a shared L2.
// Get checks L1 first, then L2, backfilling L1 on an L2 hit.
// Set and Delete operate on both levels.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache. l1Expire caps the L1 lifetime of every entry,
// so instances sharing an L2 converge after a delete elsewhere.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("l1 get: %w", err)
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("l2 get: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	_ = c.l1.Set(ctx, key, val, c.l1TTL(0))
	return val, true, nil
}

// Set writes to L1, then L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1TTL(ttl)); err != nil {
		return fmt.Errorf("l1 set: %w", err)
	}
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("l2 set: %w", err)
	}
	return nil
}

// Delete removes from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return fmt.Errorf("l1 delete: %w", err)
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		return fmt.Errorf("l2 delete: %w", err)
	}
	return nil
}

func (c *Cache) l1TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || (c.l1Expire > 0 && ttl > c.l1Expire) {
		return c.l1Expire
	}
	return ttl
}

var _ cache.Cache = (*Cache)(nil)
