// Package cache defines the port interface for the run result cache.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache. Get reports a miss with found == false.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RunKey is the cache key of an archived run envelope.
func RunKey(runID string) string { return "run:" + runID }
