package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many callers run concurrently using a weighted
// semaphore. A nil Limiter imposes no bound.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a Limiter admitting at most limit concurrent calls.
// limit <= 0 returns nil, which is unlimited.
func NewLimiter(limit int) *Limiter {
	if limit <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(limit))}
}

// Run acquires a slot, runs fn, and releases the slot. It blocks while all
// slots are busy and returns ctx.Err() if ctx ends first, without calling fn.
func (l *Limiter) Run(ctx context.Context, fn func() error) error {
	if l == nil {
		return fn()
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn()
}
