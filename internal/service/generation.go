package service

import (
	"context"
	"time"

	"github.com/Strob0t/ReviewForge/internal/port/generation"
	"github.com/Strob0t/ReviewForge/internal/resilience"
)

// WithCallTimeout bounds every call of g by d. The deadline's cause is
// resilience.ErrCallTimeout. A zero d returns g unchanged.
func WithCallTimeout(g generation.Generator, d time.Duration) generation.Generator {
	if d <= 0 {
		return g
	}
	return generation.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
		ctx, cancel := context.WithTimeoutCause(ctx, d, resilience.ErrCallTimeout)
		defer cancel()
		return g.Generate(ctx, instructions, input)
	})
}
