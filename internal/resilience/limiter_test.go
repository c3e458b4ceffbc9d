package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	const limit = 3
	const workers = 10
	l := NewLimiter(limit)

	var running atomic.Int32
	var maxSeen atomic.Int32
	done := make(chan struct{}, workers)

	for range workers {
		go func() {
			defer func() { done <- struct{}{} }()
			err := l.Run(context.Background(), func() error {
				cur := running.Add(1)
				for {
					old := maxSeen.Load()
					if cur <= old || maxSeen.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	for range workers {
		<-done
	}

	if m := maxSeen.Load(); m > limit {
		t.Errorf("max concurrent = %d, want <= %d", m, limit)
	}
}

func TestLimiterCancelledWhileWaiting(t *testing.T) {
	l := NewLimiter(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = l.Run(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := l.Run(ctx, func() error { called = true; return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if called {
		t.Fatal("fn must not run without a slot")
	}
}

func TestLimiterPropagatesError(t *testing.T) {
	want := errors.New("boom")
	if err := NewLimiter(2).Run(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestNilLimiterIsUnbounded(t *testing.T) {
	l := NewLimiter(0)
	if l != nil {
		t.Fatal("NewLimiter(0) should be nil")
	}
	ran := false
	if err := l.Run(context.Background(), func() error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("nil limiter should run fn directly, ran=%v err=%v", ran, err)
	}
}
