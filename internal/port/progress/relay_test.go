package progress

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/logger"
)

type collector struct {
	mu     sync.Mutex
	events []revision.Event
	runIDs []string
}

func (c *collector) Emit(ctx context.Context, ev revision.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	c.runIDs = append(c.runIDs, logger.RunID(ctx))
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRelayDeliversInOrderOnClose(t *testing.T) {
	c := &collector{}
	r := NewRelay(c, 8, quiet())

	ctx, cancel := context.WithCancel(logger.WithRunID(context.Background(), "run-7"))
	for i := 1; i <= 3; i++ {
		r.Emit(ctx, revision.Event{Step: revision.StepIterationStart, Iteration: i})
	}
	cancel()
	r.Close()

	if len(c.events) != 3 {
		t.Fatalf("delivered %d events, want 3", len(c.events))
	}
	for i, ev := range c.events {
		if ev.Iteration != i+1 {
			t.Errorf("event %d has iteration %d", i, ev.Iteration)
		}
		if c.runIDs[i] != "run-7" {
			t.Errorf("event %d lost the run id: %q", i, c.runIDs[i])
		}
	}
}

func TestRelayNeverBlocksTheEmitter(t *testing.T) {
	release := make(chan struct{})
	stuck := Func(func(context.Context, revision.Event) { <-release })
	r := NewRelay(stuck, 2, quiet())

	start := time.Now()
	for i := 0; i < 10; i++ {
		r.Emit(context.Background(), revision.Event{Step: revision.StepCritiqueStart, Iteration: i})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Emit blocked for %s behind a stuck sink", elapsed)
	}
	// One event is held by the worker, two fill the queue.
	if r.Dropped() < 7 {
		t.Errorf("dropped %d events, want at least 7", r.Dropped())
	}
	close(release)
	r.Close()
}

func TestRelayDropsAfterClose(t *testing.T) {
	c := &collector{}
	r := NewRelay(c, 4, quiet())
	r.Close()
	r.Close()

	r.Emit(context.Background(), revision.Event{Step: revision.StepComplete})
	if r.Dropped() != 1 || len(c.events) != 0 {
		t.Fatalf("dropped=%d delivered=%d after Close", r.Dropped(), len(c.events))
	}
}

func TestRelaySurvivesPanickingSink(t *testing.T) {
	var calls int
	boom := Func(func(context.Context, revision.Event) {
		calls++
		panic("sink exploded")
	})
	r := NewRelay(boom, 4, quiet())
	r.Emit(context.Background(), revision.Event{Step: revision.StepDraftStart})
	r.Emit(context.Background(), revision.Event{Step: revision.StepDraftComplete})
	r.Close()

	if calls != 2 {
		t.Fatalf("worker stopped after a panic: %d calls", calls)
	}
}
