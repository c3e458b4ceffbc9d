// Package progress defines the sink that receives run lifecycle events.
package progress

import (
	"context"
	"log/slog"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

// Sink accepts progress events. Implementations must not block for long;
// errors are theirs to log, never the caller's to handle.
type Sink interface {
	Emit(ctx context.Context, ev revision.Event)
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, ev revision.Event)

// Emit implements Sink.
func (f Func) Emit(ctx context.Context, ev revision.Event) { f(ctx, ev) }

// Nop discards every event.
var Nop Sink = Func(func(context.Context, revision.Event) {})

// Multi fans an event out to every sink in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Emit(ctx context.Context, ev revision.Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Safe wraps s so that a panicking sink is logged and otherwise ignored.
// In a Multi, wrap each member to keep one bad sink from starving the rest.
func Safe(s Sink, log *slog.Logger) Sink {
	if s == nil {
		return Nop
	}
	return safe{inner: s, log: log}
}

type safe struct {
	inner Sink
	log   *slog.Logger
}

func (s safe) Emit(ctx context.Context, ev revision.Event) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Warn("progress sink panicked", "step", ev.Step, "iteration", ev.Iteration, "panic", r)
		}
	}()
	s.inner.Emit(ctx, ev)
}
