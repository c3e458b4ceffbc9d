package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

// DefaultRelayBuffer is the queue size of a Relay built with a size < 1.
const DefaultRelayBuffer = 256

type relayed struct {
	ctx context.Context
	ev  revision.Event
}

// Relay hands events to a bounded queue drained by one worker, so a slow
// sink never holds up the emitter. Events keep their order. They are
// dropped, and counted, when the queue is full or the relay is closed.
type Relay struct {
	inner   Sink
	log     *slog.Logger
	ch      chan relayed
	done    chan struct{}
	mu      sync.RWMutex // guards closed against concurrent Emit and Close
	closed  bool
	dropped atomic.Int64
}

// NewRelay starts a Relay in front of s. The worker shields s against
// panics.
func NewRelay(s Sink, size int, log *slog.Logger) *Relay {
	if size < 1 {
		size = DefaultRelayBuffer
	}
	r := &Relay{
		inner: Safe(s, log),
		log:   log,
		ch:    make(chan relayed, size),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Relay) drain() {
	defer close(r.done)
	for item := range r.ch {
		r.inner.Emit(item.ctx, item.ev)
	}
}

// Emit enqueues ev without blocking. The queued context keeps ctx's values
// but not its cancellation, since the run may be over by the time ev is
// delivered.
func (r *Relay) Emit(ctx context.Context, ev revision.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- relayed{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		if r.dropped.Add(1) == 1 && r.log != nil {
			r.log.Warn("progress relay full, dropping events", "step", ev.Step, "run_id", ev.RunID)
		}
	}
}

// Dropped returns the number of events that were not delivered.
func (r *Relay) Dropped() int64 { return r.dropped.Load() }

// Close stops accepting events and waits until the queued ones are
// delivered. It is safe to call more than once.
func (r *Relay) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
}
