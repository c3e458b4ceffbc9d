// Package resilience guards outbound generation calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrCallTimeout is the cancellation cause of a per-call deadline. A call
	// ended by it counts as an upstream failure.
	ErrCallTimeout = errors.New("generation call timed out")
)

// State is the externally visible breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker opens after maxFailures consecutive failures and rejects calls until
// timeout has elapsed. It then lets a single probe through; the probe's outcome
// closes or reopens the circuit.
//
// Cancellation by the caller is not counted as a failure of the upstream,
// unless the context ended with ErrCallTimeout as its cause.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	probing     bool
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	onChange    func(from, to State)
	now         func() time.Time // for testing
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		state:       StateClosed,
		maxFailures: max(maxFailures, 1),
		timeout:     timeout,
		now:         time.Now,
	}
}

// OnStateChange registers a callback invoked (outside the lock) on every transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State reports the current state, promoting open to half-open once the timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn when the circuit permits it.
func (b *Breaker) Execute(fn func() error) error {
	return b.Do(context.Background(), func(context.Context) error { return fn() })
}

// Do runs fn with ctx when the circuit permits it. Returns ErrCircuitOpen
// without calling fn when the circuit is open or a half-open probe is in flight.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) &&
		!errors.Is(context.Cause(ctx), ErrCallTimeout) {
		b.release()
		return err
	}
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	from := b.state
	ok := false
	switch b.state {
	case StateClosed:
		ok = true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = StateHalfOpen
			b.probing = true
			ok = true
		}
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			ok = true
		}
	}
	to, cb := b.state, b.onChange
	b.mu.Unlock()

	notify(cb, from, to)
	return ok
}

// release frees a half-open probe slot without judging the upstream.
func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	from := b.state
	b.probing = false
	if success {
		b.failures = 0
		b.state = StateClosed
	} else {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
	to, cb := b.state, b.onChange
	b.mu.Unlock()

	notify(cb, from, to)
}

func notify(cb func(from, to State), from, to State) {
	if cb != nil && from != to {
		cb(from, to)
	}
}
