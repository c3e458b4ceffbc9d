// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain processes pending messages, then closes the connection.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects carrying run progress.
const (
	SubjectRunProgress = "runs.progress" // runs.progress.{run_id}, one message per event
	SubjectRunComplete = "runs.complete" // terminal events of every run
	SubjectRunWildcard = "runs.>"
)

// ProgressSubject returns the per-run progress subject.
func ProgressSubject(runID string) string { return SubjectRunProgress + "." + runID }
