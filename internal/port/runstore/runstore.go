// Package runstore defines the port for archiving finished runs and their
// progress events.
package runstore

import (
	"context"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

// Store archives runs for later inspection. Runs are never resumed from it.
type Store interface {
	// SaveRun inserts or replaces the run envelope.
	SaveRun(ctx context.Context, run *revision.Run) error
	// GetRun returns domain.ErrNotFound when id is unknown.
	GetRun(ctx context.Context, id string) (*revision.Run, error)
	// ListRuns returns the most recently started runs first.
	ListRuns(ctx context.Context, limit int) ([]revision.Run, error)
	// AppendEvent records one progress event of a run.
	AppendEvent(ctx context.Context, runID string, seq int, ev revision.Event) error
	// Events returns a run's events in emission order.
	Events(ctx context.Context, runID string) ([]revision.Event, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// DefaultListLimit applies when ListRuns is called with limit <= 0.
const DefaultListLimit = 50
