// Package revision defines the draft, critique and revise loop's domain types:
// iteration records, terminal statuses, results and progress events.
package revision

import (
	"errors"
	"fmt"
	"time"
)

// Role identifies one of the three generation roles.
type Role string

const (
	RoleDraft    Role = "draft"
	RoleCritique Role = "critique"
	RoleRevise   Role = "revise"
)

// Roles lists every role in loop order.
var Roles = []Role{RoleDraft, RoleCritique, RoleRevise}

// Status is the terminal state of a run. A run has a Status iff it has ended.
type Status string

const (
	StatusApproved             Status = "approved"
	StatusMaxIterationsReached Status = "max_iterations_reached"
	StatusCritiqueUnavailable  Status = "critique_unavailable"
	StatusRevisionUnavailable  Status = "revision_unavailable"
	StatusFailed               Status = "failed"
)

// Valid reports whether s is one of the five terminal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusMaxIterationsReached, StatusCritiqueUnavailable,
		StatusRevisionUnavailable, StatusFailed:
		return true
	}
	return false
}

// Degraded reports whether the run ended early because a role was unavailable.
func (s Status) Degraded() bool {
	return s == StatusCritiqueUnavailable || s == StatusRevisionUnavailable
}

// CritiqueUnavailablePrefix starts the placeholder critique recorded when the
// critique role could not produce one.
const CritiqueUnavailablePrefix = "Critique unavailable: "

// UnavailableCritique builds the placeholder critique for a failed critique call.
func UnavailableCritique(cause error) string {
	return CritiqueUnavailablePrefix + cause.Error()
}

// IterationRecord is the archived draft and critique of one iteration.
type IterationRecord struct {
	Iteration int    `json:"iteration"`
	Draft     string `json:"chart"`
	Critique  string `json:"issues"`
}

// Result is the outcome of a run that produced at least a draft.
type Result struct {
	FinalDraft string            `json:"final_chart"`
	Iterations int               `json:"iterations"`
	History    []IterationRecord `json:"history"`
	Status     Status            `json:"status"`
}

var (
	errEmptyHistory    = errors.New("history is empty")
	errIterationsCount = errors.New("iterations does not match history length")
	errInvalidStatus   = errors.New("invalid status")
)

// Validate checks the structural invariants of a result: a valid status,
// records numbered 1..k in order, and Iterations == k.
func (r *Result) Validate() error {
	if !r.Status.Valid() || r.Status == StatusFailed {
		return fmt.Errorf("%w: %q", errInvalidStatus, r.Status)
	}
	if len(r.History) == 0 {
		return errEmptyHistory
	}
	if r.Iterations != len(r.History) {
		return fmt.Errorf("%w: %d != %d", errIterationsCount, r.Iterations, len(r.History))
	}
	for i, rec := range r.History {
		if rec.Iteration != i+1 {
			return fmt.Errorf("record %d has iteration %d", i, rec.Iteration)
		}
	}
	return nil
}

// Run is the archived envelope of one run: its result plus the metadata the
// service attaches around it.
type Run struct {
	ID            string     `json:"run_id"`
	DocumentName  string     `json:"document_name"`
	DocumentChars int        `json:"document_chars"`
	MaxIterations int        `json:"max_iterations"`
	Status        Status     `json:"status,omitempty"` // empty while the run is in progress
	Error         string     `json:"error,omitempty"`
	LogFile       string     `json:"log_file,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Result        *Result    `json:"result,omitempty"`
}
