package revision

import "time"

// Step names a lifecycle point of a run.
type Step string

const (
	StepIterationStart   Step = "iteration_start"
	StepDraftStart       Step = "draft_start"
	StepDraftComplete    Step = "draft_complete"
	StepCritiqueStart    Step = "critique_start"
	StepCritiqueComplete Step = "critique_complete"
	StepReviseStart      Step = "revise_start"
	StepReviseComplete   Step = "revise_complete"
	StepApproved         Step = "approved"
	StepWarning          Step = "warning"
	StepComplete         Step = "complete"
	StepError            Step = "error"
)

// Terminal reports whether the step ends a progress stream.
func (s Step) Terminal() bool { return s == StepComplete || s == StepError }

// Event is one progress notification. Terminal events carry either the
// Result (complete) or the failure message (error).
type Event struct {
	RunID         string    `json:"run_id,omitempty"`
	Step          Step      `json:"step"`
	Iteration     int       `json:"iteration"`
	MaxIterations int       `json:"max_iterations"`
	Message       string    `json:"message"`
	Status        Status    `json:"status,omitempty"`
	Result        *Result   `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	LogFile       string    `json:"log_file,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
