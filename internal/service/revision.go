package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/logger"
	"github.com/Strob0t/ReviewForge/internal/port/generation"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

// Roles are the three generation clients the loop drives.
type Roles struct {
	Draft    generation.RoleClient
	Critique generation.RoleClient
	Revise   generation.RoleClient
}

// NewRoles binds one Generator to the instructions of each role.
func NewRoles(gen generation.Generator, prompts *Prompts) Roles {
	bind := func(r revision.Role) generation.RoleClient {
		return generation.RoleClient{Role: r, Instructions: prompts.Instructions(r), Generator: gen}
	}
	return Roles{
		Draft:    bind(revision.RoleDraft),
		Critique: bind(revision.RoleCritique),
		Revise:   bind(revision.RoleRevise),
	}
}

// Wrap returns a copy of r whose generators are replaced by wrap(role, generator).
func (r Roles) Wrap(wrap func(revision.Role, generation.Generator) generation.Generator) Roles {
	w := func(c generation.RoleClient) generation.RoleClient {
		c.Generator = wrap(c.Role, c.Generator)
		return c
	}
	return Roles{Draft: w(r.Draft), Critique: w(r.Critique), Revise: w(r.Revise)}
}

// Loop runs the bounded draft, critique, revise cycle over one document.
// A Loop holds no per-run state and may serve concurrent runs.
type Loop struct {
	roles         Roles
	prompts       *Prompts
	classifier    revision.Classifier
	maxIterations int
	log           *slog.Logger
	now           func() time.Time
}

// NewLoop creates a Loop. maxIterations below 1 is raised to 1.
func NewLoop(roles Roles, prompts *Prompts, classifier revision.Classifier, maxIterations int, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		roles:         roles,
		prompts:       prompts,
		classifier:    classifier,
		maxIterations: max(maxIterations, 1),
		log:           log,
		now:           time.Now,
	}
}

// MaxIterations returns the iteration budget of every run.
func (l *Loop) MaxIterations() int { return l.maxIterations }

// run carries the mutable state of one execution.
type run struct {
	loop    *Loop
	ctx     context.Context
	sink    progress.Sink
	log     *slog.Logger
	doc     document.Document
	draft   string
	history []revision.IterationRecord
}

// Run executes the loop. It returns a Result for every terminal status except
// failed; a failed run returns an error wrapping domain.ErrLoopFailure.
// The sink sees every lifecycle event followed by exactly one complete or
// error event.
func (l *Loop) Run(ctx context.Context, doc document.Document, sink progress.Sink) (res *revision.Result, err error) {
	r := &run{
		loop: l,
		ctx:  ctx,
		sink: progress.Safe(sink, l.log),
		log:  logger.With(ctx, l.log),
		doc:  doc,
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("revision loop panicked", "panic", p)
			res, err = nil, fmt.Errorf("%w: unexpected fault: %v", domain.ErrLoopFailure, p)
			r.fail(err)
		}
	}()

	r.log.Info("revision run started", "document_chars", doc.Len(), "max_iterations", l.maxIterations)

	res, err = r.execute()
	if err != nil {
		r.log.Error("revision run failed", "error", err)
		r.fail(err)
		return nil, err
	}

	r.log.Info("revision run finished", "status", res.Status, "iterations", res.Iterations)
	r.emit(revision.Event{
		Step:      revision.StepComplete,
		Iteration: res.Iterations,
		Message:   completionMessage(res),
		Status:    res.Status,
		Result:    res,
	})
	return res, nil
}

func (r *run) execute() (*revision.Result, error) {
	n := r.loop.maxIterations
	for i := 1; i <= n; i++ {
		r.emit(revision.Event{Step: revision.StepIterationStart, Iteration: i, Message: fmt.Sprintf("Iteration %d of %d", i, n)})

		if i == 1 {
			if err := r.initialDraft(); err != nil {
				return nil, err
			}
		}

		critique, err := r.critique(i)
		if err != nil {
			r.history = append(r.history, revision.IterationRecord{
				Iteration: i,
				Draft:     r.draft,
				Critique:  revision.UnavailableCritique(err),
			})
			r.log.Warn("critique unavailable, returning unreviewed draft", "iteration", i, "error", err)
			r.emit(revision.Event{Step: revision.StepWarning, Iteration: i, Message: "Critique unavailable; returning the current draft unreviewed", Error: err.Error()})
			return r.result(i, revision.StatusCritiqueUnavailable), nil
		}

		r.history = append(r.history, revision.IterationRecord{Iteration: i, Draft: r.draft, Critique: critique})

		decision := r.loop.classifier.Classify(critique)
		r.log.Info("critique classified", "iteration", i, "decision", decision.String())
		if decision == revision.Approved {
			r.emit(revision.Event{Step: revision.StepApproved, Iteration: i, Message: "Draft approved"})
			return r.result(i, revision.StatusApproved), nil
		}

		if i == n {
			r.log.Warn("iteration budget exhausted, returning best-effort draft", "iterations", n)
			r.emit(revision.Event{Step: revision.StepWarning, Iteration: i, Message: "Maximum iterations reached; returning the latest draft"})
			break
		}

		if err := r.revise(i, critique); err != nil {
			r.log.Warn("revision unavailable, returning pre-revision draft", "iteration", i, "error", err)
			r.emit(revision.Event{Step: revision.StepWarning, Iteration: i, Message: "Revision unavailable; returning the unrevised draft", Error: err.Error()})
			return r.result(i, revision.StatusRevisionUnavailable), nil
		}
	}
	return r.result(n, revision.StatusMaxIterationsReached), nil
}

func (r *run) initialDraft() error {
	r.emit(revision.Event{Step: revision.StepDraftStart, Iteration: 1, Message: "Generating initial draft"})

	input, err := r.loop.prompts.DraftInput(r.doc.Text)
	if err != nil {
		return fmt.Errorf("%w: draft input: %w", domain.ErrLoopFailure, err)
	}
	draft, err := r.call(r.loop.roles.Draft, 1, input)
	if err != nil {
		return fmt.Errorf("%w: draft: %w", domain.ErrLoopFailure, err)
	}
	r.draft = draft

	r.emit(revision.Event{Step: revision.StepDraftComplete, Iteration: 1, Message: "Initial draft generated"})
	return nil
}

func (r *run) critique(i int) (string, error) {
	r.emit(revision.Event{Step: revision.StepCritiqueStart, Iteration: i, Message: "Reviewing draft"})

	input, err := r.loop.prompts.CritiqueInput(r.doc.Text, r.draft)
	if err != nil {
		return "", err
	}
	critique, err := r.call(r.loop.roles.Critique, i, input)
	if err != nil {
		return "", err
	}

	r.emit(revision.Event{Step: revision.StepCritiqueComplete, Iteration: i, Message: "Review complete"})
	return critique, nil
}

func (r *run) revise(i int, critique string) error {
	r.emit(revision.Event{Step: revision.StepReviseStart, Iteration: i, Message: "Revising draft from review findings"})

	input, err := r.loop.prompts.ReviseInput(r.doc.Text, r.draft, critique)
	if err != nil {
		return err
	}
	revised, err := r.call(r.loop.roles.Revise, i, input)
	if err != nil {
		return err
	}
	r.draft = revised

	r.emit(revision.Event{Step: revision.StepReviseComplete, Iteration: i, Message: "Draft revised"})
	return nil
}

// call invokes one role exactly once.
func (r *run) call(c generation.RoleClient, iteration int, input string) (string, error) {
	start := r.loop.now()
	out, err := c.Generate(r.ctx, input)
	elapsed := r.loop.now().Sub(start)
	if err == nil && out == "" {
		err = fmt.Errorf("%w: %s returned empty content", domain.ErrGenerationUnavailable, c.Role)
	}
	if err != nil {
		r.log.Warn("role call failed", "role", c.Role, "iteration", iteration, "duration_ms", elapsed.Milliseconds(), "error", err)
		return "", err
	}
	r.log.Debug("role call complete", "role", c.Role, "iteration", iteration, "duration_ms", elapsed.Milliseconds(), "output_chars", len(out))
	return out, nil
}

func (r *run) result(iterations int, status revision.Status) *revision.Result {
	history := make([]revision.IterationRecord, len(r.history))
	copy(history, r.history)
	return &revision.Result{
		FinalDraft: r.draft,
		Iterations: iterations,
		History:    history,
		Status:     status,
	}
}

func (r *run) fail(err error) {
	r.emit(revision.Event{
		Step:      revision.StepError,
		Iteration: len(r.history),
		Message:   "Processing failed",
		Status:    revision.StatusFailed,
		Error:     err.Error(),
	})
}

func (r *run) emit(ev revision.Event) {
	ev.RunID = logger.RunID(r.ctx)
	ev.MaxIterations = r.loop.maxIterations
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.loop.now().UTC()
	}
	r.sink.Emit(r.ctx, ev)
}

func completionMessage(res *revision.Result) string {
	switch res.Status {
	case revision.StatusApproved:
		return fmt.Sprintf("Draft approved after %d iteration(s)", res.Iterations)
	case revision.StatusMaxIterationsReached:
		return fmt.Sprintf("Stopped after %d iteration(s) without approval", res.Iterations)
	case revision.StatusCritiqueUnavailable:
		return "Finished with an unreviewed draft"
	case revision.StatusRevisionUnavailable:
		return "Finished with the last reviewed draft"
	default:
		return string(res.Status)
	}
}
