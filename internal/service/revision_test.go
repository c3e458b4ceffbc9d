package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/logger"
	"github.com/Strob0t/ReviewForge/internal/port/generation"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

// scripted replays one response (or error) per call and records the inputs.
type scripted struct {
	mu      sync.Mutex
	outputs []any // string or error
	inputs  []string
}

func (s *scripted) Generate(_ context.Context, _, input string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	if len(s.outputs) == 0 {
		return "", errors.New("unexpected call")
	}
	next := s.outputs[0]
	s.outputs = s.outputs[1:]
	if err, ok := next.(error); ok {
		return "", err
	}
	return next.(string), nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

// recorder is a progress sink collecting events.
type recorder struct {
	mu     sync.Mutex
	events []revision.Event
}

func (r *recorder) Emit(_ context.Context, ev revision.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = fmt.Sprintf("%s@%d", ev.Step, ev.Iteration)
	}
	return out
}

func (r *recorder) last() revision.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type loopFixture struct {
	draft, critique, revise *scripted
	loop                    *Loop
}

func newLoopFixture(t *testing.T, n int, draft, critique, revise []any) *loopFixture {
	t.Helper()
	prompts, err := LoadPrompts("")
	if err != nil {
		t.Fatal(err)
	}
	f := &loopFixture{
		draft:    &scripted{outputs: draft},
		critique: &scripted{outputs: critique},
		revise:   &scripted{outputs: revise},
	}
	roles := Roles{
		Draft:    generation.RoleClient{Role: revision.RoleDraft, Instructions: "draft", Generator: f.draft},
		Critique: generation.RoleClient{Role: revision.RoleCritique, Instructions: "critique", Generator: f.critique},
		Revise:   generation.RoleClient{Role: revision.RoleRevise, Instructions: "revise", Generator: f.revise},
	}
	f.loop = NewLoop(roles, prompts, revision.DefaultPolicy(), n, discardLogger())
	return f
}

var testDoc = document.Document{Name: "complaint.txt", Format: document.FormatText, Text: "The plaintiff alleges, in paragraph 12, that the defendant said the product was safe."}

const (
	approve = "No issues found. All entries verified."
	reject  = "Error: citation mismatch in paragraph 3. | **Fail** |"
)

func TestLoopApprovedFirstIteration(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{approve}, nil)
	rec := &recorder{}

	res, err := f.loop.Run(context.Background(), testDoc, rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusApproved || res.Iterations != 1 || res.FinalDraft != "d1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.revise.calls() != 0 {
		t.Errorf("revise must not run after approval, got %d calls", f.revise.calls())
	}
	want := "iteration_start@1,draft_start@1,draft_complete@1,critique_start@1,critique_complete@1,approved@1,complete@1"
	if got := strings.Join(rec.steps(), ","); got != want {
		t.Errorf("unexpected events:\n got %s\nwant %s", got, want)
	}
	if rec.last().Result != res {
		t.Error("complete event should carry the result")
	}
	if err := res.Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoopApprovedAfterRevision(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{reject, approve}, []any{"d2"})

	res, err := f.loop.Run(context.Background(), testDoc, progress.Nop)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusApproved || res.Iterations != 2 {
		t.Fatalf("expected approved at 2, got %s at %d", res.Status, res.Iterations)
	}
	if res.FinalDraft != "d2" {
		t.Errorf("expected revised draft, got %q", res.FinalDraft)
	}
	if res.History[0].Draft != "d1" || res.History[0].Critique != reject || res.History[1].Draft != "d2" {
		t.Errorf("unexpected history %+v", res.History)
	}
	if f.draft.calls() != 1 {
		t.Errorf("draft runs on iteration 1 only, got %d calls", f.draft.calls())
	}

	// Each role sees the document; the reviser also sees the draft and critique.
	if !strings.Contains(f.critique.inputs[1], "d2") {
		t.Error("second critique should review the revised draft")
	}
	reviseInput := f.revise.inputs[0]
	for _, part := range []string{testDoc.Text, "d1", reject} {
		if !strings.Contains(reviseInput, part) {
			t.Errorf("revise input missing %q", part)
		}
	}
}

func TestLoopMaxIterationsReached(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{reject, reject, reject}, []any{"d2", "d3"})
	rec := &recorder{}

	res, err := f.loop.Run(context.Background(), testDoc, rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusMaxIterationsReached || res.Iterations != 3 {
		t.Fatalf("expected max_iterations_reached at 3, got %s at %d", res.Status, res.Iterations)
	}
	if res.FinalDraft != "d3" {
		t.Errorf("expected last draft d3, got %q", res.FinalDraft)
	}
	if f.revise.calls() != 2 {
		t.Errorf("no revision after the last critique, got %d revise calls", f.revise.calls())
	}
	for i, r := range res.History {
		if r.Iteration != i+1 {
			t.Errorf("record %d has iteration %d", i, r.Iteration)
		}
	}
	if rec.last().Step != revision.StepComplete || rec.last().Status != revision.StatusMaxIterationsReached {
		t.Errorf("unexpected terminal event %+v", rec.last())
	}
}

func TestLoopSingleIterationBudget(t *testing.T) {
	f := newLoopFixture(t, 1, []any{"d1"}, []any{reject}, nil)

	res, err := f.loop.Run(context.Background(), testDoc, progress.Nop)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusMaxIterationsReached || res.Iterations != 1 || len(res.History) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.revise.calls() != 0 {
		t.Error("revise must not run with a budget of one")
	}
}

func TestLoopDraftFailure(t *testing.T) {
	cause := fmt.Errorf("%w: blocked by safety filter", domain.ErrGenerationUnavailable)
	f := newLoopFixture(t, 3, []any{cause}, nil, nil)
	rec := &recorder{}

	res, err := f.loop.Run(context.Background(), testDoc, rec)
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if !errors.Is(err, domain.ErrLoopFailure) || !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected loop failure wrapping generation unavailable, got %v", err)
	}
	if f.critique.calls() != 0 {
		t.Error("critique must not run without a draft")
	}
	last := rec.last()
	if last.Step != revision.StepError || last.Status != revision.StatusFailed || last.Error == "" {
		t.Errorf("expected error event, got %+v", last)
	}
	if last.Iteration != 0 {
		t.Errorf("no records were produced, got iteration %d", last.Iteration)
	}
}

func TestLoopEmptyDraftIsFailure(t *testing.T) {
	f := newLoopFixture(t, 3, []any{""}, nil, nil)

	_, err := f.loop.Run(context.Background(), testDoc, progress.Nop)
	if !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected empty output to be unavailable, got %v", err)
	}
}

func TestLoopCritiqueFailureOnSecondIteration(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{reject, errors.New("upstream timeout")}, []any{"d2"})
	rec := &recorder{}

	res, err := f.loop.Run(context.Background(), testDoc, rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusCritiqueUnavailable {
		t.Fatalf("expected critique_unavailable, got %s", res.Status)
	}
	if len(res.History) != 2 || res.Iterations != 2 {
		t.Fatalf("expected 2 records, got %d (iterations %d)", len(res.History), res.Iterations)
	}
	second := res.History[1]
	if !strings.HasPrefix(second.Critique, revision.CritiqueUnavailablePrefix) {
		t.Errorf("expected placeholder critique, got %q", second.Critique)
	}
	if second.Draft != "d2" || res.FinalDraft != "d2" {
		t.Errorf("final draft should be the unreviewed iteration-2 draft, got %q", res.FinalDraft)
	}
	if f.revise.calls() != 1 {
		t.Errorf("no revision after a failed critique, got %d calls", f.revise.calls())
	}
	if rec.last().Status != revision.StatusCritiqueUnavailable {
		t.Errorf("unexpected terminal event %+v", rec.last())
	}
}

func TestLoopRevisionFailure(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{reject}, []any{errors.New("rate limited")})

	res, err := f.loop.Run(context.Background(), testDoc, progress.Nop)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusRevisionUnavailable || res.Iterations != 1 {
		t.Fatalf("expected revision_unavailable at 1, got %s at %d", res.Status, res.Iterations)
	}
	if res.FinalDraft != "d1" {
		t.Errorf("expected pre-revision draft, got %q", res.FinalDraft)
	}
	if len(res.History) != 1 || res.History[0].Critique != reject {
		t.Errorf("the rejected critique stays archived, got %+v", res.History)
	}
}

func TestLoopClassifierPanicIsFailure(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{approve}, nil)
	f.loop.classifier = revision.ClassifierFunc(func(string) revision.Decision { panic("bad policy") })
	rec := &recorder{}

	res, err := f.loop.Run(context.Background(), testDoc, rec)
	if res != nil || !errors.Is(err, domain.ErrLoopFailure) {
		t.Fatalf("expected loop failure, got %v / %v", res, err)
	}
	if rec.last().Step != revision.StepError {
		t.Errorf("expected error event, got %s", rec.last().Step)
	}
}

func TestLoopSinkPanicDoesNotAlterControlFlow(t *testing.T) {
	f := newLoopFixture(t, 3, []any{"d1"}, []any{reject, approve}, []any{"d2"})
	sink := progress.Func(func(context.Context, revision.Event) { panic("sink down") })

	res, err := f.loop.Run(context.Background(), testDoc, sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != revision.StatusApproved || res.Iterations != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoopEventsCarryRunID(t *testing.T) {
	f := newLoopFixture(t, 2, []any{"d1"}, []any{approve}, nil)
	rec := &recorder{}

	ctx := logger.WithRunID(context.Background(), "run-42")
	if _, err := f.loop.Run(ctx, testDoc, rec); err != nil {
		t.Fatal(err)
	}
	for _, ev := range rec.events {
		if ev.RunID != "run-42" || ev.MaxIterations != 2 || ev.Timestamp.IsZero() {
			t.Fatalf("event missing run metadata: %+v", ev)
		}
	}
}

func TestLoopInvariantsAcrossBudgets(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for approveAt := 1; approveAt <= n+1; approveAt++ {
			t.Run(fmt.Sprintf("n=%d/approve_at=%d", n, approveAt), func(t *testing.T) {
				var critiques, revisions []any
				for i := 1; i <= n; i++ {
					if i == approveAt {
						critiques = append(critiques, approve)
					} else {
						critiques = append(critiques, reject)
					}
					revisions = append(revisions, fmt.Sprintf("d%d", i+1))
				}
				f := newLoopFixture(t, n, []any{"d1"}, critiques, revisions)

				res, err := f.loop.Run(context.Background(), testDoc, progress.Nop)
				if err != nil {
					t.Fatal(err)
				}
				if err := res.Validate(); err != nil {
					t.Fatal(err)
				}
				if res.Iterations > n {
					t.Fatalf("iterations %d exceed budget %d", res.Iterations, n)
				}
				if approveAt <= n {
					if res.Status != revision.StatusApproved || res.Iterations != approveAt {
						t.Fatalf("expected approved at %d, got %s at %d", approveAt, res.Status, res.Iterations)
					}
				} else if res.Status != revision.StatusMaxIterationsReached || res.Iterations != n {
					t.Fatalf("expected max_iterations_reached at %d, got %s at %d", n, res.Status, res.Iterations)
				}
			})
		}
	}
}

func TestNewLoopClampsBudget(t *testing.T) {
	prompts, _ := LoadPrompts("")
	l := NewLoop(Roles{}, prompts, revision.DefaultPolicy(), 0, nil)
	if l.MaxIterations() != 1 {
		t.Fatalf("expected budget clamped to 1, got %d", l.MaxIterations())
	}
}
