// Package runstoretest provides a compliance suite for runstore.Store implementations.
package runstoretest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
)

// Run exercises s. Each call uses fresh run IDs prefixed with prefix so the
// suite can run against a shared database.
func Run(t *testing.T, s runstore.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	newRun := func(n int, status revision.Status) *revision.Run {
		done := base.Add(time.Duration(n)*time.Minute + 30*time.Second)
		return &revision.Run{
			ID:            fmt.Sprintf("%s-run-%d", prefix, n),
			DocumentName:  "complaint.txt",
			DocumentChars: 1200 + n,
			MaxIterations: 3,
			Status:        status,
			LogFile:       "logs/run.log",
			StartedAt:     base.Add(time.Duration(n) * time.Minute),
			CompletedAt:   &done,
			Result: &revision.Result{
				FinalDraft: "| Claim | Verdict |",
				Iterations: 1,
				History:    []revision.IterationRecord{{Iteration: 1, Draft: "| Claim | Verdict |", Critique: "No issues"}},
				Status:     status,
			},
		}
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		run := newRun(1, revision.StatusApproved)
		require.NoError(t, s.SaveRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, run.DocumentChars, got.DocumentChars)
		assert.Equal(t, revision.StatusApproved, got.Status)
		assert.True(t, run.StartedAt.Equal(got.StartedAt))
		require.NotNil(t, got.CompletedAt)
		require.NotNil(t, got.Result)
		assert.Equal(t, run.Result.History, got.Result.History)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		run := newRun(2, revision.StatusMaxIterationsReached)
		require.NoError(t, s.SaveRun(ctx, run))
		run.Status = revision.StatusFailed
		run.Error = "draft role unavailable"
		run.Result = nil
		require.NoError(t, s.SaveRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusFailed, got.Status)
		assert.Equal(t, "draft role unavailable", got.Error)
		assert.Nil(t, got.Result)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.GetRun(ctx, prefix+"-missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound), "expected ErrNotFound, got %v", err)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		require.NoError(t, s.SaveRun(ctx, newRun(3, revision.StatusApproved)))
		runs, err := s.ListRuns(ctx, 1000)
		require.NoError(t, err)

		idx := map[string]int{}
		for i, r := range runs {
			idx[r.ID] = i
		}
		i1, ok1 := idx[prefix+"-run-1"]
		i3, ok3 := idx[prefix+"-run-3"]
		require.True(t, ok1 && ok3, "expected saved runs in listing")
		assert.Less(t, i3, i1, "newer run should be listed first")
	})

	t.Run("ListLimit", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("EventsInOrder", func(t *testing.T) {
		runID := prefix + "-run-1"
		steps := []revision.Step{revision.StepIterationStart, revision.StepDraftStart, revision.StepDraftComplete}
		for i, step := range steps {
			ev := revision.Event{RunID: runID, Step: step, Iteration: 1, MaxIterations: 3, Message: string(step), Timestamp: base}
			require.NoError(t, s.AppendEvent(ctx, runID, i, ev))
		}

		got, err := s.Events(ctx, runID)
		require.NoError(t, err)
		require.Len(t, got, len(steps))
		for i, ev := range got {
			assert.Equal(t, steps[i], ev.Step)
		}
	})

	t.Run("EventsUnknownRun", func(t *testing.T) {
		got, err := s.Events(ctx, prefix+"-nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
