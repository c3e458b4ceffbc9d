package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestFileName(t *testing.T) {
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := FileName("0f8fad5b-d9cb-469f-a165-70867728950e", started)
	if got != "run_20260304_050607_0f8fad5b.log" {
		t.Errorf("unexpected file name %q", got)
	}
	if FileName("abc", started) != "run_20260304_050607_abc.log" {
		t.Error("short ids are used as-is")
	}
}

func TestRunLogLifecycle(t *testing.T) {
	dir, err := NewDir(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatal(err)
	}
	started := time.Now().UTC()
	run := &revision.Run{ID: "run-1234567890", DocumentName: "c.txt", DocumentChars: 500, MaxIterations: 3, StartedAt: started}

	l, err := dir.Open(run)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(l.Path(), "_run-1234.log") {
		t.Errorf("unexpected path %q", l.Path())
	}

	ctx := context.Background()
	res := &revision.Result{
		FinalDraft: strings.Repeat("x", 600),
		Iterations: 1,
		History:    []revision.IterationRecord{{Iteration: 1, Draft: "d1", Critique: "No issues"}},
		Status:     revision.StatusApproved,
	}
	l.Emit(ctx, revision.Event{Step: revision.StepIterationStart, Iteration: 1, MaxIterations: 3, Message: "Iteration 1 of 3"})
	l.Emit(ctx, revision.Event{Step: revision.StepWarning, Iteration: 1, Message: "careful", Error: "slow"})
	l.Emit(ctx, revision.Event{Step: revision.StepComplete, Iteration: 1, Message: "done", Status: revision.StatusApproved, Result: res})

	done := started.Add(time.Second)
	run.Status = revision.StatusApproved
	run.Result = res
	run.CompletedAt = &done
	if err := l.Close(run); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(run); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	l.Emit(ctx, revision.Event{Step: revision.StepIterationStart, Message: "after close"})

	lines := readLines(t, l.Path())
	var msgs []string
	for _, m := range lines {
		msgs = append(msgs, m["msg"].(string))
		if m["run_id"] != "run-1234567890" {
			t.Errorf("every line carries the run id, got %v", m)
		}
	}
	want := "run started|Iteration 1 of 3|careful|done|iteration record|final draft preview|run finished"
	if got := strings.Join(msgs, "|"); got != want {
		t.Errorf("unexpected log lines:\n got %s\nwant %s", got, want)
	}
	if lines[2]["level"] != "WARN" {
		t.Errorf("warning events log at WARN, got %v", lines[2]["level"])
	}
	if p := lines[5]["preview"].(string); len(p) != previewChars+3 {
		t.Errorf("expected truncated preview, got %d chars", len(p))
	}
	last := lines[len(lines)-1]
	if last["status"] != "approved" || last["iterations"] != float64(1) {
		t.Errorf("unexpected closing record %v", last)
	}
}

func TestOpenFailsOnUnwritableDir(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDir(filepath.Join(blocker, "logs")); err == nil {
		t.Fatal("expected error creating a directory under a regular file")
	}
}
