// Package runlog writes one JSON-lines log file per review run.
package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/service"
)

const previewChars = 500

// Dir opens run logs under a directory.
type Dir struct {
	path string
}

// NewDir creates the directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// FileName returns run_<YYYYmmdd_HHMMSS>_<first 8 chars of id>.log.
func FileName(runID string, started time.Time) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("run_%s_%s.log", started.Format("20060102_150405"), short)
}

// Open implements service.RunLogOpener.
func (d *Dir) Open(run *revision.Run) (service.RunLog, error) {
	path := filepath.Join(d.path, FileName(run.ID, run.StartedAt))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // G304: path built from run metadata
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	l := &Log{
		path: path,
		file: f,
		log: slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})).
			With("run_id", run.ID),
	}
	l.log.Info("run started",
		"document", run.DocumentName,
		"document_chars", run.DocumentChars,
		"max_iterations", run.MaxIterations,
		"started_at", run.StartedAt,
	)
	return l, nil
}

// Log is the log of one run. Writes go straight to the file so a crashed
// process leaves a complete record up to the crash.
type Log struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	log    *slog.Logger
	closed bool
}

// Path returns the file path.
func (l *Log) Path() string { return l.path }

// Emit implements progress.Sink.
func (l *Log) Emit(ctx context.Context, ev revision.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	attrs := []any{"step", ev.Step, "iteration", ev.Iteration, "max_iterations", ev.MaxIterations}
	level := slog.LevelInfo
	switch ev.Step {
	case revision.StepWarning:
		level = slog.LevelWarn
	case revision.StepError:
		level = slog.LevelError
	}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	if ev.Status != "" {
		attrs = append(attrs, "status", ev.Status)
	}
	l.log.Log(ctx, level, ev.Message, attrs...)

	if ev.Step == revision.StepComplete && ev.Result != nil {
		for _, rec := range ev.Result.History {
			l.log.Debug("iteration record",
				"iteration", rec.Iteration,
				"draft", rec.Draft,
				"critique", rec.Critique,
			)
		}
		l.log.Info("final draft preview", "preview", preview(ev.Result.FinalDraft))
	}
}

// Close writes the closing record and closes the file. Later calls are no-ops.
func (l *Log) Close(run *revision.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	attrs := []any{"status", run.Status, "log_file", l.path}
	if run.Result != nil {
		attrs = append(attrs, "iterations", run.Result.Iterations)
	}
	if run.CompletedAt != nil {
		attrs = append(attrs, "completed_at", *run.CompletedAt, "duration_ms", run.CompletedAt.Sub(run.StartedAt).Milliseconds())
	}
	if run.Error != "" {
		attrs = append(attrs, "error", run.Error)
	}
	l.log.Info("run finished", attrs...)

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewChars {
		return s
	}
	return string(r[:previewChars]) + "..."
}
