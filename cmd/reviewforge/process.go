package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

type documentReviewer interface {
	Process(ctx context.Context, doc document.Document, sink progress.Sink) (*revision.Run, error)
}

type documentIngester interface {
	Ingest(ctx context.Context, filename, format string, data []byte) (document.Document, error)
}

type processOptions struct {
	Path       string
	Format     string
	JSONOutput bool
	// HumanProgress selects text progress lines instead of JSON lines.
	HumanProgress bool
}

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run one review loop over a PDF or text file",
		Long: `Run one review loop over a complaint and print the final chart.

Progress is written to stderr: readable lines on a terminal, JSON lines
otherwise. With --json the full run (id, result, history, timestamps) is
written to stdout instead of the final chart. A failed run exits 1.

Example:
  reviewforge process complaint.pdf --max-iterations 2 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			maxIterations, _ := cmd.Flags().GetInt("max-iterations")
			if maxIterations < 0 {
				return fmt.Errorf("--max-iterations must be positive, got %d", maxIterations)
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			if !verbose {
				cfg.Logging.Level = "warn"
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			format, _ := cmd.Flags().GetString("format")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log, closeLog := newLogger(cmd.ErrOrStderr(), cfg)
			defer closeLog.Close()

			a, err := newApp(ctx, cfg, log, appOptions{MaxIterations: maxIterations})
			if err != nil {
				return err
			}
			defer a.Close()

			return runProcess(ctx, a.ingestor, a.review, processOptions{
				Path:          args[0],
				Format:        format,
				JSONOutput:    jsonOut,
				HumanProgress: term.IsTerminal(int(os.Stderr.Fd())), //nolint:gosec // G115: fd fits in int
			}, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().Int("max-iterations", 0, "Iteration budget for this run (default: review.max_iterations)")
	cmd.Flags().Bool("json", false, "Write the run as JSON to stdout")
	cmd.Flags().String("format", "", "Document format (pdf|text); detected from the extension when empty")
	cmd.Flags().BoolP("verbose", "v", false, "Log at the configured level instead of warn")
	return cmd
}

// runProcess ingests the file at opts.Path and runs one review over it.
func runProcess(ctx context.Context, ing documentIngester, rev documentReviewer, opts processOptions, stdout, stderr io.Writer) error {
	data, err := os.ReadFile(opts.Path) //nolint:gosec // G304: path is the user's argument
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := ing.Ingest(ctx, filepath.Base(opts.Path), opts.Format, data)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", opts.Path, err)
	}

	run, runErr := rev.Process(ctx, doc, &progressPrinter{w: stderr, human: opts.HumanProgress})
	if run == nil {
		return runErr
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("write run: %w", err)
		}
	} else if run.Result != nil {
		if _, err := fmt.Fprintln(stdout, run.Result.FinalDraft); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if run.LogFile != "" && opts.HumanProgress {
		fmt.Fprintf(stderr, "log file: %s\n", run.LogFile)
	}
	return nil
}

// progressPrinter writes one line per progress event.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	human bool
}

func (p *progressPrinter) Emit(_ context.Context, ev revision.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.human {
		_ = json.NewEncoder(p.w).Encode(ev)
		return
	}
	switch {
	case ev.Step == revision.StepError:
		fmt.Fprintf(p.w, "error: %s\n", ev.Error)
	case ev.Iteration > 0:
		fmt.Fprintf(p.w, "[%d/%d] %s\n", ev.Iteration, ev.MaxIterations, ev.Message)
	default:
		fmt.Fprintln(p.w, ev.Message)
	}
}
