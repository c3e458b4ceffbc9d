package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	rfotel "github.com/Strob0t/ReviewForge/internal/adapter/otel"
	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/logger"
	"github.com/Strob0t/ReviewForge/internal/port/cache"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
	"github.com/Strob0t/ReviewForge/internal/resilience"
)

// RunLog is a per-run log destination. Close is called exactly once, after
// the terminal event, with the run's outcome.
type RunLog interface {
	progress.Sink
	Path() string
	Close(run *revision.Run) error
}

// RunLogOpener creates the log of a starting run.
type RunLogOpener interface {
	Open(run *revision.Run) (RunLog, error)
}

// ReviewOptions configures a ReviewService. Only Loop is required.
type ReviewOptions struct {
	Loop       *Loop
	Store      runstore.Store      // nil disables the archive
	Cache      cache.Cache         // nil disables run caching
	CacheTTL   time.Duration
	RunLogs    RunLogOpener        // nil disables per-run log files
	Sinks      []progress.Sink     // receive every event of every run, through a Relay each
	SinkBuffer int                 // relay queue size per shared sink; < 1 uses the default
	RunTimeout time.Duration       // 0 means no deadline beyond the caller's
	Limiter    *resilience.Limiter // bounds concurrent runs; nil is unbounded
	Logger     *slog.Logger
}

// ReviewService runs the revision loop on behalf of API, CLI and MCP callers
// and archives the outcome.
type ReviewService struct {
	loop       *Loop
	store      runstore.Store
	cache      cache.Cache
	cacheTTL   time.Duration
	runLogs    RunLogOpener
	relays     []*progress.Relay
	runTimeout time.Duration
	limiter    *resilience.Limiter
	log        *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewReviewService creates a ReviewService.
func NewReviewService(opts ReviewOptions) *ReviewService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	relays := make([]*progress.Relay, 0, len(opts.Sinks))
	for _, sink := range opts.Sinks {
		if sink != nil {
			relays = append(relays, progress.NewRelay(sink, opts.SinkBuffer, log))
		}
	}
	return &ReviewService{
		loop:       opts.Loop,
		store:      opts.Store,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		runLogs:    opts.RunLogs,
		relays:     relays,
		runTimeout: opts.RunTimeout,
		limiter:    opts.Limiter,
		log:        log,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Close delivers the events still queued for the shared sinks. Runs started
// after Close no longer reach them.
func (s *ReviewService) Close() {
	for _, r := range s.relays {
		r.Close()
	}
}

// MaxIterations returns the loop's iteration budget.
func (s *ReviewService) MaxIterations() int { return s.loop.MaxIterations() }

// Process runs the loop over doc. The returned Run is non-nil whenever a run
// was started; err is non-nil only for failed runs and wraps
// domain.ErrLoopFailure.
func (s *ReviewService) Process(ctx context.Context, doc document.Document, sink progress.Sink) (*revision.Run, error) {
	run := &revision.Run{
		ID:            s.newID(),
		DocumentName:  doc.Name,
		DocumentChars: doc.Len(),
		MaxIterations: s.loop.MaxIterations(),
		StartedAt:     s.now().UTC(),
	}
	ctx = logger.WithRunID(ctx, run.ID)
	ctx, span := rfotel.StartRunSpan(ctx, run.ID, doc.Name, run.MaxIterations)
	defer span.End()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}
	log := logger.With(ctx, s.log)

	var runLog RunLog
	if s.runLogs != nil {
		rl, err := s.runLogs.Open(run)
		if err != nil {
			log.Warn("run log unavailable", "error", err)
		} else {
			runLog = rl
			run.LogFile = rl.Path()
		}
	}

	// The archive keeps its own context so a disconnected caller does not
	// lose the record of the run.
	archiveCtx := context.WithoutCancel(ctx)
	s.save(archiveCtx, run)

	sinks := make([]progress.Sink, 0, len(s.relays)+3)
	if runLog != nil {
		sinks = append(sinks, progress.Safe(runLog, log))
	}
	if s.store != nil {
		sinks = append(sinks, progress.Safe(s.archiveSink(archiveCtx, run.ID), log))
	}
	for _, r := range s.relays {
		sinks = append(sinks, r)
	}
	if sink != nil {
		sinks = append(sinks, progress.Safe(sink, log))
	}
	fanout := stampLogFile(run.LogFile, progress.Multi(sinks...))

	res, err := s.runLoop(ctx, doc, fanout)

	done := s.now().UTC()
	run.CompletedAt = &done
	if err != nil {
		run.Status = revision.StatusFailed
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		run.Status = res.Status
		run.Result = res
		span.SetAttributes(attribute.Int("run.iterations", res.Iterations))
	}
	span.SetAttributes(attribute.String("run.status", string(run.Status)))

	if runLog != nil {
		if cerr := runLog.Close(run); cerr != nil {
			log.Warn("close run log", "error", cerr)
		}
	}
	s.save(archiveCtx, run)
	s.cacheRun(archiveCtx, run)
	return run, err
}

// runLoop runs the loop once a run slot is free. A run that ends before it
// gets a slot fails like any other run.
func (s *ReviewService) runLoop(ctx context.Context, doc document.Document, sink progress.Sink) (*revision.Result, error) {
	var (
		res     *revision.Result
		loopErr error
	)
	err := s.limiter.Run(ctx, func() error {
		res, loopErr = s.loop.Run(ctx, doc, sink)
		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: waiting for a run slot: %w", domain.ErrLoopFailure, err)
		sink.Emit(ctx, revision.Event{
			RunID:         logger.RunID(ctx),
			Step:          revision.StepError,
			MaxIterations: s.loop.MaxIterations(),
			Message:       "Processing failed",
			Status:        revision.StatusFailed,
			Error:         err.Error(),
			Timestamp:     s.now().UTC(),
		})
		return nil, err
	}
	return res, loopErr
}

// Stream starts Process in a goroutine and relays its events. The channel is
// closed after the terminal event. Cancelling ctx abandons the run; events
// emitted after that are dropped.
func (s *ReviewService) Stream(ctx context.Context, doc document.Document) <-chan revision.Event {
	ch := make(chan revision.Event, 16)
	go func() {
		defer close(ch)
		relay := progress.Func(func(_ context.Context, ev revision.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
		_, _ = s.Process(ctx, doc, relay)
	}()
	return ch
}

// Get returns an archived run.
func (s *ReviewService) Get(ctx context.Context, id string) (*revision.Run, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, cache.RunKey(id)); err == nil && ok {
			var run revision.Run
			if err := json.Unmarshal(data, &run); err == nil {
				return &run, nil
			}
		}
	}
	if s.store == nil {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, run)
	return run, nil
}

// List returns archived runs, newest first.
func (s *ReviewService) List(ctx context.Context, limit int) ([]revision.Run, error) {
	if s.store == nil {
		return []revision.Run{}, nil
	}
	if limit <= 0 {
		limit = runstore.DefaultListLimit
	}
	return s.store.ListRuns(ctx, limit)
}

// Events returns the archived progress events of a run.
func (s *ReviewService) Events(ctx context.Context, id string) ([]revision.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.store == nil {
		return []revision.Event{}, nil
	}
	return s.store.Events(ctx, id)
}

// Ping reports whether the archive is reachable; nil when there is none.
func (s *ReviewService) Ping(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}

func (s *ReviewService) save(ctx context.Context, run *revision.Run) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		logger.With(ctx, s.log).Error("archive run", "error", err)
	}
}

// cacheRun caches finished runs only; in-progress runs change.
func (s *ReviewService) cacheRun(ctx context.Context, run *revision.Run) {
	if s.cache == nil || run.CompletedAt == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.RunKey(run.ID), data, s.cacheTTL); err != nil {
		logger.With(ctx, s.log).Warn("cache run", "error", err)
	}
}

func (s *ReviewService) archiveSink(ctx context.Context, runID string) progress.Sink {
	var (
		mu  sync.Mutex
		seq int
	)
	return progress.Func(func(_ context.Context, ev revision.Event) {
		mu.Lock()
		n := seq
		seq++
		mu.Unlock()
		if err := s.store.AppendEvent(ctx, runID, n, ev); err != nil && !errors.Is(err, context.Canceled) {
			logger.With(ctx, s.log).Warn("archive event", "step", ev.Step, "error", err)
		}
	})
}

// stampLogFile adds the run log path to terminal events.
func stampLogFile(path string, next progress.Sink) progress.Sink {
	if path == "" {
		return next
	}
	return progress.Func(func(ctx context.Context, ev revision.Event) {
		if ev.Step.Terminal() {
			ev.LogFile = path
		}
		next.Emit(ctx, ev)
	})
}
