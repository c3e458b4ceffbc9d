package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/Strob0t/ReviewForge/internal/adapter/litellm"
	natsadapter "github.com/Strob0t/ReviewForge/internal/adapter/nats"
	"github.com/Strob0t/ReviewForge/internal/adapter/natskv"
	"github.com/Strob0t/ReviewForge/internal/adapter/openai"
	rfotel "github.com/Strob0t/ReviewForge/internal/adapter/otel"
	"github.com/Strob0t/ReviewForge/internal/adapter/pdf"
	"github.com/Strob0t/ReviewForge/internal/adapter/postgres"
	"github.com/Strob0t/ReviewForge/internal/adapter/ristretto"
	"github.com/Strob0t/ReviewForge/internal/adapter/runlog"
	"github.com/Strob0t/ReviewForge/internal/adapter/sqlite"
	"github.com/Strob0t/ReviewForge/internal/adapter/tiered"
	"github.com/Strob0t/ReviewForge/internal/adapter/ws"
	"github.com/Strob0t/ReviewForge/internal/config"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/broadcast"
	"github.com/Strob0t/ReviewForge/internal/port/cache"
	"github.com/Strob0t/ReviewForge/internal/port/generation"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
	"github.com/Strob0t/ReviewForge/internal/resilience"
	"github.com/Strob0t/ReviewForge/internal/secrets"
	"github.com/Strob0t/ReviewForge/internal/service"
)

// pdfMaxPages bounds text extraction of uploaded PDFs.
const pdfMaxPages = 500

// app is the wired core shared by every command.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	review   *service.ReviewService
	ingestor *service.Ingestor
	store    runstore.Store
	queue    *natsadapter.Queue
	llmCheck func(context.Context) error

	closers []func()
}

// appOptions adjusts what newApp wires.
type appOptions struct {
	// Sinks are added to the service-wide progress sinks.
	Sinks []progress.Sink
	// MaxIterations overrides review.max_iterations when > 0.
	MaxIterations int
	// NoNATS skips the event bus even when enabled in config.
	NoNATS bool
	// Secrets, when set, supplies rotatable provider credentials.
	Secrets *secrets.Vault
	// Status, when set, receives circuit breaker transitions.
	Status broadcast.Broadcaster
}

// newApp wires the generation provider, loop, archive, caches and sinks.
// On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	// OpenTelemetry (no-op when disabled)
	shutdownOTel, err := rfotel.Setup(ctx, cfg.OTel, log)
	if err != nil {
		return a, fmt.Errorf("otel: %w", err)
	}
	a.onClose(func() {
		if err := shutdownOTel(context.WithoutCancel(ctx)); err != nil {
			log.Warn("otel shutdown", "error", err)
		}
	})
	metrics, err := rfotel.NewMetrics(otel.Meter(rfotel.MeterName()))
	if err != nil {
		return a, fmt.Errorf("metrics: %w", err)
	}

	// Generation provider behind a circuit breaker
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to resilience.State) {
		log.Warn("generation circuit breaker state change", "from", from, "to", to)
		if opts.Status != nil {
			opts.Status.BroadcastEvent(context.WithoutCancel(ctx), ws.EventProviderStatus, ws.ProviderStatusEvent{
				Provider: cfg.Generation.Provider,
				From:     string(from),
				To:       string(to),
			})
		}
	})
	gen, llmCheck, err := newGenerator(cfg, breaker, opts.Secrets)
	if err != nil {
		return a, err
	}
	a.llmCheck = llmCheck
	gen = service.WithCallTimeout(gen, cfg.Review.CallTimeout)

	prompts, err := service.LoadPrompts(cfg.Generation.PromptDir)
	if err != nil {
		return a, fmt.Errorf("prompts: %w", err)
	}
	roles := service.NewRoles(gen, prompts).Wrap(rfotel.InstrumentRole(metrics))

	maxIterations := cfg.Review.MaxIterations
	if opts.MaxIterations > 0 {
		maxIterations = opts.MaxIterations
	}
	loop := service.NewLoop(roles, prompts, revision.DefaultPolicy(), maxIterations, log)

	// Run archive
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return a, err
	}
	if store != nil {
		a.store = store
		a.onClose(func() {
			if err := store.Close(); err != nil {
				log.Warn("store close", "error", err)
			}
		})
	}

	// Event bus and result caches
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return a, fmt.Errorf("l1 cache: %w", err)
	}
	a.onClose(l1.Close)
	var runCache cache.Cache = l1

	sinks := append([]progress.Sink{metrics}, opts.Sinks...)
	if cfg.NATS.Enabled && !opts.NoNATS {
		q, err := natsadapter.Connect(ctx, cfg.NATS.URL, log)
		if err != nil {
			return a, fmt.Errorf("nats: %w", err)
		}
		a.queue = q
		a.onClose(func() {
			if err := q.Drain(); err != nil {
				log.Warn("nats drain", "error", err)
			}
		})
		kv, err := q.KeyValue(ctx, cfg.NATS.KVBucket, cfg.Cache.TTL)
		if err != nil {
			return a, fmt.Errorf("nats kv: %w", err)
		}
		runCache = tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)
		sinks = append(sinks, natsadapter.NewPublisher(q, log))
	}

	// Per-run log files
	var runLogs service.RunLogOpener
	if cfg.Logging.RunDir != "" {
		dir, err := runlog.NewDir(cfg.Logging.RunDir)
		if err != nil {
			return a, fmt.Errorf("run log dir: %w", err)
		}
		runLogs = dir
	}

	a.ingestor = service.NewIngestor(document.Gate{
		MinChars:   cfg.Review.MinDocumentChars,
		Indicators: cfg.Review.Indicators,
	}, pdf.NewExtractor(pdfMaxPages))

	a.review = service.NewReviewService(service.ReviewOptions{
		Loop:       loop,
		Store:      a.store,
		Cache:      runCache,
		CacheTTL:   cfg.Cache.TTL,
		RunLogs:    runLogs,
		Sinks:      sinks,
		RunTimeout: cfg.Review.RunTimeout,
		Limiter:    resilience.NewLimiter(cfg.Review.MaxConcurrentRuns),
		Logger:     log,
	})
	// Registered last so queued events reach the hub and NATS before they close.
	a.onClose(a.review.Close)
	return a, nil
}

// onClose registers fn to run on Close, in reverse registration order.
func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

// Close releases everything newApp opened.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newGenerator builds the configured provider. The returned check probes the
// provider for /health; nil means the provider has no health endpoint.
func newGenerator(cfg *config.Config, breaker *resilience.Breaker, vault *secrets.Vault) (generation.Generator, func(context.Context) error, error) {
	switch cfg.Generation.Provider {
	case "litellm":
		client := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
		client.SetBreaker(breaker)
		if vault != nil {
			client.SetKeySource(vault.Source(secrets.LiteLLMMasterKey))
		}
		gen := litellm.NewGenerator(client, litellm.GeneratorOptions{
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		})
		check := func(ctx context.Context) error {
			ok, err := client.Health(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("litellm unhealthy")
			}
			return nil
		}
		return gen, check, nil
	case "openai":
		gen, err := openai.NewGenerator(openai.Options{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai: %w", err)
		}
		gen.SetBreaker(breaker)
		return gen, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

// openStore opens the configured run archive, applying pending migrations.
// The "none" driver yields a nil store.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (runstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("run archive ready", "driver", "sqlite", "path", cfg.Store.SQLitePath)
		return s, nil
	case "postgres":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("run archive ready", "driver", "postgres")
		return postgres.NewStore(pool), nil
	default:
		log.Info("run archive disabled")
		return nil, nil
	}
}
