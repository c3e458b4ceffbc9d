package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	rfhttp "github.com/Strob0t/ReviewForge/internal/adapter/http"
	"github.com/Strob0t/ReviewForge/internal/adapter/markdown"
	rfmcp "github.com/Strob0t/ReviewForge/internal/adapter/mcp"
	rfotel "github.com/Strob0t/ReviewForge/internal/adapter/otel"
	"github.com/Strob0t/ReviewForge/internal/adapter/ws"
	"github.com/Strob0t/ReviewForge/internal/config"
	"github.com/Strob0t/ReviewForge/internal/middleware"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
	"github.com/Strob0t/ReviewForge/internal/secrets"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			path, _ := cmd.Flags().GetString("config")
			return serve(ctx, cfg, path)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, configPath string) error {
	log, closeLog := newLogger(os.Stdout, cfg)
	defer closeLog.Close()

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"provider", cfg.Generation.Provider,
		"model", cfg.Generation.Model,
		"store", cfg.Store.Driver,
		"nats", cfg.NATS.Enabled,
	)

	// Credentials reloaded on SIGHUP
	vault, err := secrets.NewVault(secrets.ConfigLoader(configPath))
	if err != nil {
		return err
	}

	hub := ws.NewHub(log, cfg.Server.CORSOrigin)
	defer hub.Close()

	a, err := newApp(ctx, cfg, log, appOptions{Sinks: []progress.Sink{hub}, Secrets: vault, Status: hub})
	if err != nil {
		return err
	}
	defer a.Close()

	// Rate limiter for the generation endpoints
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = rfmcp.NewServer(
			rfmcp.ServerConfig{Name: "reviewforge", Version: version, APIKeySource: vault.Source(secrets.MCPAPIKey)},
			rfmcp.ServerDeps{Reviewer: a.review, Ingester: a.ingestor, Logger: log},
		).HTTPHandler()
		log.Info("mcp endpoint enabled", "auth", vault.Get(secrets.MCPAPIKey) != "")
	}

	handlers := &rfhttp.Handlers{
		Reviewer:       a.review,
		Ingester:       a.ingestor,
		Renderer:       markdown.NewRenderer(),
		Health:         healthChecks(a),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Version:        version,
		Log:            log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(rfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(rfhttp.SecurityHeaders)
	r.Use(rfhttp.Logger(log))
	r.Use(rfotel.HTTPMiddleware(cfg.OTel.ServiceName))

	rfhttp.MountRoutes(r, handlers, rfhttp.RouteOptions{
		RateLimit: limiter.Handler,
		WebSocket: hub.HandleWS,
		MCP:       mcpHandler,
	})

	// Runs are bounded by review.run_timeout, so no write deadline applies
	// to synchronous and streaming responses.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		reloadSecrets(gctx, vault, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// reloadSecrets reloads vault on every SIGHUP until ctx ends.
func reloadSecrets(ctx context.Context, vault *secrets.Vault, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := vault.Reload(); err != nil {
				log.Error("secret reload failed, keeping previous values", "error", err)
				continue
			}
			log.Info("secrets reloaded",
				"litellm_master_key", vault.Redacted(secrets.LiteLLMMasterKey),
				"mcp_api_key", vault.Redacted(secrets.MCPAPIKey),
			)
		}
	}
}

// healthChecks reports the archive, event bus and generation provider.
// Unconfigured dependencies show as "disabled".
func healthChecks(a *app) []rfhttp.HealthCheck {
	checks := []rfhttp.HealthCheck{{Name: "store"}, {Name: "nats"}, {Name: "llm", Check: a.llmCheck}}
	if a.store != nil {
		checks[0].Check = a.store.Ping
	}
	if q := a.queue; q != nil {
		checks[1].Check = func(context.Context) error {
			if !q.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	return checks
}
