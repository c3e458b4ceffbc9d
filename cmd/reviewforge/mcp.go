package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	rfmcp "github.com/Strob0t/ReviewForge/internal/adapter/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the review tools over MCP stdio",
		Long: `Serve review_document, get_run and list_runs over the Model Context
Protocol on stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol
			log, closeLog := newLogger(os.Stderr, cfg)
			defer closeLog.Close()

			a, err := newApp(ctx, cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := rfmcp.NewServer(
				rfmcp.ServerConfig{Name: "reviewforge", Version: version},
				rfmcp.ServerDeps{Reviewer: a.review, Ingester: a.ingestor, Logger: log},
			)
			return srv.ServeStdio()
		},
	}
}
