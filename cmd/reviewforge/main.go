// Command reviewforge runs the bounded draft-critique-revise loop as an HTTP
// service, a one-shot CLI, or an MCP server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/ReviewForge/internal/config"
	"github.com/Strob0t/ReviewForge/internal/logger"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reviewforge",
		Short: "Draft, audit and revise falsity charts with an LLM",
		Long: `reviewforge turns a complaint into a falsity chart through a bounded
loop: one draft, then alternating critique and revision until the critique
finds no issues or the iteration budget is spent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", config.DefaultConfigFile, "YAML configuration file")

	root.AddCommand(
		newServeCmd(),
		newProcessCmd(),
		newMCPCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reviewforge version %s\n", version)
		},
	}
}

// loadConfig reads the file named by --config over the defaults, then the
// environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger writing to w. Commands whose stdout
// carries data log to stderr.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, logger.Closer) {
	log, closer := logger.NewWithWriter(w, cfg.Logging)
	slog.SetDefault(log)
	return log, closer
}
