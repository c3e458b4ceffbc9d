package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Strob0t/ReviewForge/internal/adapter/postgres"
	"github.com/Strob0t/ReviewForge/internal/adapter/sqlite"
	"github.com/Strob0t/ReviewForge/internal/config"
)

// migrator applies archive migrations for one driver.
type migrator struct {
	up       func(ctx context.Context) error
	down     func(ctx context.Context, steps int) error
	version  func(ctx context.Context) (int64, error)
	describe string
}

func newMigrator(cfg *config.Config) (*migrator, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		return &migrator{
			up:       func(ctx context.Context) error { return sqlite.RunMigrations(ctx, path) },
			down:     func(ctx context.Context, n int) error { return sqlite.RollbackMigrations(ctx, path, n) },
			version:  func(ctx context.Context) (int64, error) { return sqlite.MigrationVersion(ctx, path) },
			describe: "sqlite " + path,
		}, nil
	case "postgres":
		dsn := cfg.Postgres.DSN
		return &migrator{
			up:       func(ctx context.Context) error { return postgres.RunMigrations(ctx, dsn) },
			down:     func(ctx context.Context, n int) error { return postgres.RollbackMigrations(ctx, dsn, n) },
			version:  func(ctx context.Context) (int64, error) { return postgres.MigrationVersion(ctx, dsn) },
			describe: "postgres",
		}, nil
	default:
		return nil, fmt.Errorf("store driver %q has no migrations", cfg.Store.Driver)
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage run archive schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrator, _ []string) error {
				if err := m.up(cmd.Context()); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the last migration, or the given number of them",
			Args:  cobra.MaximumNArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *migrator, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				if err := m.down(cmd.Context(), steps); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrator, _ []string) error {
				return printVersion(cmd, m)
			}),
		},
	)
	return cmd
}

func withMigrator(fn func(cmd *cobra.Command, m *migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		return fn(cmd, m, args)
	}
}

func printVersion(cmd *cobra.Command, m *migrator) error {
	v, err := m.version(cmd.Context())
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d\n", m.describe, v)
	return nil
}
