// Package main is the entrypoint for the coursearc CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coursearc/coursearc/internal/config"
	"github.com/coursearc/coursearc/internal/db"
	"github.com/coursearc/coursearc/internal/lms"
	"github.com/coursearc/coursearc/internal/localstore"
	"github.com/coursearc/coursearc/internal/worker"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const (
	defaultRunCount = 30
	maxRunCount     = 50
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coursearc",
		Short: "Coursearc course backup and restore queue",
		Long: `Coursearc queues course backups and restores and ships the
archives to remote or local storage.

Run 'coursearc run backup' to process waiting backup jobs once.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newMigrateCmd(),
		newRunCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Coursearc %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := db.New(ctx, db.DefaultConfig(cfg.Database.URL), logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer database.Close()

			if err := database.Migrate(ctx); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process waiting jobs once",
	}
	runCmd.AddCommand(
		newRunBackupCmd(),
		newRunRestoreCmd(),
	)
	return runCmd
}

func newRunBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [count]",
		Short: "Claim and process waiting backup jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := parseRunCount(args)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), limit, func(ctx context.Context, deps *runDeps, n int) ([]worker.Result, error) {
				return deps.backup.Run(ctx, n)
			})
		},
	}
}

func newRunRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [count]",
		Short: "Claim and process waiting restore jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := parseRunCount(args)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), limit, func(ctx context.Context, deps *runDeps, n int) ([]worker.Result, error) {
				return deps.restore.Run(ctx, n)
			})
		},
	}
}

func parseRunCount(args []string) (int, error) {
	if len(args) == 0 {
		return defaultRunCount, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[0])
	}
	if n > maxRunCount {
		n = maxRunCount
	}
	return n, nil
}

type runDeps struct {
	backup  *worker.BackupWorker
	restore *worker.RestoreWorker
}

func runOnce(ctx context.Context, limit int, run func(context.Context, *runDeps, int) ([]worker.Result, error)) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.New(ctx, db.DefaultConfig(cfg.Database.URL), logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	var local *localstore.Store
	if cfg.Local.Enabled {
		local, err = localstore.New(cfg.Local.Path, logger)
		if err != nil {
			return fmt.Errorf("initialize local store: %w", err)
		}
	}

	lmsClient := lms.NewClient(cfg.LMS.BaseURL, cfg.LMS.Token, cfg.LMS.Timeout)
	store := worker.NewStore(database)
	dial := worker.NewDialFunc(logger)

	deps := &runDeps{
		backup:  worker.NewBackupWorker(store, lmsClient, local, dial, cfg, logger),
		restore: worker.NewRestoreWorker(store, lmsClient, local, dial, cfg, logger),
	}

	results, err := run(ctx, deps, limit)
	for i, res := range results {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(res.Logs)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No waiting jobs")
	}
	return nil
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	cfg, err := config.Load(os.Getenv("COURSEARC_CONFIG"))
	if err != nil {
		return nil, logger, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, logger, nil
}
