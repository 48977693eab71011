// Package main is the entrypoint for the coursearc server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/api"
	"github.com/coursearc/coursearc/internal/config"
	"github.com/coursearc/coursearc/internal/db"
	"github.com/coursearc/coursearc/internal/lms"
	"github.com/coursearc/coursearc/internal/localstore"
	"github.com/coursearc/coursearc/internal/worker"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != "production" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting coursearc server")

	cfg, err := config.Load(os.Getenv("COURSEARC_CONFIG"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	database, err := db.New(ctx, db.DefaultConfig(cfg.Database.URL), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	var local *localstore.Store
	if cfg.Local.Enabled {
		local, err = localstore.New(cfg.Local.Path, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize local store")
			return 1
		}
	}

	lmsClient := lms.NewClient(cfg.LMS.BaseURL, cfg.LMS.Token, cfg.LMS.Timeout)
	store := worker.NewStore(database)
	dial := worker.NewDialFunc(logger)

	backupWorker := worker.NewBackupWorker(store, lmsClient, local, dial, cfg, logger)
	restoreWorker := worker.NewRestoreWorker(store, lmsClient, local, dial, cfg, logger)

	scheduler := worker.NewScheduler(backupWorker, restoreWorker, cfg, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start scheduler")
		return 1
	}
	defer scheduler.Stop()

	build := api.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
	router, err := api.NewRouter(cfg, build, database, local, backupWorker, restoreWorker, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Server.Listen).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("HTTP server failed")
		return 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		return 1
	}

	logger.Info().Msg("Server stopped")
	return 0
}
