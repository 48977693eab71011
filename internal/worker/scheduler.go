package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/config"
)

// Scheduler triggers the workers on their configured cron specs. Each
// trigger is one bounded batch; overlapping triggers for the same worker
// are skipped rather than queued.
type Scheduler struct {
	cron    *cron.Cron
	backup  *BackupWorker
	restore *RestoreWorker
	cfg     *config.Config
	logger  zerolog.Logger
}

func NewScheduler(backup *BackupWorker, restore *RestoreWorker, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		backup:  backup,
		restore: restore,
		cfg:     cfg,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the cron entries and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Worker.BackupCron, func() {
		s.runBatch("backup", func(ctx context.Context) error {
			_, err := s.backup.Run(ctx, s.cfg.Worker.BatchLimit)
			return err
		})
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.Worker.RestoreCron, func() {
		s.runBatch("restore", func(ctx context.Context) error {
			_, err := s.restore.Run(ctx, s.cfg.Worker.BatchLimit)
			return err
		})
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("backup_cron", s.cfg.Worker.BackupCron).
		Str("restore_cron", s.cfg.Worker.RestoreCron).
		Int("batch_limit", s.cfg.Worker.BatchLimit).
		Msg("scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runBatch(kind string, run func(ctx context.Context) error) {
	ctx := context.Background()
	if s.cfg.Worker.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Worker.RunTimeout)
		defer cancel()
	}
	if err := run(ctx); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("scheduled batch failed")
	}
}
