package worker

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/category"
	"github.com/coursearc/coursearc/internal/config"
	"github.com/coursearc/coursearc/internal/lms"
	"github.com/coursearc/coursearc/internal/localstore"
	"github.com/coursearc/coursearc/internal/metrics"
	"github.com/coursearc/coursearc/internal/models"
	"github.com/coursearc/coursearc/internal/transfer"
)

// RestoreWorker drains the restore queue: fetch an archive, extract it,
// place it in the category tree and import it into a fresh course. Category
// and course rows are created inside one transaction with the import so a
// failed import leaves no trace.
type RestoreWorker struct {
	store    RestoreStore
	importer Importer
	local    *localstore.Store
	dial     DialFunc
	cfg      *config.Config
	logger   zerolog.Logger
}

func NewRestoreWorker(store RestoreStore, importer Importer, local *localstore.Store, dial DialFunc, cfg *config.Config, logger zerolog.Logger) *RestoreWorker {
	return &RestoreWorker{
		store:    store,
		importer: importer,
		local:    local,
		dial:     dial,
		cfg:      cfg,
		logger:   logger.With().Str("component", "restore_worker").Logger(),
	}
}

// Run reclaims stale jobs, claims up to limit waiting restore jobs and
// processes them sequentially, completing each with its log.
func (w *RestoreWorker) Run(ctx context.Context, limit int) ([]Result, error) {
	reclaimed, err := w.store.ReclaimStaleRestoreJobs(ctx, w.cfg.Worker.StaleAfter)
	if err != nil {
		return nil, err
	}
	if reclaimed > 0 {
		metrics.JobsReclaimed.WithLabelValues("restore").Add(float64(reclaimed))
		w.logger.Warn().Int64("count", reclaimed).Msg("reclaimed stale restore jobs")
	}

	jobs, err := w.store.ClaimRestoreJobs(ctx, limit)
	if err != nil {
		return nil, err
	}
	w.logger.Info().Int("claimed", len(jobs)).Msg("restore batch claimed")

	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		start := time.Now()
		logs := w.process(ctx, job)
		if err := w.store.CompleteRestoreJob(ctx, job.ID, logs); err != nil {
			w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to complete restore job")
			return results, err
		}

		job.Status = models.JobStatusCompleted
		job.Logs = logs
		metrics.ObserveJob("restore", job.Succeeded(), time.Since(start).Seconds())
		w.logger.Info().
			Int64("job_id", job.ID).
			Str("remote_file", job.RemoteFile).
			Bool("succeeded", job.Succeeded()).
			Dur("duration", time.Since(start)).
			Msg("restore job completed")

		results = append(results, Result{JobID: job.ID, Logs: logs})
	}
	return results, nil
}

func (w *RestoreWorker) process(ctx context.Context, job *models.RestoreJob) (logs string) {
	log := &jobLog{}
	defer func() {
		if r := recover(); r != nil {
			log.Linef("Exception: %v", r)
			logs = log.String()
		}
	}()
	w.execute(ctx, job, log)
	return log.String()
}

func (w *RestoreWorker) execute(ctx context.Context, job *models.RestoreJob, log *jobLog) {
	log.Linef("Restore job %d started for %s", job.ID, job.RemoteFile)

	name := path.Base(job.RemoteFile)
	if !hasArchiveExt(name) {
		log.Linef("%s: %s", models.MarkerNotArchive, name)
		return
	}

	archivePath, ok := w.fetch(ctx, job.RemoteFile, log)
	if archivePath != "" {
		defer func() {
			os.Remove(archivePath)
			log.Line("Temporary files deleted")
		}()
	}
	if !ok {
		return
	}

	workDir, err := os.MkdirTemp("", "restore-")
	if err != nil {
		log.Linef("Error creating working directory: %v", err)
		return
	}
	defer os.RemoveAll(workDir)

	if err := w.importer.Extract(ctx, archivePath, workDir); err != nil {
		log.Linef("Error extracting archive: %v", err)
		return
	}

	tx, err := w.store.Begin(ctx)
	if err != nil {
		log.Linef("Error opening transaction: %v", err)
		return
	}
	defer tx.Rollback(ctx)

	// The directory part of the file reference, relative to the transfer
	// base path, is the category path the course belongs to.
	rel := strings.TrimPrefix(job.RemoteFile, w.cfg.Transfer.BasePath)
	segments := category.SplitPath(path.Dir(rel))

	resolver := category.NewResolver(tx)
	categoryID, err := resolver.ResolveOrCreate(ctx, segments, w.cfg.Restore.RootCategoryID, log.Linef)
	if err != nil {
		log.Linef("Error resolving category path: %v", err)
		return
	}

	courseName := strings.TrimSuffix(name, path.Ext(name))

	existing, err := tx.CourseByNameAndCategory(ctx, courseName, categoryID)
	if err != nil {
		log.Linef("Error checking for existing course: %v", err)
		return
	}
	if existing != nil {
		// Not a failure; the course is already there. Rollback discards
		// any categories created above.
		log.Linef("%s: %s (course id %d)", models.MarkerDuplicate, courseName, existing.ID)
		return
	}

	course, err := tx.CreateCourse(ctx, courseName, categoryID)
	if err != nil {
		log.Linef("Error creating course: %v", err)
		return
	}
	log.Linef("Course created: %s (id %d) in category %d", course.FullName, course.ID, categoryID)

	plan := lms.RestorePlan{WorkDir: workDir, CourseID: course.ID}

	okPre, err := w.importer.Precheck(ctx, plan)
	if err != nil {
		log.Linef("Error running pre-check: %v", err)
		return
	}
	if !okPre {
		log.Line("Pre-check failure")
		return
	}

	if err := w.importer.Execute(ctx, plan); err != nil {
		log.Linef("Error importing course: %v", err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Linef("Error committing restore: %v", err)
		return
	}
	log.Linef("%s: %s (course id %d)", models.MarkerRestored, course.FullName, course.ID)
}

// fetch brings the archive to a local temporary path, from the remote
// storage when the transfer endpoint is enabled and from the local store
// otherwise. Returns the temp path (possibly empty) and whether the fetch
// produced a usable archive.
func (w *RestoreWorker) fetch(ctx context.Context, remoteFile string, log *jobLog) (string, bool) {
	tmpPath := path.Join(os.TempDir(), "backup-"+uuid.New().String()+ArchiveExt)

	switch {
	case w.cfg.Transfer.Enabled:
		conn, err := w.dial(ctx, w.cfg.Transfer)
		if err != nil {
			log.Linef("Error connecting to remote storage: %v", err)
			return "", false
		}
		defer conn.Close()

		size, err := conn.Size(remoteFile)
		if err != nil {
			log.Linef("Error checking remote file size: %v", err)
			return "", false
		}
		if size < MinArtifactSize {
			log.Linef("File is too small to be a valid archive (%s)", transfer.FormatBytes(size))
			return "", false
		}

		f, err := os.Create(tmpPath)
		if err != nil {
			log.Linef("Error creating temporary file: %v", err)
			return "", false
		}
		n, err := conn.Download(remoteFile, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Linef("Error downloading file %s: %v", remoteFile, err)
			return tmpPath, false
		}
		metrics.BytesTransferred.WithLabelValues("download").Add(float64(n))
		log.Linef("File downloaded: %s (%s)", remoteFile, transfer.FormatBytes(n))
		return tmpPath, true

	case w.cfg.Local.Enabled && w.local != nil:
		abs, err := w.local.ResolveWithin(remoteFile)
		if err != nil {
			log.Linef("Error resolving local file %s: %v", remoteFile, err)
			return "", false
		}
		info, err := os.Stat(abs)
		if err != nil {
			log.Linef("Error reading local file %s: %v", remoteFile, err)
			return "", false
		}
		if info.Size() < MinArtifactSize {
			log.Linef("File is too small to be a valid archive (%s)", transfer.FormatBytes(info.Size()))
			return "", false
		}

		src, err := os.Open(abs)
		if err != nil {
			log.Linef("Error reading local file %s: %v", remoteFile, err)
			return "", false
		}
		defer src.Close()
		dst, err := os.Create(tmpPath)
		if err != nil {
			log.Linef("Error creating temporary file: %v", err)
			return "", false
		}
		n, err := io.Copy(dst, src)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Linef("Error copying local file %s: %v", remoteFile, err)
			return tmpPath, false
		}
		log.Linef("File copied from local store: %s (%s)", remoteFile, transfer.FormatBytes(n))
		return tmpPath, true

	default:
		log.Line("No artifact source is enabled")
		return "", false
	}
}
