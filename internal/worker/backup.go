package worker

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/config"
	"github.com/coursearc/coursearc/internal/lms"
	"github.com/coursearc/coursearc/internal/localstore"
	"github.com/coursearc/coursearc/internal/metrics"
	"github.com/coursearc/coursearc/internal/models"
	"github.com/coursearc/coursearc/internal/transfer"
)

// BackupWorker drains the backup queue: export a course, ship the artifact
// to the enabled destinations, delete the artifact, record the log.
type BackupWorker struct {
	store    BackupStore
	exporter Exporter
	local    *localstore.Store
	dial     DialFunc
	cfg      *config.Config
	logger   zerolog.Logger
}

func NewBackupWorker(store BackupStore, exporter Exporter, local *localstore.Store, dial DialFunc, cfg *config.Config, logger zerolog.Logger) *BackupWorker {
	return &BackupWorker{
		store:    store,
		exporter: exporter,
		local:    local,
		dial:     dial,
		cfg:      cfg,
		logger:   logger.With().Str("component", "backup_worker").Logger(),
	}
}

// Run reclaims stale jobs, claims up to limit waiting jobs and processes
// them sequentially. Each claimed job is completed with its log on every
// outcome. A cancelled context stops the batch; unprocessed claimed jobs
// stay initiated and are picked up again by reclamation.
func (w *BackupWorker) Run(ctx context.Context, limit int) ([]Result, error) {
	reclaimed, err := w.store.ReclaimStaleBackupJobs(ctx, w.cfg.Worker.StaleAfter)
	if err != nil {
		return nil, err
	}
	if reclaimed > 0 {
		metrics.JobsReclaimed.WithLabelValues("backup").Add(float64(reclaimed))
		w.logger.Warn().Int64("count", reclaimed).Msg("reclaimed stale backup jobs")
	}

	jobs, err := w.store.ClaimBackupJobs(ctx, limit)
	if err != nil {
		return nil, err
	}
	w.logger.Info().Int("claimed", len(jobs)).Msg("backup batch claimed")

	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		start := time.Now()
		logs := w.process(ctx, job)
		if err := w.store.CompleteBackupJob(ctx, job.ID, logs); err != nil {
			w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to complete backup job")
			return results, err
		}

		job.Status = models.JobStatusCompleted
		job.Logs = logs
		metrics.ObserveJob("backup", job.Succeeded(), time.Since(start).Seconds())
		w.logger.Info().
			Int64("job_id", job.ID).
			Int64("course_id", job.CourseID).
			Bool("succeeded", job.Succeeded()).
			Dur("duration", time.Since(start)).
			Msg("backup job completed")

		results = append(results, Result{JobID: job.ID, Logs: logs})
	}
	return results, nil
}

// process runs one job and converts panics into a terminal log line so a
// single bad job cannot take down the batch.
func (w *BackupWorker) process(ctx context.Context, job *models.BackupJob) (logs string) {
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

func (w *BackupWorker) execute(ctx context.Context, job *models.BackupJob, log *jobLog) {
	log.Linef("Backup job %d started", job.ID)

	course, err := w.store.GetCourse(ctx, job.CourseID)
	if err != nil {
		log.Linef("Error loading course %d: %v", job.CourseID, err)
		return
	}
	log.Linef("Course: %s (id %d)", course.FullName, course.ID)
	log.Linef("Destinations: remote=%t local=%t", w.cfg.Transfer.Enabled, w.cfg.Local.Enabled)
	log.Linef("Organize by category: %t, use course name: %t",
		w.cfg.Transfer.OrganizeByCategory, w.cfg.Transfer.UseCourseName)

	var wantName string
	if w.cfg.Transfer.UseCourseName {
		wantName = artifactName(course.FullName)
	}

	ref, err := w.exporter.Export(ctx, course.ID, lms.ExportOptions{
		Filename:     wantName,
		IncludeUsers: w.cfg.Worker.IncludeUsers,
		Anonymize:    w.cfg.Worker.Anonymize,
	})
	if err != nil {
		log.Linef("Error exporting course: %v", err)
		return
	}

	filename := ref.Filename
	if wantName != "" {
		filename = wantName
	}

	var segments []string
	if w.cfg.Transfer.OrganizeByCategory {
		segments, err = w.store.CategoryAncestry(ctx, course.CategoryID)
		if err != nil {
			log.Linef("Error resolving category path: %v", err)
			segments = nil
		}
	}

	// Remote and local destinations are independent; a remote failure must
	// not stop the local copy.
	if w.cfg.Transfer.Enabled {
		w.uploadRemote(ctx, ref, segments, filename, log)
	}
	if w.cfg.Local.Enabled && w.local != nil {
		w.copyLocal(ref, segments, filename, log)
	}

	if err := w.exporter.DeleteArtifact(ctx, ref); err != nil {
		log.Linef("Error deleting export artifact: %v", err)
	} else {
		log.Line("Export artifact deleted")
	}
}

func (w *BackupWorker) uploadRemote(ctx context.Context, ref *lms.ArtifactRef, segments []string, filename string, log *jobLog) {
	conn, err := w.dial(ctx, w.cfg.Transfer)
	if err != nil {
		log.Linef("Error connecting to remote storage: %v", err)
		return
	}
	defer conn.Close()

	dir := path.Join(append([]string{w.cfg.Transfer.BasePath}, segments...)...)
	warnings := conn.EnsureDir(dir)
	remotePath := path.Join(dir, filename)

	f, err := os.Open(ref.Path)
	if err != nil {
		log.Linef("Error opening artifact %s: %v", ref.Path, err)
		return
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	if err := conn.Upload(remotePath, f); err != nil {
		// Folder warnings are only interesting when the upload into the
		// folder actually failed.
		for _, warn := range warnings {
			log.Line(warn)
		}
		log.Linef("Error uploading file %s: %v (size %s)", remotePath, err, transfer.FormatBytes(size))
		return
	}

	metrics.BytesTransferred.WithLabelValues("upload").Add(float64(size))
	log.Linef("%s %s (%s)", models.MarkerUploaded, remotePath, transfer.FormatBytes(size))
}

func (w *BackupWorker) copyLocal(ref *lms.ArtifactRef, segments []string, filename string, log *jobLog) {
	f, err := os.Open(ref.Path)
	if err != nil {
		log.Linef("Error opening artifact %s: %v", ref.Path, err)
		return
	}
	defer f.Close()

	rel := path.Join(append(append([]string{}, segments...), filename)...)
	n, err := w.local.Copy(rel, f)
	if err != nil {
		log.Linef("Error creating local copy at %s: %v", rel, err)
		return
	}

	metrics.BytesTransferred.WithLabelValues("local_copy").Add(float64(n))
	log.Linef("%s %s (%s)", models.MarkerLocalCopy, path.Join(w.local.Root(), rel), transfer.FormatBytes(n))
}

// artifactName derives the artifact file name from a course name: slashes
// become dots so the name cannot introduce path levels, the rest is reduced
// to the safe character set.
func artifactName(courseName string) string {
	name := strings.ReplaceAll(courseName, "/", ".")
	name = strings.TrimSpace(transfer.SanitizeFilename(name))
	if name == "" {
		name = "backup"
	}
	return name + ArchiveExt
}
