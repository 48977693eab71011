package db

import (
	"context"
	"fmt"
	"time"

	"github.com/coursearc/coursearc/internal/models"
)

const restoreJobColumns = "id, remote_file, status, logs, time_created, time_start, time_end"

// EnqueueRestoreJob inserts a waiting restore job for the remote file unless
// one is already pending or running for the same path. Returns true if a row
// was inserted.
func (db *DB) EnqueueRestoreJob(ctx context.Context, remoteFile string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO restore_jobs (remote_file, status, logs)
		VALUES ($1, 'waiting', '')
		ON CONFLICT (remote_file) WHERE status <> 'completed' DO NOTHING
	`, remoteFile)
	if err != nil {
		return false, fmt.Errorf("enqueue restore job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimRestoreJobs atomically flips up to limit waiting restore jobs to
// initiated and returns them, in randomized order.
func (db *DB) ClaimRestoreJobs(ctx context.Context, limit int) ([]*models.RestoreJob, error) {
	rows, err := db.Pool.Query(ctx, `
		UPDATE restore_jobs
		SET status = 'initiated', time_start = NOW()
		WHERE id IN (
			SELECT id FROM restore_jobs
			WHERE status = 'waiting'
			ORDER BY random()
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+restoreJobColumns, limit)
	if err != nil {
		return nil, fmt.Errorf("claim restore jobs: %w", err)
	}
	defer rows.Close()

	return scanRestoreJobs(rows)
}

// ReclaimStaleRestoreJobs reverts initiated restore jobs older than olderThan
// back to waiting.
func (db *DB) ReclaimStaleRestoreJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE restore_jobs
		SET status = 'waiting'
		WHERE status = 'initiated'
		  AND time_start < NOW() - $1::interval
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale restore jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CompleteRestoreJob marks the job completed with its accumulated log.
func (db *DB) CompleteRestoreJob(ctx context.Context, id int64, logs string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE restore_jobs
		SET status = 'completed', logs = $2, time_end = NOW()
		WHERE id = $1
	`, id, logs)
	if err != nil {
		return fmt.Errorf("complete restore job %d: %w", id, err)
	}
	return nil
}

// RequeueRestoreJob resets an existing restore job to waiting with cleared
// logs and timestamps.
func (db *DB) RequeueRestoreJob(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE restore_jobs
		SET status = 'waiting', logs = '', time_start = NULL, time_end = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("requeue restore job %d: %w", id, models.ErrJobConflict)
		}
		return fmt.Errorf("requeue restore job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("requeue restore job %d: %w", id, models.ErrJobNotFound)
	}
	return nil
}

// GetRestoreJob returns a restore job by id.
func (db *DB) GetRestoreJob(ctx context.Context, id int64) (*models.RestoreJob, error) {
	var j models.RestoreJob
	err := db.Pool.QueryRow(ctx,
		"SELECT "+restoreJobColumns+" FROM restore_jobs WHERE id = $1", id,
	).Scan(&j.ID, &j.RemoteFile, &j.Status, &j.Logs, &j.TimeCreated, &j.TimeStart, &j.TimeEnd)
	if err != nil {
		return nil, fmt.Errorf("get restore job %d: %w", id, err)
	}
	return &j, nil
}

// GetRestoreJobByRemoteFile returns the most recent restore job for a remote
// path, or nil if none exists. Used by the file browser to annotate listings
// with queue state.
func (db *DB) GetRestoreJobByRemoteFile(ctx context.Context, remoteFile string) (*models.RestoreJob, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+restoreJobColumns+" FROM restore_jobs WHERE remote_file = $1 ORDER BY id DESC LIMIT 1",
		remoteFile)
	if err != nil {
		return nil, fmt.Errorf("get restore job by remote file: %w", err)
	}
	defer rows.Close()

	jobs, err := scanRestoreJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// ListRestoreJobs returns restore jobs newest first, optionally filtered by status.
func (db *DB) ListRestoreJobs(ctx context.Context, status *models.JobStatus, limit int) ([]*models.RestoreJob, error) {
	query := "SELECT " + restoreJobColumns + " FROM restore_jobs"
	args := []any{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY time_created DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list restore jobs: %w", err)
	}
	defer rows.Close()

	return scanRestoreJobs(rows)
}

func scanRestoreJobs(rows rowScanner) ([]*models.RestoreJob, error) {
	var jobs []*models.RestoreJob
	for rows.Next() {
		var j models.RestoreJob
		if err := rows.Scan(&j.ID, &j.RemoteFile, &j.Status, &j.Logs, &j.TimeCreated, &j.TimeStart, &j.TimeEnd); err != nil {
			return nil, fmt.Errorf("scan restore job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restore jobs: %w", err)
	}
	return jobs, nil
}
