package db

import (
	"context"
	"fmt"
	"time"

	"github.com/coursearc/coursearc/internal/models"
)

const backupJobColumns = "id, course_id, status, logs, time_created, time_start, time_end"

// EnqueueBackupJob inserts a waiting backup job for the course unless one is
// already waiting. Returns true if a row was inserted. Idempotency is
// enforced by the partial unique index on (course_id) WHERE status='waiting'.
func (db *DB) EnqueueBackupJob(ctx context.Context, courseID int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO backup_jobs (course_id, status, logs)
		VALUES ($1, 'waiting', '')
		ON CONFLICT (course_id) WHERE status = 'waiting' DO NOTHING
	`, courseID)
	if err != nil {
		return false, fmt.Errorf("enqueue backup job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimBackupJobs atomically flips up to limit waiting backup jobs to
// initiated and returns them. Selection order is randomized to spread load
// across a large backlog; SKIP LOCKED keeps concurrent claimants disjoint.
func (db *DB) ClaimBackupJobs(ctx context.Context, limit int) ([]*models.BackupJob, error) {
	rows, err := db.Pool.Query(ctx, `
		UPDATE backup_jobs
		SET status = 'initiated', time_start = NOW()
		WHERE id IN (
			SELECT id FROM backup_jobs
			WHERE status = 'waiting'
			ORDER BY random()
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+backupJobColumns, limit)
	if err != nil {
		return nil, fmt.Errorf("claim backup jobs: %w", err)
	}
	defer rows.Close()

	return scanBackupJobs(rows)
}

// ReclaimStaleBackupJobs reverts initiated jobs whose worker presumably died:
// anything initiated longer ago than olderThan goes back to waiting.
func (db *DB) ReclaimStaleBackupJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE backup_jobs
		SET status = 'waiting'
		WHERE status = 'initiated'
		  AND time_start < NOW() - $1::interval
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale backup jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CompleteBackupJob marks the job completed with its accumulated log. Called
// on every exit path; failures live in the log text.
func (db *DB) CompleteBackupJob(ctx context.Context, id int64, logs string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE backup_jobs
		SET status = 'completed', logs = $2, time_end = NOW()
		WHERE id = $1
	`, id, logs)
	if err != nil {
		return fmt.Errorf("complete backup job %d: %w", id, err)
	}
	return nil
}

// RequeueBackupJob resets an existing job to waiting with cleared logs and
// timestamps. Administrative retry trigger.
func (db *DB) RequeueBackupJob(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE backup_jobs
		SET status = 'waiting', logs = '', time_start = NULL, time_end = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("requeue backup job %d: %w", id, models.ErrJobConflict)
		}
		return fmt.Errorf("requeue backup job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("requeue backup job %d: %w", id, models.ErrJobNotFound)
	}
	return nil
}

// GetBackupJob returns a backup job by id.
func (db *DB) GetBackupJob(ctx context.Context, id int64) (*models.BackupJob, error) {
	var j models.BackupJob
	err := db.Pool.QueryRow(ctx,
		"SELECT "+backupJobColumns+" FROM backup_jobs WHERE id = $1", id,
	).Scan(&j.ID, &j.CourseID, &j.Status, &j.Logs, &j.TimeCreated, &j.TimeStart, &j.TimeEnd)
	if err != nil {
		return nil, fmt.Errorf("get backup job %d: %w", id, err)
	}
	return &j, nil
}

// ListBackupJobs returns backup jobs newest first, optionally filtered by status.
func (db *DB) ListBackupJobs(ctx context.Context, status *models.JobStatus, limit int) ([]*models.BackupJob, error) {
	query := "SELECT " + backupJobColumns + " FROM backup_jobs"
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
		return nil, fmt.Errorf("list backup jobs: %w", err)
	}
	defer rows.Close()

	return scanBackupJobs(rows)
}

// CountBackupJobsByCategory returns per-status job counts for courses of a
// category. Feeds the category overview of the enqueue API.
func (db *DB) CountBackupJobsByCategory(ctx context.Context, categoryID int64) (map[models.JobStatus]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT b.status, COUNT(*)
		FROM backup_jobs b
		WHERE b.course_id IN (SELECT c.id FROM courses c WHERE c.category = $1)
		GROUP BY b.status
		ORDER BY b.status
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("count backup jobs by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan backup job count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup job counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBackupJobs(rows rowScanner) ([]*models.BackupJob, error) {
	var jobs []*models.BackupJob
	for rows.Next() {
		var j models.BackupJob
		if err := rows.Scan(&j.ID, &j.CourseID, &j.Status, &j.Logs, &j.TimeCreated, &j.TimeStart, &j.TimeEnd); err != nil {
			return nil, fmt.Errorf("scan backup job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup jobs: %w", err)
	}
	return jobs, nil
}
