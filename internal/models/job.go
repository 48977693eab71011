// Package models defines the persisted data structures shared across coursearc.
package models

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for job queue operations. Stores wrap these so handlers
// can map them to a response without knowing the database details.
var (
	// ErrJobNotFound reports that no job exists with the given id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobConflict reports that the job's target already has an active
	// duplicate in the queue, so the job cannot re-enter it.
	ErrJobConflict = errors.New("an active job for this target already exists")
)

// JobStatus defines the lifecycle status of a queued job.
type JobStatus string

const (
	// JobStatusWaiting indicates the job has been enqueued and not yet claimed.
	JobStatusWaiting JobStatus = "waiting"
	// JobStatusInitiated indicates a worker has claimed the job and is processing it.
	JobStatusInitiated JobStatus = "initiated"
	// JobStatusCompleted indicates the job has finished, successfully or not.
	// Failures are recorded in the job log, not as a separate status.
	JobStatusCompleted JobStatus = "completed"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusWaiting, JobStatusInitiated, JobStatusCompleted:
		return true
	}
	return false
}

// Log markers used to derive a success flag from the flat completed status.
const (
	MarkerUploaded   = "File uploaded to"
	MarkerLocalCopy  = "Local copy created at"
	MarkerRestored   = "Course restored"
	MarkerDuplicate  = "Course already exists"
	MarkerNotArchive = "File is not MBZ"
)

// BackupJob is one queued course backup.
type BackupJob struct {
	ID          int64      `json:"id"`
	CourseID    int64      `json:"course_id"`
	Status      JobStatus  `json:"status"`
	Logs        string     `json:"logs"`
	TimeCreated time.Time  `json:"time_created"`
	TimeStart   *time.Time `json:"time_start,omitempty"`
	TimeEnd     *time.Time `json:"time_end,omitempty"`
}

// Succeeded reports whether the completed job log contains a destination
// confirmation. The persisted state machine has no failed status, so this is
// derived from log content for observability only.
func (j *BackupJob) Succeeded() bool {
	if j.Status != JobStatusCompleted {
		return false
	}
	return strings.Contains(j.Logs, MarkerUploaded) || strings.Contains(j.Logs, MarkerLocalCopy)
}

// Duration returns how long the job ran, or zero if it never started or finished.
func (j *BackupJob) Duration() time.Duration {
	if j.TimeStart == nil || j.TimeEnd == nil {
		return 0
	}
	return j.TimeEnd.Sub(*j.TimeStart)
}

// RestoreJob is one queued archive restore. RemoteFile is either a path on
// the transfer endpoint or an absolute local filesystem path, depending on
// which source is enabled.
type RestoreJob struct {
	ID          int64      `json:"id"`
	RemoteFile  string     `json:"remote_file"`
	Status      JobStatus  `json:"status"`
	Logs        string     `json:"logs"`
	TimeCreated time.Time  `json:"time_created"`
	TimeStart   *time.Time `json:"time_start,omitempty"`
	TimeEnd     *time.Time `json:"time_end,omitempty"`
}

// Succeeded reports whether the restore reached the restored-course log line.
// A duplicate-course short circuit is not a failure, but it is not a restore
// either, so it reports false.
func (j *RestoreJob) Succeeded() bool {
	if j.Status != JobStatusCompleted {
		return false
	}
	return strings.Contains(j.Logs, MarkerRestored)
}

// Duration returns how long the job ran, or zero if it never started or finished.
func (j *RestoreJob) Duration() time.Duration {
	if j.TimeStart == nil || j.TimeEnd == nil {
		return 0
	}
	return j.TimeEnd.Sub(*j.TimeStart)
}
