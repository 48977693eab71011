package worker

import (
	"context"
	"time"

	"github.com/coursearc/coursearc/internal/db"
	"github.com/coursearc/coursearc/internal/models"
)

// BackupStore is the queue and course data the backup worker needs.
type BackupStore interface {
	ReclaimStaleBackupJobs(ctx context.Context, olderThan time.Duration) (int64, error)
	ClaimBackupJobs(ctx context.Context, limit int) ([]*models.BackupJob, error)
	CompleteBackupJob(ctx context.Context, id int64, logs string) error
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	CategoryAncestry(ctx context.Context, categoryID int64) ([]string, error)
}

// RestoreStore is the queue access and transactional scope the restore
// worker needs.
type RestoreStore interface {
	ReclaimStaleRestoreJobs(ctx context.Context, olderThan time.Duration) (int64, error)
	ClaimRestoreJobs(ctx context.Context, limit int) ([]*models.RestoreJob, error)
	CompleteRestoreJob(ctx context.Context, id int64, logs string) error
	Begin(ctx context.Context) (RestoreTx, error)
}

// RestoreTx is the transactional slice of the store a restore runs inside.
// Category and course creation commit or roll back together with the import.
type RestoreTx interface {
	ChildCategory(ctx context.Context, parentID int64, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, parentID int64, name string) (*models.Category, error)
	CourseByNameAndCategory(ctx context.Context, fullName string, categoryID int64) (*models.Course, error)
	CreateCourse(ctx context.Context, fullName string, categoryID int64) (*models.Course, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

// Store adapts *db.DB to the worker store interfaces. The indirection exists
// for Begin, which must return the RestoreTx interface rather than *db.Tx.
type Store struct {
	*db.DB
}

func NewStore(d *db.DB) *Store {
	return &Store{DB: d}
}

func (s *Store) Begin(ctx context.Context) (RestoreTx, error) {
	return s.DB.Begin(ctx)
}
