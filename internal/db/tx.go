package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursearc/coursearc/internal/models"
)

// Tx exposes the category and course store methods inside a database
// transaction. Restores create categories and courses atomically with the
// import of the course content, so a failed import rolls everything back.
type Tx struct {
	tx pgx.Tx
}

// Begin opens a transaction wrapped in a Tx.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit; the
// underlying error for an already-closed transaction is swallowed.
func (t *Tx) Rollback(ctx context.Context) {
	_ = t.tx.Rollback(ctx)
}

func (t *Tx) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return getCategory(ctx, t.tx, id)
}

func (t *Tx) ChildCategory(ctx context.Context, parentID int64, name string) (*models.Category, error) {
	return childCategory(ctx, t.tx, parentID, name)
}

func (t *Tx) CreateCategory(ctx context.Context, parentID int64, name string) (*models.Category, error) {
	return createCategory(ctx, t.tx, parentID, name)
}

func (t *Tx) CategoryAncestry(ctx context.Context, categoryID int64) ([]string, error) {
	return categoryAncestry(ctx, t.tx, categoryID)
}

func (t *Tx) CourseByNameAndCategory(ctx context.Context, fullName string, categoryID int64) (*models.Course, error) {
	return courseByNameAndCategory(ctx, t.tx, fullName, categoryID)
}

func (t *Tx) CreateCourse(ctx context.Context, fullName string, categoryID int64) (*models.Course, error) {
	return createCourse(ctx, t.tx, fullName, categoryID)
}
