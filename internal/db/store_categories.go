package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursearc/coursearc/internal/models"
)

const categoryColumns = "id, name, parent, visible, time_created"

// Category queries run both on the pool and inside restore transactions, so
// the implementations take a querier and are surfaced as methods on DB and Tx.

func getCategory(ctx context.Context, q querier, id int64) (*models.Category, error) {
	var c models.Category
	err := q.QueryRow(ctx,
		"SELECT "+categoryColumns+" FROM course_categories WHERE id = $1", id,
	).Scan(&c.ID, &c.Name, &c.ParentID, &c.Visible, &c.TimeCreated)
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

// childCategory resolves a child of parentID by exact name. When duplicate
// siblings share a name the lowest id wins, so repeated resolutions are
// deterministic. Returns nil when no child matches.
func childCategory(ctx context.Context, q querier, parentID int64, name string) (*models.Category, error) {
	var c models.Category
	err := q.QueryRow(ctx, `
		SELECT `+categoryColumns+`
		FROM course_categories
		WHERE parent = $1 AND name = $2
		ORDER BY id ASC
		LIMIT 1
	`, parentID, name).Scan(&c.ID, &c.Name, &c.ParentID, &c.Visible, &c.TimeCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup category %q under %d: %w", name, parentID, err)
	}
	return &c, nil
}

func createCategory(ctx context.Context, q querier, parentID int64, name string) (*models.Category, error) {
	var c models.Category
	err := q.QueryRow(ctx, `
		INSERT INTO course_categories (name, parent, visible)
		VALUES ($1, $2, TRUE)
		RETURNING `+categoryColumns, name, parentID,
	).Scan(&c.ID, &c.Name, &c.ParentID, &c.Visible, &c.TimeCreated)
	if err != nil {
		return nil, fmt.Errorf("create category %q under %d: %w", name, parentID, err)
	}
	return &c, nil
}

func listChildCategories(ctx context.Context, q querier, parentID int64) ([]*models.Category, error) {
	rows, err := q.Query(ctx,
		"SELECT "+categoryColumns+" FROM course_categories WHERE parent = $1 ORDER BY name ASC, id ASC",
		parentID)
	if err != nil {
		return nil, fmt.Errorf("list child categories of %d: %w", parentID, err)
	}
	defer rows.Close()

	var cats []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.Visible, &c.TimeCreated); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// CategoryAncestry returns the names of the category chain from the tree root
// down to and including categoryID. Used to build remote directory paths for
// uploaded backups.
func categoryAncestry(ctx context.Context, q querier, categoryID int64) ([]string, error) {
	var names []string
	id := categoryID
	for id > 0 {
		c, err := getCategory(ctx, q, id)
		if err != nil {
			return nil, err
		}
		names = append(names, c.Name)
		id = c.ParentID
	}
	// Walked leaf to root; callers want root first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

func (db *DB) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return getCategory(ctx, db.Pool, id)
}

func (db *DB) ChildCategory(ctx context.Context, parentID int64, name string) (*models.Category, error) {
	return childCategory(ctx, db.Pool, parentID, name)
}

func (db *DB) CreateCategory(ctx context.Context, parentID int64, name string) (*models.Category, error) {
	return createCategory(ctx, db.Pool, parentID, name)
}

func (db *DB) ListChildCategories(ctx context.Context, parentID int64) ([]*models.Category, error) {
	return listChildCategories(ctx, db.Pool, parentID)
}

func (db *DB) CategoryAncestry(ctx context.Context, categoryID int64) ([]string, error) {
	return categoryAncestry(ctx, db.Pool, categoryID)
}
