package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursearc/coursearc/internal/models"
)

const courseColumns = "id, full_name, category, time_created"

func getCourse(ctx context.Context, q querier, id int64) (*models.Course, error) {
	var c models.Course
	err := q.QueryRow(ctx,
		"SELECT "+courseColumns+" FROM courses WHERE id = $1", id,
	).Scan(&c.ID, &c.FullName, &c.CategoryID, &c.TimeCreated)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", id, err)
	}
	return &c, nil
}

// courseByNameAndCategory finds a course by exact full name inside a
// category, or nil. This is the duplicate check restores run before creating
// a destination course.
func courseByNameAndCategory(ctx context.Context, q querier, fullName string, categoryID int64) (*models.Course, error) {
	var c models.Course
	err := q.QueryRow(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE full_name = $1 AND category = $2
		ORDER BY id ASC
		LIMIT 1
	`, fullName, categoryID).Scan(&c.ID, &c.FullName, &c.CategoryID, &c.TimeCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup course %q in category %d: %w", fullName, categoryID, err)
	}
	return &c, nil
}

func createCourse(ctx context.Context, q querier, fullName string, categoryID int64) (*models.Course, error) {
	var c models.Course
	err := q.QueryRow(ctx, `
		INSERT INTO courses (full_name, category)
		VALUES ($1, $2)
		RETURNING `+courseColumns, fullName, categoryID,
	).Scan(&c.ID, &c.FullName, &c.CategoryID, &c.TimeCreated)
	if err != nil {
		return nil, fmt.Errorf("create course %q in category %d: %w", fullName, categoryID, err)
	}
	return &c, nil
}

func listCoursesByCategory(ctx context.Context, q querier, categoryID int64) ([]*models.Course, error) {
	rows, err := q.Query(ctx,
		"SELECT "+courseColumns+" FROM courses WHERE category = $1 ORDER BY full_name ASC, id ASC",
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list courses in category %d: %w", categoryID, err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.FullName, &c.CategoryID, &c.TimeCreated); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

func countCoursesByCategory(ctx context.Context, q querier, categoryID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		"SELECT COUNT(*) FROM courses WHERE category = $1", categoryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count courses in category %d: %w", categoryID, err)
	}
	return n, nil
}

func (db *DB) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	return getCourse(ctx, db.Pool, id)
}

func (db *DB) CourseByNameAndCategory(ctx context.Context, fullName string, categoryID int64) (*models.Course, error) {
	return courseByNameAndCategory(ctx, db.Pool, fullName, categoryID)
}

func (db *DB) CreateCourse(ctx context.Context, fullName string, categoryID int64) (*models.Course, error) {
	return createCourse(ctx, db.Pool, fullName, categoryID)
}

func (db *DB) ListCoursesByCategory(ctx context.Context, categoryID int64) ([]*models.Course, error) {
	return listCoursesByCategory(ctx, db.Pool, categoryID)
}

func (db *DB) CountCoursesByCategory(ctx context.Context, categoryID int64) (int, error) {
	return countCoursesByCategory(ctx, db.Pool, categoryID)
}
