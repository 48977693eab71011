package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursearc/coursearc/internal/models"
)

// mockCategoryStore implements CategoryStore for testing.
type mockCategoryStore struct {
	children map[int64][]*models.Category
	courses  map[int64]int
	jobs     map[int64]map[models.JobStatus]int
	listErr  error
}

func newMockCategoryStore() *mockCategoryStore {
	return &mockCategoryStore{
		children: make(map[int64][]*models.Category),
		courses:  make(map[int64]int),
		jobs:     make(map[int64]map[models.JobStatus]int),
	}
}

func (m *mockCategoryStore) ListChildCategories(_ context.Context, parentID int64) ([]*models.Category, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.children[parentID], nil
}

func (m *mockCategoryStore) CountCoursesByCategory(_ context.Context, categoryID int64) (int, error) {
	return m.courses[categoryID], nil
}

func (m *mockCategoryStore) CountBackupJobsByCategory(_ context.Context, categoryID int64) (map[models.JobStatus]int, error) {
	return m.jobs[categoryID], nil
}

func setupCategoriesRouter(store CategoryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewCategoriesHandler(store, zerolog.Nop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestCategoriesList(t *testing.T) {
	store := newMockCategoryStore()
	store.children[0] = []*models.Category{
		{ID: 5, Name: "Science", ParentID: 0},
		{ID: 6, Name: "Arts", ParentID: 0},
	}
	store.courses[5] = 12
	store.jobs[5] = map[models.JobStatus]int{
		models.JobStatusWaiting:   3,
		models.JobStatusCompleted: 9,
	}

	r := setupCategoriesRouter(store)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Categories []struct {
			ID          int64          `json:"id"`
			Name        string         `json:"name"`
			CourseCount int            `json:"course_count"`
			Jobs        map[string]int `json:"jobs"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Categories, 2)

	science := resp.Categories[0]
	assert.Equal(t, "Science", science.Name)
	assert.Equal(t, 12, science.CourseCount)
	assert.Equal(t, 3, science.Jobs["waiting"])
	assert.Equal(t, 9, science.Jobs["completed"])

	arts := resp.Categories[1]
	assert.Equal(t, 0, arts.CourseCount)
	assert.Empty(t, arts.Jobs)
}

func TestCategoriesListParent(t *testing.T) {
	store := newMockCategoryStore()
	store.children[5] = []*models.Category{
		{ID: 20, Name: "Physics", ParentID: 5},
	}

	r := setupCategoriesRouter(store)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories?parent_id=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Physics")

	// A childless parent still answers with an empty list, not an error.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories?parent_id=20", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"categories":[]`)
}

func TestCategoriesListInvalidParent(t *testing.T) {
	r := setupCategoriesRouter(newMockCategoryStore())

	for _, p := range []string{"abc", "-1", "1.5"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories?parent_id="+p, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "parent_id=%q", p)
	}
}

func TestCategoriesListStoreError(t *testing.T) {
	store := newMockCategoryStore()
	store.listErr = errors.New("connection refused")

	r := setupCategoriesRouter(store)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
