package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursearc/coursearc/internal/models"
)

// mockBackupJobStore implements BackupJobStore for testing.
type mockBackupJobStore struct {
	coursesByCategory map[int64][]*models.Course
	waiting           map[int64]bool
	jobs              []*models.BackupJob
	requeued          []int64
	requeueErr        error
}

func newMockBackupJobStore() *mockBackupJobStore {
	return &mockBackupJobStore{
		coursesByCategory: make(map[int64][]*models.Course),
		waiting:           make(map[int64]bool),
	}
}

func (m *mockBackupJobStore) EnqueueBackupJob(_ context.Context, courseID int64) (bool, error) {
	if m.waiting[courseID] {
		return false, nil
	}
	m.waiting[courseID] = true
	return true, nil
}

func (m *mockBackupJobStore) ListBackupJobs(_ context.Context, status *models.JobStatus, _ int) ([]*models.BackupJob, error) {
	if status == nil {
		return m.jobs, nil
	}
	var out []*models.BackupJob
	for _, j := range m.jobs {
		if j.Status == *status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *mockBackupJobStore) RequeueBackupJob(_ context.Context, id int64) error {
	if m.requeueErr != nil {
		return m.requeueErr
	}
	m.requeued = append(m.requeued, id)
	return nil
}

func (m *mockBackupJobStore) ListCoursesByCategory(_ context.Context, categoryID int64) ([]*models.Course, error) {
	return m.coursesByCategory[categoryID], nil
}

func setupBackupJobsRouter(store BackupJobStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewBackupJobsHandler(store, zerolog.Nop())
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestBackupJobsEnqueue(t *testing.T) {
	store := newMockBackupJobStore()
	store.coursesByCategory[5] = []*models.Course{
		{ID: 1, FullName: "Algebra", CategoryID: 5},
		{ID: 2, FullName: "Geometry", CategoryID: 5},
	}
	store.waiting[2] = true // already queued

	r := setupBackupJobsRouter(store)
	body, _ := json.Marshal(map[string]any{"category_ids": []int64{5}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["queued"])
	assert.Equal(t, 1, resp["skipped"])
}

func TestBackupJobsEnqueueValidation(t *testing.T) {
	r := setupBackupJobsRouter(newMockBackupJobStore())

	for _, body := range []string{`{}`, `{"category_ids": []}`, `not-json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestBackupJobsList(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Minute)
	store := newMockBackupJobStore()
	store.jobs = []*models.BackupJob{
		{ID: 1, CourseID: 10, Status: models.JobStatusCompleted,
			Logs: "File uploaded to /backup/a.mbz (1,5 KB)\n", TimeStart: &now, TimeEnd: &end},
		{ID: 2, CourseID: 11, Status: models.JobStatusCompleted,
			Logs: "Error exporting course: boom\n", TimeStart: &now, TimeEnd: &end},
		{ID: 3, CourseID: 12, Status: models.JobStatusWaiting},
	}

	r := setupBackupJobsRouter(store)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/backup-jobs", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs []struct {
			ID        int64  `json:"id"`
			Status    string `json:"status"`
			Succeeded bool   `json:"succeeded"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 3)
	assert.True(t, resp.Jobs[0].Succeeded)
	assert.False(t, resp.Jobs[1].Succeeded, "a job that only logged errors is not a success")
	assert.False(t, resp.Jobs[2].Succeeded)
}

func TestBackupJobsListStatusFilter(t *testing.T) {
	store := newMockBackupJobStore()
	store.jobs = []*models.BackupJob{
		{ID: 1, Status: models.JobStatusWaiting},
		{ID: 2, Status: models.JobStatusCompleted},
	}

	r := setupBackupJobsRouter(store)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/backup-jobs?status=waiting", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/backup-jobs?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackupJobsRequeue(t *testing.T) {
	store := newMockBackupJobStore()
	r := setupBackupJobsRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs/7/requeue", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7}, store.requeued)

	store.requeueErr = fmt.Errorf("requeue backup job 999: %w", models.ErrJobNotFound)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs/999/requeue", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs/abc/requeue", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackupJobsRequeueConflict(t *testing.T) {
	store := newMockBackupJobStore()
	store.requeueErr = fmt.Errorf("requeue backup job 7: %w", models.ErrJobConflict)
	r := setupBackupJobsRouter(store)

	// The course already has a waiting job, so the old one may not re-enter
	// the queue.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs/7/requeue", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, store.requeued)
}

func TestBackupJobsRequeueStoreError(t *testing.T) {
	store := newMockBackupJobStore()
	store.requeueErr = errors.New("connection reset")
	r := setupBackupJobsRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backup-jobs/7/requeue", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
