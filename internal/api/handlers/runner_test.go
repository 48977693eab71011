package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursearc/coursearc/internal/worker"
)

// mockRunner records the limit it was invoked with.
type mockRunner struct {
	limits  []int
	results []worker.Result
	err     error
}

func (m *mockRunner) Run(_ context.Context, limit int) ([]worker.Result, error) {
	m.limits = append(m.limits, limit)
	return m.results, m.err
}

func setupRunnerRouter(backup, restore JobRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewRunnerHandler(backup, restore, zerolog.Nop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postRun(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestBoundRunCount(t *testing.T) {
	assert.Equal(t, 30, BoundRunCount(0))
	assert.Equal(t, 30, BoundRunCount(-1))
	assert.Equal(t, 1, BoundRunCount(1))
	assert.Equal(t, 50, BoundRunCount(50))
	assert.Equal(t, 50, BoundRunCount(500))
}

func TestRunBackupReturnsLogs(t *testing.T) {
	backup := &mockRunner{results: []worker.Result{
		{JobID: 1, Logs: "Backup job 1 started\nFile uploaded to /backup/a.mbz (1,5 KB)\n"},
		{JobID: 2, Logs: "Backup job 2 started\nError exporting course: boom\n"},
	}}
	r := setupRunnerRouter(backup, &mockRunner{})

	w := postRun(r, "/api/v1/run/backup", `{"count": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{10}, backup.limits)
	assert.Contains(t, w.Body.String(), "File uploaded to /backup/a.mbz")
	assert.Contains(t, w.Body.String(), "Error exporting course: boom")
}

func TestRunDefaultsAndCap(t *testing.T) {
	backup := &mockRunner{}
	restore := &mockRunner{}
	r := setupRunnerRouter(backup, restore)

	postRun(r, "/api/v1/run/backup", ``)
	postRun(r, "/api/v1/run/restore", `{"count": 500}`)

	assert.Equal(t, []int{30}, backup.limits)
	assert.Equal(t, []int{50}, restore.limits)
}

func TestRunErrorSurfacesAsText(t *testing.T) {
	backup := &mockRunner{err: errors.New("database is down")}
	r := setupRunnerRouter(backup, &mockRunner{})

	w := postRun(r, "/api/v1/run/backup", `{"count": 5}`)
	// Failures are reported in the body, not as an error status.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Error: database is down")
}

func TestRunNoJobs(t *testing.T) {
	r := setupRunnerRouter(&mockRunner{}, &mockRunner{})
	w := postRun(r, "/api/v1/run/restore", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No waiting jobs")
}
