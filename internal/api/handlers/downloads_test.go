package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursearc/coursearc/internal/localstore"
)

func setupDownloadsRouter(t *testing.T) (*gin.Engine, *localstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := localstore.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	r := gin.New()
	NewDownloadsHandler(local, zerolog.Nop()).RegisterRoutes(r)
	return r, local
}

func get(r *gin.Engine, f string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/download?f="+url.QueryEscape(f), nil)
	r.ServeHTTP(w, req)
	return w
}

func TestDownloadStreamsExactBytes(t *testing.T) {
	r, local := setupDownloadsRouter(t)

	content := []byte("mbz-archive-content-0123456789")
	require.NoError(t, os.MkdirAll(filepath.Join(local.Root(), "Science"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(local.Root(), "Science", "Physics.mbz"), content, 0o600))

	w := get(r, "Science/Physics.mbz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Physics.mbz")
}

func TestDownloadRejectsTraversal(t *testing.T) {
	r, local := setupDownloadsRouter(t)

	// A real file outside the root must stay unreachable even when the
	// traversal would point straight at it.
	outside := filepath.Join(filepath.Dir(local.Root()), "secret.mbz")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	for _, f := range []string{
		"../secret.mbz",
		"../../etc/passwd",
		"..%2F..%2Fetc%2Fpasswd",
		"a/../../secret.mbz",
	} {
		w := get(r, f)
		assert.Equal(t, http.StatusNotFound, w.Code, "f=%q", f)
		assert.NotContains(t, w.Body.String(), "secret")
	}
}

func TestDownloadRejectsWrongExtension(t *testing.T) {
	r, local := setupDownloadsRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(local.Root(), "notes.txt"), []byte("x"), 0o600))

	assert.Equal(t, http.StatusNotFound, get(r, "notes.txt").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "").Code)
}

func TestDownloadMissingFile(t *testing.T) {
	r, _ := setupDownloadsRouter(t)
	assert.Equal(t, http.StatusNotFound, get(r, "nope/missing.mbz").Code)
}

func TestDownloadRejectsSymlinkEscape(t *testing.T) {
	r, local := setupDownloadsRouter(t)

	outsideDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outsideDir, "target.mbz"), []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(outsideDir, filepath.Join(local.Root(), "link")))

	w := get(r, "link/target.mbz")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
