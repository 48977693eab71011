package handlers

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/category"
	"github.com/coursearc/coursearc/internal/models"
	"github.com/coursearc/coursearc/internal/transfer"
)

// RemoteBrowser is a remote storage session used for archive listings.
type RemoteBrowser interface {
	ListTree(root string) ([]models.FileEntry, error)
	Close()
}

// RemoteDial opens a RemoteBrowser session.
type RemoteDial func(ctx context.Context) (RemoteBrowser, error)

// LocalWalker lists the local artifact store.
type LocalWalker interface {
	Walk(rel string) ([]models.FileEntry, error)
}

// FileQueueStore annotates listings with restore queue state.
type FileQueueStore interface {
	GetRestoreJobByRemoteFile(ctx context.Context, remoteFile string) (*models.RestoreJob, error)
}

// FilesHandler serves the remote and local archive browsers backing the
// restore page: every archive with its size, queue state, and a preview of
// the category path a restore would use.
type FilesHandler struct {
	dial     RemoteDial
	local    LocalWalker
	store    FileQueueStore
	resolver *category.Resolver
	basePath string
	rootID   int64
	logger   zerolog.Logger
}

// NewFilesHandler creates a new FilesHandler. dial and local may be nil when
// the corresponding source is disabled.
func NewFilesHandler(dial RemoteDial, local LocalWalker, store FileQueueStore, resolver *category.Resolver, basePath string, rootID int64, logger zerolog.Logger) *FilesHandler {
	return &FilesHandler{
		dial:     dial,
		local:    local,
		store:    store,
		resolver: resolver,
		basePath: basePath,
		rootID:   rootID,
		logger:   logger.With().Str("component", "files_handler").Logger(),
	}
}

// RegisterRoutes registers file listing routes on the given router group.
func (h *FilesHandler) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.GET("/remote", h.ListRemote)
		files.GET("/local", h.ListLocal)
	}
}

type queueView struct {
	JobID     int64            `json:"job_id"`
	Status    models.JobStatus `json:"status"`
	Succeeded bool             `json:"succeeded"`
}

type fileView struct {
	models.FileEntry
	SizeText        string     `json:"size_text,omitempty"`
	Queue           *queueView `json:"queue,omitempty"`
	CategoryPreview string     `json:"category_preview,omitempty"`
}

// ListRemote returns the remote archive tree under the base path.
func (h *FilesHandler) ListRemote(c *gin.Context) {
	if h.dial == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "remote storage is not enabled"})
		return
	}

	conn, err := h.dial(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to connect to remote storage")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to connect to remote storage"})
		return
	}
	defer conn.Close()

	entries, err := conn.ListTree(h.basePath)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list remote storage")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list remote storage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": h.annotate(c.Request.Context(), entries, true)})
}

// ListLocal returns the local artifact store tree.
func (h *FilesHandler) ListLocal(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "local store is not enabled"})
		return
	}

	entries, err := h.local.Walk("")
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to walk local store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list local store"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": h.annotate(c.Request.Context(), entries, false)})
}

// annotate decorates archive files with human-readable size, restore queue
// state and the category path preview. stripBase removes the transfer base
// path before deriving category segments; local store paths are already
// relative and need no stripping.
func (h *FilesHandler) annotate(ctx context.Context, entries []models.FileEntry, stripBase bool) []fileView {
	views := make([]fileView, 0, len(entries))
	for _, e := range entries {
		v := fileView{FileEntry: e}
		if e.Type == models.FileTypeFile {
			v.SizeText = transfer.FormatBytes(e.SizeBytes)
		}
		if e.Type == models.FileTypeFile && strings.HasSuffix(strings.ToLower(e.Name), ".mbz") {
			if job, err := h.store.GetRestoreJobByRemoteFile(ctx, e.Path); err == nil && job != nil {
				v.Queue = &queueView{JobID: job.ID, Status: job.Status, Succeeded: job.Succeeded()}
			}
			rel := e.Path
			if stripBase {
				rel = strings.TrimPrefix(rel, h.basePath)
			}
			segments := category.SplitPath(path.Dir(rel))
			if desc, err := h.resolver.Describe(ctx, segments, h.rootID); err == nil {
				v.CategoryPreview = desc.String()
			}
		}
		views = append(views, v)
	}
	return views
}
