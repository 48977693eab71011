package handlers

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/models"
)

// RestoreJobStore defines the persistence operations for restore job endpoints.
type RestoreJobStore interface {
	EnqueueRestoreJob(ctx context.Context, remoteFile string) (bool, error)
	ListRestoreJobs(ctx context.Context, status *models.JobStatus, limit int) ([]*models.RestoreJob, error)
	RequeueRestoreJob(ctx context.Context, id int64) error
}

// RestoreJobsHandler handles restore queue HTTP endpoints.
type RestoreJobsHandler struct {
	store    RestoreJobStore
	logger   zerolog.Logger
	basePath string
}

// NewRestoreJobsHandler creates a new RestoreJobsHandler. basePath is the
// transfer base path enqueued file references must live under.
func NewRestoreJobsHandler(store RestoreJobStore, basePath string, logger zerolog.Logger) *RestoreJobsHandler {
	return &RestoreJobsHandler{
		store:    store,
		basePath: basePath,
		logger:   logger.With().Str("component", "restore_jobs_handler").Logger(),
	}
}

// RegisterRoutes registers restore job routes on the given router group.
func (h *RestoreJobsHandler) RegisterRoutes(r *gin.RouterGroup) {
	jobs := r.Group("/restore-jobs")
	{
		jobs.POST("", h.Enqueue)
		jobs.GET("", h.List)
		jobs.POST("/:id/requeue", h.Requeue)
	}
}

type enqueueRestoreRequest struct {
	Files []string `json:"files" binding:"required,min=1"`
}

// validateFileRef rejects references the workers would refuse anyway:
// wrong extension, traversal attempts, or files outside the base path.
func (h *RestoreJobsHandler) validateFileRef(ref string) (string, bool) {
	ref = strings.ReplaceAll(strings.ReplaceAll(ref, "\x00", ""), "\\", "/")
	if !strings.HasSuffix(strings.ToLower(ref), ".mbz") {
		return "", false
	}
	for _, seg := range strings.Split(ref, "/") {
		if seg == ".." {
			return "", false
		}
	}
	clean := path.Clean(ref)
	if h.basePath != "" && !strings.HasPrefix(clean, h.basePath+"/") {
		return "", false
	}
	return clean, true
}

// Enqueue queues restore jobs for validated file references. Invalid refs
// and refs that already have a pending job are skipped, not errors.
func (h *RestoreJobsHandler) Enqueue(c *gin.Context) {
	var req enqueueRestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files is required"})
		return
	}

	queued, skipped, rejected := 0, 0, 0
	for _, ref := range req.Files {
		clean, ok := h.validateFileRef(ref)
		if !ok {
			rejected++
			continue
		}
		inserted, err := h.store.EnqueueRestoreJob(c.Request.Context(), clean)
		if err != nil {
			h.logger.Error().Err(err).Str("file", clean).Msg("failed to enqueue restore job")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue restore job"})
			return
		}
		if inserted {
			queued++
		} else {
			skipped++
		}
	}

	c.JSON(http.StatusCreated, gin.H{"queued": queued, "skipped": skipped, "rejected": rejected})
}

type restoreJobView struct {
	*models.RestoreJob
	Succeeded bool `json:"succeeded"`
}

// List returns restore jobs newest first, optionally filtered by status.
func (h *RestoreJobsHandler) List(c *gin.Context) {
	var status *models.JobStatus
	if s := c.Query("status"); s != "" {
		st := models.JobStatus(s)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &st
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	jobs, err := h.store.ListRestoreJobs(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list restore jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list restore jobs"})
		return
	}

	views := make([]restoreJobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, restoreJobView{RestoreJob: j, Succeeded: j.Succeeded()})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// Requeue resets a restore job back to waiting for another attempt.
func (h *RestoreJobsHandler) Requeue(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := h.store.RequeueRestoreJob(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, models.ErrJobConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "file already has an active job"})
		case errors.Is(err, models.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		default:
			h.logger.Error().Err(err).Int64("job_id", id).Msg("failed to requeue restore job")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to requeue job"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}
