package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/models"
)

// BackupJobStore defines the persistence operations for backup job endpoints.
type BackupJobStore interface {
	EnqueueBackupJob(ctx context.Context, courseID int64) (bool, error)
	ListBackupJobs(ctx context.Context, status *models.JobStatus, limit int) ([]*models.BackupJob, error)
	RequeueBackupJob(ctx context.Context, id int64) error
	ListCoursesByCategory(ctx context.Context, categoryID int64) ([]*models.Course, error)
}

// BackupJobsHandler handles backup queue HTTP endpoints.
type BackupJobsHandler struct {
	store  BackupJobStore
	logger zerolog.Logger
}

// NewBackupJobsHandler creates a new BackupJobsHandler.
func NewBackupJobsHandler(store BackupJobStore, logger zerolog.Logger) *BackupJobsHandler {
	return &BackupJobsHandler{
		store:  store,
		logger: logger.With().Str("component", "backup_jobs_handler").Logger(),
	}
}

// RegisterRoutes registers backup job routes on the given router group.
func (h *BackupJobsHandler) RegisterRoutes(r *gin.RouterGroup) {
	jobs := r.Group("/backup-jobs")
	{
		jobs.POST("", h.Enqueue)
		jobs.GET("", h.List)
		jobs.POST("/:id/requeue", h.Requeue)
	}
}

type enqueueBackupRequest struct {
	CategoryIDs []int64 `json:"category_ids" binding:"required,min=1"`
}

// Enqueue queues a backup job for every course in the given categories.
// Courses that already have a waiting job are skipped.
func (h *BackupJobsHandler) Enqueue(c *gin.Context) {
	var req enqueueBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category_ids is required"})
		return
	}

	queued, skipped := 0, 0
	for _, categoryID := range req.CategoryIDs {
		courses, err := h.store.ListCoursesByCategory(c.Request.Context(), categoryID)
		if err != nil {
			h.logger.Error().Err(err).Int64("category_id", categoryID).Msg("failed to list courses")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list courses"})
			return
		}
		for _, course := range courses {
			inserted, err := h.store.EnqueueBackupJob(c.Request.Context(), course.ID)
			if err != nil {
				h.logger.Error().Err(err).Int64("course_id", course.ID).Msg("failed to enqueue backup job")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue backup job"})
				return
			}
			if inserted {
				queued++
			} else {
				skipped++
			}
		}
	}

	c.JSON(http.StatusCreated, gin.H{"queued": queued, "skipped": skipped})
}

// jobView augments a job with the derived success flag for report listings.
type backupJobView struct {
	*models.BackupJob
	Succeeded bool `json:"succeeded"`
}

// List returns backup jobs newest first, optionally filtered by status.
func (h *BackupJobsHandler) List(c *gin.Context) {
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

	jobs, err := h.store.ListBackupJobs(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list backup jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list backup jobs"})
		return
	}

	views := make([]backupJobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, backupJobView{BackupJob: j, Succeeded: j.Succeeded()})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// Requeue resets a job back to waiting for another attempt.
func (h *BackupJobsHandler) Requeue(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := h.store.RequeueBackupJob(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, models.ErrJobConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "course already has an active job"})
		case errors.Is(err, models.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		default:
			h.logger.Error().Err(err).Int64("job_id", id).Msg("failed to requeue backup job")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to requeue job"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}
