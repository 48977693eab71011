package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/models"
)

// CategoryStore defines the persistence operations for category endpoints.
type CategoryStore interface {
	ListChildCategories(ctx context.Context, parentID int64) ([]*models.Category, error)
	CountCoursesByCategory(ctx context.Context, categoryID int64) (int, error)
	CountBackupJobsByCategory(ctx context.Context, categoryID int64) (map[models.JobStatus]int, error)
}

// CategoriesHandler serves the category tree for the backup selection page.
type CategoriesHandler struct {
	store  CategoryStore
	logger zerolog.Logger
}

// NewCategoriesHandler creates a new CategoriesHandler.
func NewCategoriesHandler(store CategoryStore, logger zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		store:  store,
		logger: logger.With().Str("component", "categories_handler").Logger(),
	}
}

// RegisterRoutes registers category routes on the given router group.
func (h *CategoriesHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/categories", h.List)
}

type categoryView struct {
	*models.Category
	CourseCount int                      `json:"course_count"`
	Jobs        map[models.JobStatus]int `json:"jobs"`
}

// List returns the direct children of a category (default: top level) with
// per-category course counts and backup queue status counts.
func (h *CategoriesHandler) List(c *gin.Context) {
	parentID := int64(0)
	if p := c.Query("parent_id"); p != "" {
		parsed, err := strconv.ParseInt(p, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
			return
		}
		parentID = parsed
	}

	cats, err := h.store.ListChildCategories(c.Request.Context(), parentID)
	if err != nil {
		h.logger.Error().Err(err).Int64("parent_id", parentID).Msg("failed to list categories")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list categories"})
		return
	}

	views := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		count, err := h.store.CountCoursesByCategory(c.Request.Context(), cat.ID)
		if err != nil {
			h.logger.Error().Err(err).Int64("category_id", cat.ID).Msg("failed to count courses")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count courses"})
			return
		}
		jobs, err := h.store.CountBackupJobsByCategory(c.Request.Context(), cat.ID)
		if err != nil {
			h.logger.Error().Err(err).Int64("category_id", cat.ID).Msg("failed to count backup jobs")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count backup jobs"})
			return
		}
		views = append(views, categoryView{Category: cat, CourseCount: count, Jobs: jobs})
	}

	c.JSON(http.StatusOK, gin.H{"categories": views})
}
