package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// HealthStore exposes database health for the health endpoint.
type HealthStore interface {
	Ping(ctx context.Context) error
	Health() map[string]any
}

// HealthHandler serves liveness and readiness information.
type HealthHandler struct {
	store     HealthStore
	localRoot string
	logger    zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. localRoot is the local store
// path whose disk usage is reported; empty disables the disk section.
func NewHealthHandler(store HealthStore, localRoot string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		localRoot: localRoot,
		logger:    logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers health routes on the engine root.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
}

// Healthz reports database and artifact disk health.
func (h *HealthHandler) Healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error().Err(err).Msg("database ping failed")
		resp["status"] = "degraded"
		resp["database"] = gin.H{"error": err.Error()}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["database"] = h.store.Health()

	if h.localRoot != "" {
		if usage, err := disk.Usage(h.localRoot); err == nil {
			resp["disk"] = gin.H{
				"path":         h.localRoot,
				"total_bytes":  usage.Total,
				"free_bytes":   usage.Free,
				"used_percent": usage.UsedPercent,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
