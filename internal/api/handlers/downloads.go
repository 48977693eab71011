package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/localstore"
)

// DownloadsHandler streams archives out of the local store. Anything that is
// not an archive strictly inside the store root is a 404; the handler never
// distinguishes "not found" from "not allowed".
type DownloadsHandler struct {
	local  *localstore.Store
	logger zerolog.Logger
}

// NewDownloadsHandler creates a new DownloadsHandler.
func NewDownloadsHandler(local *localstore.Store, logger zerolog.Logger) *DownloadsHandler {
	return &DownloadsHandler{
		local:  local,
		logger: logger.With().Str("component", "downloads_handler").Logger(),
	}
}

// RegisterRoutes registers the download route on the engine root, matching
// the path the archive links point at.
func (h *DownloadsHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/download", h.Download)
}

// Download serves the archive named by the f query parameter.
func (h *DownloadsHandler) Download(c *gin.Context) {
	rel := c.Query("f")
	if rel == "" || !strings.HasSuffix(strings.ToLower(rel), ".mbz") {
		c.Status(http.StatusNotFound)
		return
	}

	abs, err := h.local.ResolveWithin(rel)
	if err != nil {
		h.logger.Warn().Str("path", rel).Str("client_ip", c.ClientIP()).Msg("rejected download path")
		c.Status(http.StatusNotFound)
		return
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}

	c.FileAttachment(abs, info.Name())
}
