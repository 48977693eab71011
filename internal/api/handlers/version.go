package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// VersionHandler serves build information.
type VersionHandler struct {
	version   string
	commit    string
	buildDate string
}

// NewVersionHandler creates a new VersionHandler.
func NewVersionHandler(version, commit, buildDate string) *VersionHandler {
	return &VersionHandler{version: version, commit: commit, buildDate: buildDate}
}

// RegisterPublicRoutes registers the version route on the engine root.
func (h *VersionHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/version", h.Version)
}

// Version returns version, commit and build date.
func (h *VersionHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    h.version,
		"commit":     h.commit,
		"build_date": h.buildDate,
	})
}
