package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/worker"
)

// Run count bounds for manual triggers.
const (
	DefaultRunCount = 30
	MaxRunCount     = 50
)

// JobRunner runs one bounded worker batch. Implemented by the workers.
type JobRunner interface {
	Run(ctx context.Context, limit int) ([]worker.Result, error)
}

// RunnerHandler exposes synchronous manual worker triggers. Output is the
// plain-text job logs; internal failures surface as log text, not as error
// status codes, so an operator always sees what happened.
type RunnerHandler struct {
	backup  JobRunner
	restore JobRunner
	logger  zerolog.Logger
}

// NewRunnerHandler creates a new RunnerHandler.
func NewRunnerHandler(backup, restore JobRunner, logger zerolog.Logger) *RunnerHandler {
	return &RunnerHandler{
		backup:  backup,
		restore: restore,
		logger:  logger.With().Str("component", "runner_handler").Logger(),
	}
}

// RegisterRoutes registers run trigger routes on the given router group.
func (h *RunnerHandler) RegisterRoutes(r *gin.RouterGroup) {
	run := r.Group("/run")
	{
		run.POST("/backup", h.RunBackup)
		run.POST("/restore", h.RunRestore)
	}
}

type runRequest struct {
	Count int `json:"count"`
}

// BoundRunCount clamps a requested batch size to the allowed range.
func BoundRunCount(count int) int {
	if count <= 0 {
		return DefaultRunCount
	}
	if count > MaxRunCount {
		return MaxRunCount
	}
	return count
}

// RunBackup synchronously processes up to count waiting backup jobs.
func (h *RunnerHandler) RunBackup(c *gin.Context) {
	h.run(c, "backup", h.backup)
}

// RunRestore synchronously processes up to count waiting restore jobs.
func (h *RunnerHandler) RunRestore(c *gin.Context) {
	h.run(c, "restore", h.restore)
}

func (h *RunnerHandler) run(c *gin.Context, kind string, runner JobRunner) {
	var req runRequest
	// An empty body means the default count.
	_ = c.ShouldBindJSON(&req)
	count := BoundRunCount(req.Count)

	results, err := runner.Run(c.Request.Context(), count)

	var b strings.Builder
	for _, res := range results {
		b.WriteString(strings.TrimRight(res.Logs, "\n"))
		b.WriteString("\n\n")
	}
	if err != nil {
		h.logger.Error().Err(err).Str("kind", kind).Msg("manual run failed")
		b.WriteString("Error: " + err.Error() + "\n")
	}
	if b.Len() == 0 {
		b.WriteString("No waiting jobs\n")
	}

	c.String(http.StatusOK, b.String())
}
