// Package api provides the HTTP API for the coursearc server.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/api/handlers"
	"github.com/coursearc/coursearc/internal/api/middleware"
	"github.com/coursearc/coursearc/internal/category"
	"github.com/coursearc/coursearc/internal/config"
	"github.com/coursearc/coursearc/internal/db"
	"github.com/coursearc/coursearc/internal/localstore"
	"github.com/coursearc/coursearc/internal/transfer"
	"github.com/coursearc/coursearc/internal/worker"
)

// BuildInfo identifies the running binary on the version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies. local may be
// nil when the local store is disabled; backup and restore are the workers
// behind the manual run endpoints.
func NewRouter(
	cfg *config.Config,
	build BuildInfo,
	database *db.DB,
	local *localstore.Store,
	backup *worker.BackupWorker,
	restore *worker.RestoreWorker,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))

	rateLimiter, err := middleware.NewRateLimiter(cfg.Server.RateLimitRequests, cfg.Server.RateLimitPeriod)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Public endpoints
	localRoot := ""
	if local != nil {
		localRoot = local.Root()
	}
	handlers.NewHealthHandler(database, localRoot, logger).RegisterPublicRoutes(r.Engine)
	handlers.NewVersionHandler(build.Version, build.Commit, build.BuildDate).RegisterPublicRoutes(r.Engine)
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if local != nil {
		handlers.NewDownloadsHandler(local, logger).RegisterRoutes(r.Engine)
	}

	// API v1
	apiV1 := r.Engine.Group("/api/v1")

	handlers.NewBackupJobsHandler(database, logger).RegisterRoutes(apiV1)
	handlers.NewRestoreJobsHandler(database, cfg.Transfer.BasePath, logger).RegisterRoutes(apiV1)
	handlers.NewCategoriesHandler(database, logger).RegisterRoutes(apiV1)
	handlers.NewRunnerHandler(backup, restore, logger).RegisterRoutes(apiV1)

	var dial handlers.RemoteDial
	if cfg.Transfer.Enabled {
		dial = func(ctx context.Context) (handlers.RemoteBrowser, error) {
			return transfer.Dial(ctx, cfg.Transfer, logger)
		}
	}
	var walker handlers.LocalWalker
	if local != nil {
		walker = local
	}
	resolver := category.NewResolver(database)
	handlers.NewFilesHandler(dial, walker, database, resolver,
		cfg.Transfer.BasePath, cfg.Restore.RootCategoryID, logger).RegisterRoutes(apiV1)

	return r, nil
}
