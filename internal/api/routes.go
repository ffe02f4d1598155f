// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/alonraif/NGL-sub000/internal/config"
	"github.com/alonraif/NGL-sub000/internal/session"
	"github.com/alonraif/NGL-sub000/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   storage.Store
	Jobs    *session.Manager
	Cache   *session.ResultCache
	Cfg     *config.AppConfig
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Archive  ArchiveHandler
	Extract  ExtractHandler
	Progress *ProgressSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Cache),
		Archive: NewArchiveHandler(deps.Store, deps.Cache,
			deps.Cfg.Security.AllowedFileTypes,
			deps.Cfg.Security.AllowArchiveDeletion),
		Extract: NewExtractHandler(deps.Store, deps.Jobs,
			deps.Cfg.Processing.DefaultTimezone,
			deps.Cfg.Processing.EnablePrefilter),
		Progress: NewProgressSocketHandler(deps.Jobs),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check and metrics
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.GET("/metrics", MetricsHandler())

	// Archive routes
	archiveGroup := e.Group("/api/archives")
	archiveGroup.POST("", handlers.Archive.HandleUploadArchive)
	archiveGroup.POST("/chunk", handlers.Archive.HandleUploadChunk)
	archiveGroup.POST("/complete", handlers.Archive.HandleCompleteUpload)
	archiveGroup.GET("/recent", handlers.Archive.HandleGetRecentArchives)
	archiveGroup.GET("/:id", handlers.Archive.HandleGetArchive)
	archiveGroup.DELETE("/:id", handlers.Archive.HandleDeleteArchive)
	archiveGroup.PUT("/:id", handlers.Archive.HandleRenameArchive)

	// Extraction mode discovery
	e.GET("/api/modes", handlers.Extract.HandleListModes)

	// Extraction job routes
	jobGroup := e.Group("/api/jobs")
	jobGroup.POST("", handlers.Extract.HandleStartExtract)
	jobGroup.GET("/:jobId", handlers.Extract.HandleJobStatus)
	jobGroup.POST("/:jobId/keepalive", handlers.Extract.HandleJobKeepAlive)
	jobGroup.POST("/:jobId/cancel", handlers.Extract.HandleCancelJob)
	jobGroup.GET("/:jobId/result", handlers.Extract.HandleJobResult)
	jobGroup.GET("/:jobId/result/msgpack", handlers.Extract.HandleJobResultMsgpack)
	jobGroup.GET("/:jobId/chunk", handlers.Extract.HandleJobChunk)
	jobGroup.GET("/:jobId/series", handlers.Extract.HandleJobSeries)
	jobGroup.GET("/:jobId/range", handlers.Extract.HandleJobTimeRange)
	jobGroup.GET("/:jobId/progress", handlers.Extract.HandleJobProgressStream)
	jobGroup.GET("/:jobId/ws", handlers.Progress.HandleJobProgressSocket)
}
