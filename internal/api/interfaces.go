// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/session"
	"github.com/alonraif/NGL-sub000/internal/store"
)

// ArchiveHandler handles diagnostic archive upload and management
type ArchiveHandler interface {
	HandleUploadArchive(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetRecentArchives(c echo.Context) error
	HandleGetArchive(c echo.Context) error
	HandleDeleteArchive(c echo.Context) error
	HandleRenameArchive(c echo.Context) error
}

// ExtractHandler handles extraction job operations
type ExtractHandler interface {
	HandleListModes(c echo.Context) error
	HandleStartExtract(c echo.Context) error
	HandleJobStatus(c echo.Context) error
	HandleJobKeepAlive(c echo.Context) error
	HandleCancelJob(c echo.Context) error
	HandleJobResult(c echo.Context) error
	HandleJobResultMsgpack(c echo.Context) error
	HandleJobChunk(c echo.Context) error
	HandleJobSeries(c echo.Context) error
	HandleJobTimeRange(c echo.Context) error
	HandleJobProgressStream(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// JobManager defines the interface for extraction job management
// This allows mocking in tests
type JobManager interface {
	StartJob(req session.JobRequest) (*models.ExtractJob, error)
	GetJob(id string) (*models.ExtractJob, bool)
	TouchJob(id string) bool
	Cancel(id string) bool
	Result(id string) (*models.ExtractionResult, bool)
	Chunk(ctx context.Context, id string, start, end time.Time, series []string) ([]store.Sample, bool)
	Series(id string) ([]string, bool)
	TimeRange(id string) (start, end time.Time, ok bool)
}
