// handlers_extract.go - Extraction job operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/alonraif/NGL-sub000/internal/extract"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/session"
	"github.com/alonraif/NGL-sub000/internal/storage"
)

// ExtractHandlerImpl implements the ExtractHandler interface
type ExtractHandlerImpl struct {
	store            storage.Store
	jobs             JobManager
	defaultTimezone  string
	defaultPrefilter bool
}

// NewExtractHandler creates a new extraction handler instance
func NewExtractHandler(store storage.Store, jobs JobManager, defaultTimezone string, defaultPrefilter bool) ExtractHandler {
	return &ExtractHandlerImpl{
		store:            store,
		jobs:             jobs,
		defaultTimezone:  defaultTimezone,
		defaultPrefilter: defaultPrefilter,
	}
}

// HandleListModes returns every registered extraction mode
func (h *ExtractHandlerImpl) HandleListModes(c echo.Context) error {
	return c.JSON(http.StatusOK, extract.Modes())
}

// HandleStartExtract starts a new extraction job for a stored archive
func (h *ExtractHandlerImpl) HandleStartExtract(c echo.Context) error {
	var req startExtractRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	if _, err := h.store.Get(req.ArchiveID); err != nil {
		return NewNotFoundError("archive", req.ArchiveID)
	}
	path, err := h.store.GetFilePath(req.ArchiveID)
	if err != nil {
		return NewInternalError("failed to resolve archive path", err)
	}

	tz := req.Timezone
	if tz == "" {
		tz = h.defaultTimezone
	}
	prefilter := h.defaultPrefilter
	if req.Prefilter != nil {
		prefilter = *req.Prefilter
	}

	job, err := h.jobs.StartJob(session.JobRequest{
		ArchiveID:   req.ArchiveID,
		ArchivePath: path,
		Mode:        req.Mode,
		Timezone:    tz,
		Begin:       req.Begin,
		End:         req.End,
		Prefilter:   prefilter,
	})
	if err != nil {
		return NewBadRequestError("failed to start extraction", err)
	}

	h.store.SetStatus(req.ArchiveID, "extracting")
	recordJobStarted(req.Mode)

	return c.JSON(http.StatusAccepted, job)
}

// HandleJobStatus returns the current status of an extraction job
func (h *ExtractHandlerImpl) HandleJobStatus(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}

	// Touch job to prevent cleanup while being viewed
	h.jobs.TouchJob(id)

	return c.JSON(http.StatusOK, job)
}

// HandleJobKeepAlive extends job lifetime for active viewing
func (h *ExtractHandlerImpl) HandleJobKeepAlive(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	if ok := h.jobs.TouchJob(id); !ok {
		return NewNotFoundError("job", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleCancelJob requests cooperative cancellation of a running job
func (h *ExtractHandlerImpl) HandleCancelJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	if ok := h.jobs.Cancel(id); !ok {
		return NewNotFoundError("job", id)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleJobResult returns the full extraction result as JSON
func (h *ExtractHandlerImpl) HandleJobResult(c echo.Context) error {
	res, err := h.jobResult(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleJobResultMsgpack returns the extraction result in MessagePack format.
// Large parsed payloads encode substantially smaller than JSON.
func (h *ExtractHandlerImpl) HandleJobResultMsgpack(c echo.Context) error {
	res, err := h.jobResult(c)
	if err != nil {
		return err
	}

	encoded, mErr := msgpack.Marshal(res)
	if mErr != nil {
		return NewInternalError("failed to encode result", mErr)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", encoded)
}

func (h *ExtractHandlerImpl) jobResult(c echo.Context) (*models.ExtractionResult, error) {
	id := c.Param("jobId")
	if id == "" {
		return nil, NewValidationError("jobId")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return nil, NewNotFoundError("job", id)
	}
	if job.Status != models.JobStatusComplete {
		return nil, NewConflictError(fmt.Sprintf("job %s is %s, not complete", id, job.Status))
	}

	res, ok := h.jobs.Result(id)
	if !ok {
		return nil, NewNotFoundError("result for job", id)
	}

	h.jobs.TouchJob(id)
	return res, nil
}

// HandleJobChunk returns samples within a time range, optionally filtered by series
func (h *ExtractHandlerImpl) HandleJobChunk(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	start, end, err := h.chunkWindow(c, id)
	if err != nil {
		return err
	}

	series := c.QueryParams()["series"]

	ctx := c.Request().Context()
	samples, ok := h.jobs.Chunk(ctx, id, start, end, series)
	if !ok {
		return NewNotFoundError("job", id)
	}

	recordChunkQuery()
	return c.JSON(http.StatusOK, samples)
}

// HandleJobSeries returns all series names produced by a job
func (h *ExtractHandlerImpl) HandleJobSeries(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	series, ok := h.jobs.Series(id)
	if !ok {
		return NewNotFoundError("job", id)
	}

	return c.JSON(http.StatusOK, series)
}

// HandleJobTimeRange returns the first and last sample timestamps of a job
func (h *ExtractHandlerImpl) HandleJobTimeRange(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	start, end, ok := h.jobs.TimeRange(id)
	if !ok {
		return NewNotFoundError("job", id)
	}

	return c.JSON(http.StatusOK, map[string]int64{
		"start": start.UnixMilli(),
		"end":   end.UnixMilli(),
	})
}

// HandleJobProgressStream streams job progress via SSE
func (h *ExtractHandlerImpl) HandleJobProgressStream(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	job, ok := h.jobs.GetJob(id)
	if !ok {
		h.sendSSEError(c, "job not found")
		return nil
	}

	// Send initial status
	h.sendSSEData(c, job)
	if jobTerminal(job.Status) {
		return nil
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(10 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			job, ok := h.jobs.GetJob(id)
			if !ok {
				h.sendSSEError(c, "job not found")
				return nil
			}

			h.sendSSEData(c, job)

			if jobTerminal(job.Status) {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// chunkWindow resolves the requested chunk bounds, falling back to the job's
// full time range when a bound is omitted.
func (h *ExtractHandlerImpl) chunkWindow(c echo.Context, id string) (time.Time, time.Time, error) {
	startParam := c.QueryParam("start")
	endParam := c.QueryParam("end")

	rangeStart, rangeEnd, hasRange := h.jobs.TimeRange(id)

	start := rangeStart
	end := rangeEnd
	var err error

	if startParam != "" {
		if start, err = parseTimestamp(startParam); err != nil {
			return time.Time{}, time.Time{}, NewBadRequestError("invalid start time", err)
		}
	}
	if endParam != "" {
		if end, err = parseTimestamp(endParam); err != nil {
			return time.Time{}, time.Time{}, NewBadRequestError("invalid end time", err)
		}
	}

	if (startParam == "" || endParam == "") && !hasRange {
		return time.Time{}, time.Time{}, NewBadRequestError("start and end are required for jobs with no samples", nil)
	}
	return start, end, nil
}

func (h *ExtractHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *ExtractHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}

func jobTerminal(status models.JobStatus) bool {
	return status == models.JobStatusComplete ||
		status == models.JobStatusError ||
		status == models.JobStatusCancelled
}

func parseTimestamp(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// Request/Response types

type startExtractRequest struct {
	ArchiveID string `json:"archiveId"`
	Mode      string `json:"mode"`
	Timezone  string `json:"timezone"`
	Begin     string `json:"begin"`
	End       string `json:"end"`
	Prefilter *bool  `json:"prefilter"`
}

func (r *startExtractRequest) validate() error {
	if r.ArchiveID == "" {
		return NewValidationError("archiveId")
	}
	if r.Mode == "" {
		return NewValidationError("mode")
	}
	if !extract.ValidMode(r.Mode) {
		return NewBadRequestError("unknown mode: "+r.Mode, nil)
	}
	return nil
}
