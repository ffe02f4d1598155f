// handlers_extract_test.go - Tests for extraction job handlers
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/session"
	"github.com/alonraif/NGL-sub000/internal/storage"
	"github.com/alonraif/NGL-sub000/internal/store"
)

// MockJobManager is a mock implementation for testing
type MockJobManager struct {
	jobs    map[string]*models.ExtractJob
	results map[string]*models.ExtractionResult
	samples []store.Sample
	started []session.JobRequest
}

func NewMockJobManager() *MockJobManager {
	return &MockJobManager{
		jobs:    make(map[string]*models.ExtractJob),
		results: make(map[string]*models.ExtractionResult),
	}
}

func (m *MockJobManager) StartJob(req session.JobRequest) (*models.ExtractJob, error) {
	m.started = append(m.started, req)
	job := models.NewExtractJob("job-123", req.ArchiveID, req.Mode, req.Timezone)
	m.jobs[job.ID] = job
	return job, nil
}

func (m *MockJobManager) GetJob(id string) (*models.ExtractJob, bool) {
	job, ok := m.jobs[id]
	return job, ok
}

func (m *MockJobManager) TouchJob(id string) bool {
	_, ok := m.jobs[id]
	return ok
}

func (m *MockJobManager) Cancel(id string) bool {
	job, ok := m.jobs[id]
	if ok {
		job.Status = models.JobStatusCancelled
	}
	return ok
}

func (m *MockJobManager) Result(id string) (*models.ExtractionResult, bool) {
	res, ok := m.results[id]
	return res, ok
}

func (m *MockJobManager) Chunk(ctx context.Context, id string, start, end time.Time, series []string) ([]store.Sample, bool) {
	if _, ok := m.jobs[id]; !ok {
		return nil, false
	}
	var out []store.Sample
	for _, s := range m.samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		if len(series) > 0 && !containsString(series, s.Series) {
			continue
		}
		out = append(out, s)
	}
	return out, true
}

func (m *MockJobManager) Series(id string) ([]string, bool) {
	if _, ok := m.jobs[id]; !ok {
		return nil, false
	}
	seen := map[string]bool{}
	var out []string
	for _, s := range m.samples {
		if !seen[s.Series] {
			seen[s.Series] = true
			out = append(out, s.Series)
		}
	}
	return out, true
}

func (m *MockJobManager) TimeRange(id string) (time.Time, time.Time, bool) {
	if _, ok := m.jobs[id]; !ok || len(m.samples) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return m.samples[0].Timestamp, m.samples[len(m.samples)-1].Timestamp, true
}

func containsString(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func newExtractTestContext(t *testing.T, method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func seedArchive(t *testing.T) (storage.Store, string) {
	t.Helper()
	st, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	info, err := st.Save("unit.log", strings.NewReader("2024-01-15 10:00:00.000 INFO [mgmt] hello\n"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return st, info.ID
}

func TestExtractHandler_StartExtract(t *testing.T) {
	st, archiveID := seedArchive(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		errCode  string
	}{
		{
			name:     "valid request",
			body:     `{"archiveId":"` + archiveID + `","mode":"bw"}`,
			wantCode: http.StatusAccepted,
		},
		{
			name:    "missing archive id",
			body:    `{"mode":"bw"}`,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "unknown mode",
			body:    `{"archiveId":"` + archiveID + `","mode":"teleport"}`,
			errCode: "BAD_REQUEST",
		},
		{
			name:    "unknown archive",
			body:    `{"archiveId":"nope","mode":"bw"}`,
			errCode: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := NewMockJobManager()
			h := NewExtractHandler(st, jobs, "UTC", true)

			c, rec := newExtractTestContext(t, http.MethodPost, "/api/jobs", tt.body)
			err := h.HandleStartExtract(c)

			if tt.errCode != "" {
				apiErr, ok := err.(*APIError)
				if !ok {
					t.Fatalf("expected APIError, got %v", err)
				}
				if apiErr.Code != tt.errCode {
					t.Errorf("error code = %s, want %s", apiErr.Code, tt.errCode)
				}
				return
			}

			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if len(jobs.started) != 1 {
				t.Fatalf("expected 1 started job, got %d", len(jobs.started))
			}
			req := jobs.started[0]
			if req.Timezone != "UTC" {
				t.Errorf("timezone = %s, want default UTC", req.Timezone)
			}
			if !req.Prefilter {
				t.Error("prefilter should default to handler setting")
			}
			if !strings.HasSuffix(req.ArchivePath, ".log") {
				t.Errorf("archive path %s should keep source extension", req.ArchivePath)
			}
		})
	}
}

func TestExtractHandler_StartExtractOverrides(t *testing.T) {
	st, archiveID := seedArchive(t)
	jobs := NewMockJobManager()
	h := NewExtractHandler(st, jobs, "UTC", true)

	body := `{"archiveId":"` + archiveID + `","mode":"md","timezone":"Asia/Jerusalem","begin":"2024-01-15 09:00:00","end":"2024-01-15 11:00:00","prefilter":false}`
	c, rec := newExtractTestContext(t, http.MethodPost, "/api/jobs", body)
	if err := h.HandleStartExtract(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	req := jobs.started[0]
	if req.Timezone != "Asia/Jerusalem" {
		t.Errorf("timezone = %s", req.Timezone)
	}
	if req.Prefilter {
		t.Error("explicit prefilter=false should win over the default")
	}
	if req.Begin == "" || req.End == "" {
		t.Error("window bounds should pass through")
	}
}

func TestExtractHandler_JobStatus(t *testing.T) {
	st, _ := seedArchive(t)
	jobs := NewMockJobManager()
	jobs.jobs["j1"] = models.NewExtractJob("j1", "a1", "bw", "UTC")
	h := NewExtractHandler(st, jobs, "UTC", false)

	c, rec := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1", "")
	c.SetParamNames("jobId")
	c.SetParamValues("j1")
	if err := h.HandleJobStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	var job models.ExtractJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != "j1" || job.Status != models.JobStatusPending {
		t.Errorf("unexpected job %+v", job)
	}

	c2, _ := newExtractTestContext(t, http.MethodGet, "/api/jobs/missing", "")
	c2.SetParamNames("jobId")
	c2.SetParamValues("missing")
	err := h.HandleJobStatus(c2)
	if apiErr, ok := err.(*APIError); !ok || apiErr.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestExtractHandler_CancelAndKeepAlive(t *testing.T) {
	st, _ := seedArchive(t)
	jobs := NewMockJobManager()
	jobs.jobs["j1"] = models.NewExtractJob("j1", "a1", "bw", "UTC")
	h := NewExtractHandler(st, jobs, "UTC", false)

	c, rec := newExtractTestContext(t, http.MethodPost, "/api/jobs/j1/keepalive", "")
	c.SetParamNames("jobId")
	c.SetParamValues("j1")
	if err := h.HandleJobKeepAlive(c); err != nil {
		t.Fatalf("keepalive error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("keepalive status = %d", rec.Code)
	}

	c2, rec2 := newExtractTestContext(t, http.MethodPost, "/api/jobs/j1/cancel", "")
	c2.SetParamNames("jobId")
	c2.SetParamValues("j1")
	if err := h.HandleCancelJob(c2); err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if rec2.Code != http.StatusAccepted {
		t.Errorf("cancel status = %d", rec2.Code)
	}
	if jobs.jobs["j1"].Status != models.JobStatusCancelled {
		t.Error("cancel should reach the manager")
	}
}

func TestExtractHandler_JobResult(t *testing.T) {
	st, _ := seedArchive(t)
	jobs := NewMockJobManager()
	job := models.NewExtractJob("j1", "a1", "bw", "UTC")
	jobs.jobs["j1"] = job
	h := NewExtractHandler(st, jobs, "UTC", false)

	// Running job: result is a conflict, not a 404
	c, _ := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1/result", "")
	c.SetParamNames("jobId")
	c.SetParamValues("j1")
	err := h.HandleJobResult(c)
	if apiErr, ok := err.(*APIError); !ok || apiErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT for incomplete job, got %v", err)
	}

	job.Status = models.JobStatusComplete
	jobs.results["j1"] = &models.ExtractionResult{
		Mode: "bw",
		Raw:  "some rendered output",
		Parsed: []models.BandwidthPoint{
			{Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), TotalKbps: 400, VideoKbps: 350},
		},
	}

	c2, rec2 := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1/result", "")
	c2.SetParamNames("jobId")
	c2.SetParamValues("j1")
	if err := h.HandleJobResult(c2); err != nil {
		t.Fatalf("result error: %v", err)
	}
	if !strings.Contains(rec2.Body.String(), `"mode":"bw"`) {
		t.Errorf("result body missing mode: %s", rec2.Body.String())
	}
}

func TestExtractHandler_JobResultMsgpack(t *testing.T) {
	st, _ := seedArchive(t)
	jobs := NewMockJobManager()
	job := models.NewExtractJob("j1", "a1", "id", "UTC")
	job.Status = models.JobStatusComplete
	jobs.jobs["j1"] = job
	jobs.results["j1"] = &models.ExtractionResult{Mode: "id", Raw: "Unit: LU600-04521"}
	h := NewExtractHandler(st, jobs, "UTC", false)

	c, rec := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1/result/msgpack", "")
	c.SetParamNames("jobId")
	c.SetParamValues("j1")
	if err := h.HandleJobResultMsgpack(c); err != nil {
		t.Fatalf("msgpack result error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/x-msgpack" {
		t.Errorf("content type = %s", ct)
	}

	var decoded models.ExtractionResult
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	if decoded.Mode != "id" || decoded.Raw != "Unit: LU600-04521" {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestExtractHandler_ChunkSeriesRange(t *testing.T) {
	st, _ := seedArchive(t)
	jobs := NewMockJobManager()
	jobs.jobs["j1"] = models.NewExtractJob("j1", "a1", "bw", "UTC")
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	jobs.samples = []store.Sample{
		{Series: "bw", Timestamp: base, TotalKbps: 400, VideoKbps: 350},
		{Series: "bw", Timestamp: base.Add(time.Minute), TotalKbps: 420, VideoKbps: 360},
		{Series: "modem:1", Timestamp: base.Add(2 * time.Minute), Value: 38},
	}
	h := NewExtractHandler(st, jobs, "UTC", false)

	// Chunk with explicit window and series filter
	target := "/api/jobs/j1/chunk?start=" + msStr(base) + "&end=" + msStr(base.Add(time.Hour)) + "&series=bw"
	c, rec := newExtractTestContext(t, http.MethodGet, target, "")
	c.SetParamNames("jobId")
	c.SetParamValues("j1")
	if err := h.HandleJobChunk(c); err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	var samples []store.Sample
	if err := json.Unmarshal(rec.Body.Bytes(), &samples); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("chunk returned %d samples, want 2", len(samples))
	}

	// Chunk without bounds falls back to the full range
	c2, rec2 := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1/chunk", "")
	c2.SetParamNames("jobId")
	c2.SetParamValues("j1")
	if err := h.HandleJobChunk(c2); err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &samples); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(samples) != 3 {
		t.Errorf("full chunk returned %d samples, want 3", len(samples))
	}

	// Series listing
	c3, rec3 := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1/series", "")
	c3.SetParamNames("jobId")
	c3.SetParamValues("j1")
	if err := h.HandleJobSeries(c3); err != nil {
		t.Fatalf("series error: %v", err)
	}
	if !strings.Contains(rec3.Body.String(), "modem:1") {
		t.Errorf("series body: %s", rec3.Body.String())
	}

	// Time range
	c4, rec4 := newExtractTestContext(t, http.MethodGet, "/api/jobs/j1/range", "")
	c4.SetParamNames("jobId")
	c4.SetParamValues("j1")
	if err := h.HandleJobTimeRange(c4); err != nil {
		t.Fatalf("range error: %v", err)
	}
	var tr map[string]int64
	if err := json.Unmarshal(rec4.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr["start"] != base.UnixMilli() || tr["end"] != base.Add(2*time.Minute).UnixMilli() {
		t.Errorf("range = %v", tr)
	}
}

func TestExtractHandler_ListModes(t *testing.T) {
	st, _ := seedArchive(t)
	h := NewExtractHandler(st, NewMockJobManager(), "UTC", false)

	c, rec := newExtractTestContext(t, http.MethodGet, "/api/modes", "")
	if err := h.HandleListModes(c); err != nil {
		t.Fatalf("modes error: %v", err)
	}

	var modes []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &modes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(modes) != 20 {
		t.Errorf("got %d modes, want 20", len(modes))
	}
}

func msStr(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
