// Package session manages extraction jobs: one background goroutine per
// submitted archive/mode pair, with cooperative cancellation and DuckDB-backed
// sample storage for the chart endpoints.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/extract"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/store"
	"github.com/alonraif/NGL-sub000/internal/timeutil"
)

// MaxJobs limits concurrent jobs to prevent memory exhaustion
const MaxJobs = 10

// JobMaxAge is how long to keep finished jobs before cleanup
const JobMaxAge = 30 * time.Minute

// JobKeepAliveWindow is how long to keep jobs that are actively being used
const JobKeepAliveWindow = 5 * time.Minute

// JobRequest describes one extraction job submission.
type JobRequest struct {
	ArchiveID   string
	ArchivePath string
	Mode        string
	Timezone    string
	Begin       string
	End         string
	Prefilter   bool
}

// ArchiveStatus receives archive lifecycle updates as jobs reach a terminal
// state. Implemented by storage.Store.
type ArchiveStatus interface {
	SetStatus(id string, status string) error
}

// Manager handles active extraction jobs.
type Manager struct {
	jobs          map[string]*JobState
	mu            sync.RWMutex
	tempDir       string
	cache         *ResultCache
	archiveStatus ArchiveStatus
}

// JobState holds the job metadata, its cancel handle, and the results once
// the background extraction finishes.
type JobState struct {
	Job          *models.ExtractJob
	Result       *models.ExtractionResult
	Store        *store.SampleStore
	LastAccessed time.Time
	cancel       context.CancelFunc
}

// NewManager creates a new job manager.
// Uses environment variable EXTRACT_TEMP_DIR for temp directory, defaults to ./data/temp
func NewManager() *Manager {
	tempDir := os.Getenv("EXTRACT_TEMP_DIR")
	if tempDir == "" {
		tempDir = "./data/temp"
	}
	os.MkdirAll(tempDir, 0755)
	return NewManagerWithTempDir(tempDir)
}

// NewManagerWithTempDir creates a job manager with a specific temp directory.
func NewManagerWithTempDir(tempDir string) *Manager {
	return &Manager{
		jobs:    make(map[string]*JobState),
		tempDir: tempDir,
	}
}

// SetResultCache attaches a persistent result cache consulted before running
// new jobs.
func (m *Manager) SetResultCache(cache *ResultCache) {
	m.cache = cache
}

// SetArchiveStatus attaches a sink for archive status transitions
// (extracted, error, back to uploaded on cancel).
func (m *Manager) SetArchiveStatus(s ArchiveStatus) {
	m.archiveStatus = s
}

func (m *Manager) setArchiveStatus(archiveID, status string) {
	if m.archiveStatus == nil || archiveID == "" {
		return
	}
	m.archiveStatus.SetStatus(archiveID, status)
}

// StartJob submits an extraction and returns immediately; the work runs in a
// background goroutine. The returned job is a live view updated as the scan
// progresses.
func (m *Manager) StartJob(req JobRequest) (*models.ExtractJob, error) {
	if !extract.ValidMode(req.Mode) {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}

	m.cleanupOldJobsIfNeeded()

	jobID := uuid.New().String()
	job := models.NewExtractJob(jobID, req.ArchiveID, req.Mode, req.Timezone)
	job.Begin = req.Begin
	job.End = req.End

	ctx, cancel := context.WithCancel(context.Background())
	state := &JobState{
		Job:          job,
		LastAccessed: time.Now(),
		cancel:       cancel,
	}

	m.mu.Lock()
	m.jobs[jobID] = state
	m.mu.Unlock()

	go m.runExtract(ctx, jobID, req)

	// The goroutine owns the live struct from here on.
	snapshot := *job
	return &snapshot, nil
}

func (m *Manager) runExtract(ctx context.Context, jobID string, req JobRequest) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Extract %s] PANIC recovered: %v\n", shortID(jobID), r)
			m.updateJobError(jobID, fmt.Sprintf("extraction panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Extract %s] Starting mode %s on %s\n", shortID(jobID), req.Mode, req.ArchivePath)

	m.setJobStatus(jobID, models.JobStatusRunning, 5)

	// Cached result from an earlier identical run short-circuits the scan.
	// Windowed requests bypass the cache because the window shapes the
	// output.
	cacheable := m.cache != nil && req.Begin == "" && req.End == ""
	if cacheable {
		if res, ss, ok := m.cache.Open(req.ArchiveID, req.Mode); ok {
			fmt.Printf("[Extract %s] Serving cached result for %s/%s\n", shortID(jobID), shortID(req.ArchiveID), req.Mode)
			cacheHitsTotal.Inc()
			m.finishJob(jobID, res, ss, time.Since(start).Milliseconds())
			return
		}
	}

	archivePath := req.ArchivePath

	// Optional archive pre-filter: rewrite the tar down to members that
	// can intersect the window before the full scan.
	if req.Prefilter && (req.Begin != "" || req.End != "") {
		windowStart, windowEnd, err := jobWindow(req)
		if err != nil {
			m.updateJobError(jobID, err.Error())
			return
		}
		filtered, err := archive.FilterByWindow(archivePath, windowStart, windowEnd, archive.DefaultBufferHours)
		if err != nil {
			fmt.Printf("[Extract %s] Prefilter failed, scanning full archive: %v\n", shortID(jobID), err)
		} else if filtered != archivePath {
			fmt.Printf("[Extract %s] Prefilter rewrote archive to %s\n", shortID(jobID), filtered)
			defer os.Remove(filtered)
			archivePath = filtered
		}
	}

	res, err := extract.Extract(ctx, extract.Request{
		ArchivePath: archivePath,
		Mode:        req.Mode,
		Timezone:    req.Timezone,
		Begin:       req.Begin,
		End:         req.End,
		Progress:    func(lines int) { m.updateProgress(jobID, lines) },
	})
	if err != nil {
		if errors.Is(err, extract.ErrCancelled) {
			fmt.Printf("[Extract %s] Cancelled after %v\n", shortID(jobID), time.Since(start).Round(time.Millisecond))
			m.setJobStatus(jobID, models.JobStatusCancelled, 0)
			recordJobFinished(models.JobStatusCancelled, 0)
			m.setArchiveStatus(req.ArchiveID, "uploaded")
			return
		}
		fmt.Printf("[Extract %s] ERROR: %v\n", shortID(jobID), err)
		m.updateJobError(jobID, err.Error())
		return
	}

	// Structured series go into a per-job DuckDB file for chunked chart
	// queries.
	var ss *store.SampleStore
	if cacheable {
		ss, err = m.cache.Create(req.ArchiveID, req.Mode, res)
		if err != nil {
			fmt.Printf("[Extract %s] Result cache unavailable: %v\n", shortID(jobID), err)
			ss = nil
		}
	}
	if ss == nil {
		ss, err = store.NewSampleStore(m.tempDir, jobID)
		if err != nil {
			fmt.Printf("[Extract %s] ERROR: failed to create sample store: %v\n", shortID(jobID), err)
			m.updateJobError(jobID, fmt.Sprintf("failed to create storage: %v", err))
			return
		}
		ss.AddResult(res)
		if err := ss.Finalize(); err != nil {
			ss.Close()
			m.updateJobError(jobID, fmt.Sprintf("failed to finalize storage: %v", err))
			return
		}
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Extract %s] Complete: mode %s, %d samples, %dms\n", shortID(jobID), req.Mode, ss.Len(), elapsed)
	m.finishJob(jobID, res, ss, elapsed)
}

// jobWindow parses the request bounds for the pre-filter step.
func jobWindow(req JobRequest) (start, end *time.Time, err error) {
	loc := time.UTC
	if req.Timezone != "" {
		loc, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid timezone %q: %w", req.Timezone, err)
		}
	}
	r, err := timeutil.NewRange(req.Begin, req.End, loc)
	if err != nil {
		return nil, nil, err
	}
	return r.Start, r.End, nil
}

func (m *Manager) finishJob(jobID string, res *models.ExtractionResult, ss *store.SampleStore, elapsedMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]
	if !ok {
		if ss != nil {
			ss.Close()
		}
		return
	}

	state.Result = res
	state.Store = ss
	state.Job.Status = models.JobStatusComplete
	state.Job.Progress = 100
	state.Job.ProcessingTimeMs = elapsedMs
	recordJobFinished(models.JobStatusComplete, elapsedMs)
	m.setArchiveStatus(state.Job.ArchiveID, "extracted")
}

func (m *Manager) setJobStatus(jobID string, status models.JobStatus, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.jobs[jobID]; ok {
		state.Job.Status = status
		if progress > 0 {
			state.Job.Progress = progress
		}
	}
}

func (m *Manager) updateProgress(jobID string, lines int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.jobs[jobID]
	if !ok {
		return
	}
	state.Job.LinesScanned = lines
	// Line totals are unknown up front, so progress creeps toward 90%
	// and jumps to 100 on completion.
	progress := 10.0 + float64(lines)/1_000_000*40.0
	if progress > 89.9 {
		progress = 89.9
	}
	if progress > state.Job.Progress {
		state.Job.Progress = progress
	}
}

func (m *Manager) updateJobError(jobID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]
	if !ok {
		return
	}
	state.Job.Status = models.JobStatusError
	state.Job.Error = reason
	recordJobFinished(models.JobStatusError, 0)
	m.setArchiveStatus(state.Job.ArchiveID, "error")
}

// Cancel requests cancellation of a running job. The job transitions to
// cancelled once the scan observes the context.
func (m *Manager) Cancel(id string) bool {
	m.mu.RLock()
	state, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	state.cancel()
	return true
}

// GetJob returns a snapshot of a job by ID. Callers get a copy because the
// extraction goroutine keeps mutating the live job under the write lock.
func (m *Manager) GetJob(id string) (*models.ExtractJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	job := *state.Job
	return &job, true
}

// TouchJob updates the LastAccessed timestamp for a job so the cleanup
// ticker keeps it alive while clients poll it.
func (m *Manager) TouchJob(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Result returns the finished extraction result for a job.
func (m *Manager) Result(id string) (*models.ExtractionResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.jobs[id]
	if !ok || state.Result == nil {
		return nil, false
	}
	return state.Result, true
}

// Chunk returns stored samples within a time range for a finished job.
func (m *Manager) Chunk(ctx context.Context, id string, start, end time.Time, series []string) ([]store.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.jobs[id]
	if !ok || state.Store == nil {
		return nil, false
	}
	samples, err := state.Store.Chunk(ctx, start, end, series)
	if err != nil {
		fmt.Printf("[Manager] Chunk error for job %s: %v\n", shortID(id), err)
		return nil, false
	}
	return samples, true
}

// Series lists the stored series names for a finished job.
func (m *Manager) Series(id string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.jobs[id]
	if !ok || state.Store == nil {
		return nil, false
	}
	return state.Store.Series(), true
}

// TimeRange returns the stored sample time span for a finished job.
func (m *Manager) TimeRange(id string) (start, end time.Time, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, found := m.jobs[id]
	if !found || state.Store == nil {
		return time.Time{}, time.Time{}, false
	}
	return state.Store.TimeRange()
}

func jobFinished(status models.JobStatus) bool {
	switch status {
	case models.JobStatusComplete, models.JobStatusCancelled, models.JobStatusError:
		return true
	}
	return false
}

// cleanupOldJobsIfNeeded removes finished jobs when at capacity.
func (m *Manager) cleanupOldJobsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) < MaxJobs {
		return
	}

	toFree := len(m.jobs) - MaxJobs + 1
	deleted := 0
	for id, state := range m.jobs {
		if deleted >= toFree {
			break
		}
		if !jobFinished(state.Job.Status) {
			continue
		}
		m.closeLocked(id, state)
		deleted++
		fmt.Printf("[Manager] Cleaned up old job %s to free memory\n", shortID(id))
	}
}

// CleanupOldJobs removes finished jobs older than maxAge, keeping jobs that
// have been accessed within JobKeepAliveWindow.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-JobKeepAliveWindow)

	for id, state := range m.jobs {
		if !jobFinished(state.Job.Status) {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			m.closeLocked(id, state)
			fmt.Printf("[Manager] Cleaned up aged job %s (last accessed: %s ago)\n",
				shortID(id), time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

// closeLocked releases a job's resources; callers hold m.mu.
func (m *Manager) closeLocked(id string, state *JobState) {
	if state.Store != nil {
		// Cached stores keep their file; the cache owns it.
		if m.cache != nil && m.cache.Owns(state.Store.Path()) {
			state.Store.Release()
		} else {
			state.Store.Close()
		}
	}
	state.cancel()
	delete(m.jobs, id)
}
