package models

// JobStatus represents the status of an extraction job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusComplete  JobStatus = "complete"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusError     JobStatus = "error"
)

// ExtractJob tracks one extraction request from submission to completion.
type ExtractJob struct {
	ID               string    `json:"id"`
	ArchiveID        string    `json:"archiveId"`
	Mode             string    `json:"mode"`
	Timezone         string    `json:"timezone"`
	Begin            string    `json:"begin,omitempty"`
	End              string    `json:"end,omitempty"`
	Status           JobStatus `json:"status"`
	Progress         float64   `json:"progress"` // 0-100
	LinesScanned     int       `json:"linesScanned,omitempty"`
	ProcessingTimeMs int64     `json:"processingTimeMs,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// NewExtractJob creates a new ExtractJob in pending status.
func NewExtractJob(id, archiveID, mode, timezone string) *ExtractJob {
	return &ExtractJob{
		ID:        id,
		ArchiveID: archiveID,
		Mode:      mode,
		Timezone:  timezone,
		Status:    JobStatusPending,
	}
}
