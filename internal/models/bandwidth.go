package models

import "time"

// Note values carried by synthetic or boundary bandwidth rows. A real sample
// has an empty note.
const (
	NoteForwardFilled = "forward filled"
	NoteStreamStart   = "Stream start"
	NoteStreamEnd     = "Stream end"
)

// BandwidthPoint is one row of a stream or data-bridge bandwidth series.
type BandwidthPoint struct {
	Timestamp time.Time `json:"timestamp"`
	TotalKbps int       `json:"totalKbps"`
	VideoKbps int       `json:"videoKbps"`
	Note      string    `json:"note,omitempty"`
}

// Boundary reports whether the point marks a stream start or end, which
// exempts it from forward-fill gap closing.
func (p BandwidthPoint) Boundary() bool {
	return p.Note == NoteStreamStart || p.Note == NoteStreamEnd
}
