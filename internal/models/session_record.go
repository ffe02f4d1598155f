package models

import "time"

// SessionRecord is one streaming session reconstructed from boundary markers.
// Completeness is tri-state: both bounds present, start-only, or end-only.
type SessionRecord struct {
	ID    string     `json:"id,omitempty"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Complete reports whether both a start and an end marker were observed.
func (s SessionRecord) Complete() bool {
	return s.Start != nil && s.End != nil
}

// Duration is derived from the bounds and is zero for incomplete sessions.
func (s SessionRecord) Duration() time.Duration {
	if !s.Complete() {
		return 0
	}
	return s.End.Sub(*s.Start)
}
