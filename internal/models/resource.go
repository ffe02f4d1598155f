package models

import "time"

// Resource-reporting components, distinguished purely by line-prefix tokens.
// corecard and streamer run on the device, mgmt on the server side.
const (
	ComponentCorecard = "corecard"
	ComponentStreamer = "streamer"
	ComponentServer   = "mgmt"
)

// ResourceSample is one memory or CPU utilization reading.
// For memory samples Value is MB used; for CPU samples Value is the load
// percentage and Percent repeats it.
type ResourceSample struct {
	Component string    `json:"component"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Percent   float64   `json:"percent"`
	Warning   bool      `json:"warning"`
}
