package models

import "time"

// ModemSample is one statistics row reported for a single modem.
type ModemSample struct {
	ModemID         string    `json:"modemId"`
	Timestamp       time.Time `json:"timestamp"`
	PotentialKbps   int       `json:"potentialKbps"`
	LossPercent     float64   `json:"lossPercent"`
	UpstreamDelayMs int       `json:"upstreamDelayMs"`
	ShortestRTTMs   int       `json:"shortestRttMs"`
	SmoothedRTTMs   int       `json:"smoothedRttMs"`
	MinRTTMs        int       `json:"minRttMs"`
}

// AggregatedSample sums potential bandwidth across all modems that reported
// at one distinct timestamp.
type AggregatedSample struct {
	Timestamp time.Time `json:"timestamp"`
	TotalKbps int       `json:"totalKbps"`
}

// ModemSeries groups samples per modem plus the cross-modem aggregate.
// Per-modem sequences are chronologically ordered.
type ModemSeries struct {
	Modems     map[string][]ModemSample `json:"modems"`
	Aggregated []AggregatedSample       `json:"aggregated"`
}

// GradeStatus is the normalized service-grade vocabulary. Explicit
// grade-change lines, RTT threshold lines and loss threshold lines all map
// onto these two values.
type GradeStatus string

const (
	GradeFull    GradeStatus = "Full"
	GradeLimited GradeStatus = "Limited"
)

// GradeEvent is one service-grade transition for a modem.
type GradeEvent struct {
	ModemID   string      `json:"modemId"`
	Timestamp time.Time   `json:"timestamp"`
	Status    GradeStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
}

// ModemEventType selects which metadata fields of a ModemEvent are populated.
type ModemEventType string

const (
	EventOperatorChange ModemEventType = "operator_change"
	EventLinkReady      ModemEventType = "link_ready"
	EventLinkLost       ModemEventType = "link_lost"
	EventDHCPLink       ModemEventType = "dhcp_link"
	EventQMILink        ModemEventType = "qmi_link"
	EventInterfaceCount ModemEventType = "interface_count"
)

// ModemEvent is a tagged union of connectivity events observed for a modem.
type ModemEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      ModemEventType    `json:"type"`
	Port      string            `json:"port,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
