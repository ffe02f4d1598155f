package models

// DeviceIdentity holds the identifiers extracted from an archive.
type DeviceIdentity struct {
	UnitID     string `json:"unitId,omitempty"`
	ServerName string `json:"serverName,omitempty"`
}

// ExtractionResult is the two-part contract every extraction mode returns:
// a human-readable raw rendition and a mode-shaped parsed value.
type ExtractionResult struct {
	Mode   string `json:"mode"`
	Raw    string `json:"raw"`
	Parsed any    `json:"parsed"`
}
