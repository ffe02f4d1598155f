// Package models contains domain types for the field-unit log extraction engine.
package models

// LogLine is a single line read out of a diagnostic archive, tagged with the
// archive member it came from. Produced once by the archive scanner and
// consumed once by an extractor; it carries no persistent identity.
type LogLine struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}
