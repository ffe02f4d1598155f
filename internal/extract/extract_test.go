// extract_test.go - Shared fixtures for the extraction mode tests
package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alonraif/NGL-sub000/internal/models"
)

// writeLogFile writes a plain messages.log fixture and returns its path.
func writeLogFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "messages.log")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return p
}

// runMode extracts one mode from fixture content with an open window.
func runMode(t *testing.T, mode, content string) *models.ExtractionResult {
	t.Helper()
	res, err := Extract(context.Background(), Request{
		ArchivePath: writeLogFile(t, content),
		Mode:        mode,
	})
	if err != nil {
		t.Fatalf("Extract(%s) failed: %v", mode, err)
	}
	return res
}

// runModeWindow is runMode with an explicit time window.
func runModeWindow(t *testing.T, mode, content, begin, end string) *models.ExtractionResult {
	t.Helper()
	res, err := Extract(context.Background(), Request{
		ArchivePath: writeLogFile(t, content),
		Mode:        mode,
		Begin:       begin,
		End:         end,
	})
	if err != nil {
		t.Fatalf("Extract(%s) failed: %v", mode, err)
	}
	return res
}

func utc(h, m, s int) time.Time {
	return time.Date(2024, 1, 15, h, m, s, 0, time.UTC)
}
