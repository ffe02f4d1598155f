package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alonraif/NGL-sub000/internal/models"
)

func linesOf(t *testing.T, res *models.ExtractionResult) []models.LogLine {
	t.Helper()
	lines, ok := res.Parsed.([]models.LogLine)
	if !ok {
		t.Fatalf("parsed type = %T, want []models.LogLine", res.Parsed)
	}
	return lines
}

func TestLineFilters(t *testing.T) {
	fixture := "" +
		"2024-01-15 10:00:00.000 INFO [corecard] Modem 1: link lost\n" +
		"2024-01-15 10:00:01.000 ERROR [streamer] encoder stalled\n" +
		"2024-01-15 10:00:02.000 WARNING [mgmt] session idle\n" +
		"2024-01-15 10:00:03.000 DEBUG [corecard] kernel: eth0 carrier up\n" +
		"2024-01-15 10:00:04.000 INFO [streamer] connected to relay\n"

	cases := []struct {
		mode string
		want []string
	}{
		{"error", []string{"encoder stalled"}},
		{"warning", []string{"session idle"}},
		{"modems", []string{"Modem 1"}},
		{"connection", []string{"link lost", "connected to relay"}},
		{"streamer", []string{"encoder stalled", "connected to relay"}},
		{"corecard", []string{"link lost", "carrier up"}},
		{"server", []string{"session idle"}},
		{"kernel", []string{"carrier up"}},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			lines := linesOf(t, runMode(t, tc.mode, fixture))
			if len(lines) != len(tc.want) {
				t.Fatalf("kept %d lines, want %d: %v", len(lines), len(tc.want), lines)
			}
			for i, frag := range tc.want {
				if !strings.Contains(lines[i].Text, frag) {
					t.Errorf("line %d = %q, want fragment %q", i, lines[i].Text, frag)
				}
			}
		})
	}
}

func TestAllFilterKeepsEverything(t *testing.T) {
	fixture := "" +
		"2024-01-15 10:00:00.000 INFO [corecard] one\n" +
		"no timestamp here\n" +
		"2024-01-15 10:00:01.000 INFO [corecard] two\n"
	lines := linesOf(t, runMode(t, "all", fixture))
	if len(lines) != 3 {
		t.Fatalf("kept %d lines, want 3", len(lines))
	}
}

func TestLineFilterWindow(t *testing.T) {
	fixture := "" +
		"2024-01-15 09:00:00.000 ERROR [corecard] too early\n" +
		"2024-01-15 10:00:00.000 ERROR [corecard] in window\n" +
		"stamp-free error continuation\n" +
		"2024-01-15 12:00:00.000 ERROR [corecard] too late\n"
	res := runModeWindow(t, "error", fixture, "2024-01-15 09:30:00", "2024-01-15 11:00:00")
	lines := linesOf(t, res)
	// Stamp-free lines stay eligible under a window; only lines with a
	// stamp outside it are dropped.
	if len(lines) != 2 {
		t.Fatalf("kept %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0].Text, "in window") || !strings.Contains(lines[1].Text, "continuation") {
		t.Errorf("kept lines = %v", lines)
	}
}

func TestFFmpegModeKeepsStampFreeLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ffmpeg.log")
	if err := os.WriteFile(p,
		[]byte("frame= 1201 fps= 30 q=28.0 size= 8448kB\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	res, err := Extract(context.Background(), Request{ArchivePath: p, Mode: "ffmpeg"})
	if err != nil {
		t.Fatalf("Extract(ffmpeg) failed: %v", err)
	}
	lines := linesOf(t, res)
	if len(lines) != 1 || !strings.Contains(lines[0].Text, "fps= 30") {
		t.Errorf("ffmpeg lines = %v", lines)
	}
}
