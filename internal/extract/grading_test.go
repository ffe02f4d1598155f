package extract

import (
	"strings"
	"testing"

	"github.com/alonraif/NGL-sub000/internal/models"
)

func TestGradingNormalization(t *testing.T) {
	res := runMode(t, "grading", ""+
		"2024-01-15 10:00:00.000 INFO [corecard] GradingManager: modem 1 grade changed to Limited Service (high rtt)\n"+
		"2024-01-15 10:00:05.000 WARNING [corecard] GradingManager: modem 2 smoothed rtt 850 ms above threshold\n"+
		"2024-01-15 10:00:10.000 WARNING [corecard] GradingManager: modem 2 loss 4.2% above ceiling\n"+
		"2024-01-15 10:05:00.000 INFO [corecard] GradingManager: modem 1 grade changed to Full Service\n")
	events, ok := res.Parsed.(map[string][]models.GradeEvent)
	if !ok {
		t.Fatalf("parsed type = %T, want map[string][]models.GradeEvent", res.Parsed)
	}

	m1 := events["1"]
	if len(m1) != 2 {
		t.Fatalf("modem 1: got %d events, want 2", len(m1))
	}
	if m1[0].Status != models.GradeLimited || m1[0].Detail != "high rtt" {
		t.Errorf("modem 1 first event = %+v, want Limited (high rtt)", m1[0])
	}
	if m1[1].Status != models.GradeFull {
		t.Errorf("modem 1 second event = %+v, want Full", m1[1])
	}

	// Threshold and ceiling crossings both normalize to Limited.
	m2 := events["2"]
	if len(m2) != 2 {
		t.Fatalf("modem 2: got %d events, want 2", len(m2))
	}
	for i, e := range m2 {
		if e.Status != models.GradeLimited {
			t.Errorf("modem 2 event %d status = %q, want Limited", i, e.Status)
		}
	}
	if m2[0].Detail != "smoothed rtt 850 ms above threshold" {
		t.Errorf("modem 2 rtt detail = %q", m2[0].Detail)
	}
	if m2[1].Detail != "loss 4.2% above ceiling" {
		t.Errorf("modem 2 loss detail = %q", m2[1].Detail)
	}
}

func TestGradingFallback(t *testing.T) {
	res := runMode(t, "grading", ""+
		"2024-01-15 10:00:00.000 INFO [corecard] legacy grading module: modem 1 degraded\n"+
		"2024-01-15 10:00:01.000 INFO [corecard] unrelated noise\n")
	if res.Mode != "grading" {
		t.Errorf("mode = %q, want grading", res.Mode)
	}
	lines, ok := res.Parsed.([]models.LogLine)
	if !ok {
		t.Fatalf("fallback parsed type = %T, want []models.LogLine", res.Parsed)
	}
	if len(lines) != 1 || !strings.Contains(lines[0].Text, "legacy grading") {
		t.Errorf("fallback kept %v, want just the grading line", lines)
	}
}
