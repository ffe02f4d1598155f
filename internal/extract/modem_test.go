package extract

import (
	"strings"
	"testing"

	"github.com/alonraif/NGL-sub000/internal/models"
)

const modemFixture = "" +
	"2024-01-15 10:00:00.000 INFO [corecard] ModemStats: modem 1 potential bw 5400 kbps, loss 0.3%, upstream delay 45 ms, rtt 38/52/35 ms\n" +
	"2024-01-15 10:00:00.000 INFO [corecard] ModemStats: modem 2 potential bw 3200 kbps, loss 1.5%, upstream delay 80 ms, rtt 60/75/58 ms\n" +
	"2024-01-15 10:00:10.000 INFO [corecard] ModemStats: modem 1 potential bw 5100 kbps, loss 0.4%, upstream delay 47 ms, rtt 40/53/36 ms\n"

func TestModemStats(t *testing.T) {
	res := runMode(t, "md", modemFixture)
	series, ok := res.Parsed.(models.ModemSeries)
	if !ok {
		t.Fatalf("parsed type = %T, want models.ModemSeries", res.Parsed)
	}
	if len(series.Modems) != 2 {
		t.Fatalf("got %d modems, want 2", len(series.Modems))
	}

	m1 := series.Modems["1"]
	if len(m1) != 2 {
		t.Fatalf("modem 1: got %d samples, want 2", len(m1))
	}
	first := m1[0]
	if first.PotentialKbps != 5400 || first.LossPercent != 0.3 || first.UpstreamDelayMs != 45 {
		t.Errorf("sample = %+v, want 5400 kbps, 0.3%%, 45 ms", first)
	}
	if first.ShortestRTTMs != 38 || first.SmoothedRTTMs != 52 || first.MinRTTMs != 35 {
		t.Errorf("rtt triple = %d/%d/%d, want 38/52/35", first.ShortestRTTMs, first.SmoothedRTTMs, first.MinRTTMs)
	}

	// Aggregate sums across modems at each distinct timestamp, in order.
	if len(series.Aggregated) != 2 {
		t.Fatalf("got %d aggregated samples, want 2", len(series.Aggregated))
	}
	if series.Aggregated[0].TotalKbps != 5400+3200 {
		t.Errorf("aggregate at 10:00:00 = %d, want 8600", series.Aggregated[0].TotalKbps)
	}
	if series.Aggregated[1].TotalKbps != 5100 {
		t.Errorf("aggregate at 10:00:10 = %d, want 5100", series.Aggregated[1].TotalKbps)
	}
}

func TestModemBandwidthRender(t *testing.T) {
	res := runMode(t, "md-bw", modemFixture)
	if strings.Contains(res.Raw, "loss") {
		t.Error("md-bw raw output should omit loss/delay columns")
	}
	if !strings.Contains(res.Raw, "aggregated") {
		t.Error("md-bw raw output should include the aggregate section")
	}
}

func TestModemStatsFallback(t *testing.T) {
	res := runMode(t, "md", ""+
		"2024-01-15 10:00:00.000 INFO [corecard] legacy modem 1 report: signal -67 dBm\n"+
		"2024-01-15 10:00:01.000 INFO [corecard] unrelated\n")
	lines, ok := res.Parsed.([]models.LogLine)
	if !ok {
		t.Fatalf("fallback parsed type = %T, want []models.LogLine", res.Parsed)
	}
	if len(lines) != 1 {
		t.Errorf("fallback kept %d lines, want 1", len(lines))
	}
}
