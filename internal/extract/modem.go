package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
)

// ModemStats lines carry every per-modem figure in one record:
// "ModemStats: modem 2 potential bw 5400 kbps, loss 0.3%, upstream delay 45 ms, rtt 38/52/35 ms"
// The RTT triple is shortest/smoothed/min.
var modemStatsRe = regexp.MustCompile(
	`ModemStats: modem (\d+) potential bw (\d+) kbps, loss ([\d.]+)%, upstream delay (\d+) ms, rtt (\d+)/(\d+)/(\d+) ms`)

// modemStatsExtractor covers md (full statistics) and md-bw (bandwidth view
// plus the cross-modem aggregate).
type modemStatsExtractor struct {
	mode string
}

func newModemStats() Extractor     { return &modemStatsExtractor{mode: "md"} }
func newModemBandwidth() Extractor { return &modemStatsExtractor{mode: "md-bw"} }

func (x *modemStatsExtractor) Mode() string { return x.mode }

func (x *modemStatsExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	series := models.ModemSeries{Modems: make(map[string][]models.ModemSample)}
	totals := make(map[time.Time]int)
	count := 0

	err := env.scan(src, func(l models.LogLine) error {
		ev, ok := parseEvent(l, env.Loc)
		if !ok || !env.inWindow(ev.ts) {
			return nil
		}
		m := modemStatsRe.FindStringSubmatch(ev.msg)
		if m == nil {
			return nil
		}
		s := buildModemSample(ev.ts, m)
		series.Modems[s.ModemID] = append(series.Modems[s.ModemID], s)
		totals[s.Timestamp] += s.PotentialKbps
		count++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return runFallback(env, src, x.mode, `(?i)\bmodem\b`)
	}

	series.Aggregated = aggregate(totals)

	return &models.ExtractionResult{
		Mode:   x.mode,
		Raw:    x.render(&series, env.Loc),
		Parsed: series,
	}, nil
}

func buildModemSample(ts time.Time, m []string) models.ModemSample {
	potential, _ := strconv.Atoi(m[2])
	loss, _ := strconv.ParseFloat(m[3], 64)
	delay, _ := strconv.Atoi(m[4])
	shortest, _ := strconv.Atoi(m[5])
	smoothed, _ := strconv.Atoi(m[6])
	min, _ := strconv.Atoi(m[7])
	return models.ModemSample{
		ModemID:         m[1],
		Timestamp:       ts,
		PotentialKbps:   potential,
		LossPercent:     loss,
		UpstreamDelayMs: delay,
		ShortestRTTMs:   shortest,
		SmoothedRTTMs:   smoothed,
		MinRTTMs:        min,
	}
}

// aggregate sums potential bandwidth across modems per distinct timestamp.
func aggregate(totals map[time.Time]int) []models.AggregatedSample {
	agg := make([]models.AggregatedSample, 0, len(totals))
	for ts, total := range totals {
		agg = append(agg, models.AggregatedSample{Timestamp: ts, TotalKbps: total})
	}
	sort.Slice(agg, func(i, j int) bool { return agg[i].Timestamp.Before(agg[j].Timestamp) })
	return agg
}

func (x *modemStatsExtractor) render(series *models.ModemSeries, loc *time.Location) string {
	ids := make([]string, 0, len(series.Modems))
	for id := range series.Modems {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "modem %s\n", id)
		for _, s := range series.Modems[id] {
			if x.mode == "md-bw" {
				fmt.Fprintf(&b, "  %s %8d kbps\n",
					s.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"), s.PotentialKbps)
				continue
			}
			fmt.Fprintf(&b, "  %s %8d kbps  loss %.1f%%  delay %d ms  rtt %d/%d/%d ms\n",
				s.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"),
				s.PotentialKbps, s.LossPercent, s.UpstreamDelayMs,
				s.ShortestRTTMs, s.SmoothedRTTMs, s.MinRTTMs)
		}
	}
	if len(series.Aggregated) > 0 {
		b.WriteString("aggregated\n")
		for _, a := range series.Aggregated {
			fmt.Fprintf(&b, "  %s %8d kbps\n",
				a.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"), a.TotalKbps)
		}
	}
	return b.String()
}
