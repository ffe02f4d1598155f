package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
)

// bandwidthRule pairs a pattern with a pure line builder. Rules are
// evaluated in order; the first match wins.
type bandwidthRule struct {
	re    *regexp.Regexp
	build func(ev logEvent, m []string) models.BandwidthPoint
}

func bitratePoint(ev logEvent, m []string) models.BandwidthPoint {
	total, _ := strconv.Atoi(m[1])
	video, _ := strconv.Atoi(m[2])
	return models.BandwidthPoint{Timestamp: ev.ts, TotalKbps: total, VideoKbps: video}
}

func boundaryPoint(note string) func(ev logEvent, m []string) models.BandwidthPoint {
	return func(ev logEvent, _ []string) models.BandwidthPoint {
		return models.BandwidthPoint{Timestamp: ev.ts, Note: note}
	}
}

// Stream bandwidth rules: flow-control bitrate change, congestion-triggered
// bitrate change, stream-start marker (carrying the destination address),
// stream-stop marker.
var streamBWRules = []bandwidthRule{
	{regexp.MustCompile(`flow control set bitrate to (\d+) kbps, video bitrate (\d+) kbps`), bitratePoint},
	{regexp.MustCompile(`congestion control set bitrate to (\d+) kbps, video bitrate (\d+) kbps`), bitratePoint},
	{regexp.MustCompile(`StreamManager: starting stream to ([\d.]+:\d+)`), boundaryPoint(models.NoteStreamStart)},
	{regexp.MustCompile(`StreamManager: stream stopped`), boundaryPoint(models.NoteStreamEnd)},
}

// Data-bridge rules mirror the stream family; the bridge reports a single
// throughput figure, so the video column stays zero.
var bridgeBWRules = []bandwidthRule{
	{regexp.MustCompile(`DataBridge: set bandwidth to (\d+) kbps`), func(ev logEvent, m []string) models.BandwidthPoint {
		total, _ := strconv.Atoi(m[1])
		return models.BandwidthPoint{Timestamp: ev.ts, TotalKbps: total}
	}},
	{regexp.MustCompile(`DataBridge: starting bridge to ([\d.]+:\d+)`), boundaryPoint(models.NoteStreamStart)},
	{regexp.MustCompile(`DataBridge: bridge stopped`), boundaryPoint(models.NoteStreamEnd)},
}

// bandwidthExtractor covers the bw and db-bw modes.
type bandwidthExtractor struct {
	mode          string
	rules         []bandwidthRule
	fallbackExprs []string
}

func newStreamBandwidth() Extractor {
	return &bandwidthExtractor{mode: "bw", rules: streamBWRules, fallbackExprs: []string{`(?i)bitrate`}}
}

func newBridgeBandwidth() Extractor {
	return &bandwidthExtractor{mode: "db-bw", rules: bridgeBWRules, fallbackExprs: []string{`(?i)data ?bridge`}}
}

func (x *bandwidthExtractor) Mode() string { return x.mode }

func (x *bandwidthExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	var points []models.BandwidthPoint

	err := env.scan(src, func(l models.LogLine) error {
		ev, ok := parseEvent(l, env.Loc)
		if !ok || !env.inWindow(ev.ts) {
			return nil
		}
		for _, r := range x.rules {
			if m := r.re.FindStringSubmatch(ev.msg); m != nil {
				points = append(points, r.build(ev, m))
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(points) == 0 {
		// Archive dialect the structured patterns do not cover: fail
		// over to the legacy line filter rather than return an empty
		// series.
		return runFallback(env, src, x.mode, x.fallbackExprs...)
	}

	var until *time.Time
	if env.Window != nil {
		until = env.Window.End
	}
	filled := forwardFill(points, until)

	return &models.ExtractionResult{
		Mode:   x.mode,
		Raw:    renderBandwidth(filled, env.Loc),
		Parsed: filled,
	}, nil
}

func renderBandwidth(points []models.BandwidthPoint, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-23s %10s %10s  %s\n", "timestamp", "total", "video", "note")
	for _, p := range points {
		fmt.Fprintf(&b, "%-23s %10d %10d  %s\n",
			p.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"),
			p.TotalKbps, p.VideoKbps, p.Note)
	}
	return b.String()
}
