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

var (
	memRe = regexp.MustCompile(`MemMonitor: used (\d+) MB of (\d+) MB \(([\d.]+)%\)`)
	cpuRe = regexp.MustCompile(`CPUMonitor: load ([\d.]+)%`)
)

// knownComponents restricts resource samples to the two device-side
// components and the server-side one; anything else in the component slot is
// noise from untagged subsystems.
var knownComponents = map[string]bool{
	models.ComponentCorecard: true,
	models.ComponentStreamer: true,
	models.ComponentServer:   true,
}

// resourceExtractor covers memory and cpu utilization modes. The component
// is taken purely from the line-prefix tag, and the warning flag from the
// originating log level.
type resourceExtractor struct {
	mode string
	re   *regexp.Regexp
}

func newMemory() Extractor { return &resourceExtractor{mode: "memory", re: memRe} }
func newCPU() Extractor    { return &resourceExtractor{mode: "cpu", re: cpuRe} }

func (x *resourceExtractor) Mode() string { return x.mode }

func (x *resourceExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	var samples []models.ResourceSample

	err := env.scan(src, func(l models.LogLine) error {
		ev, ok := parseEvent(l, env.Loc)
		if !ok || !env.inWindow(ev.ts) {
			return nil
		}
		if !knownComponents[ev.comp] {
			return nil
		}
		m := x.re.FindStringSubmatch(ev.msg)
		if m == nil {
			return nil
		}
		samples = append(samples, x.build(ev, m))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.ExtractionResult{
		Mode:   x.mode,
		Raw:    x.render(samples, env.Loc),
		Parsed: samples,
	}, nil
}

func (x *resourceExtractor) build(ev logEvent, m []string) models.ResourceSample {
	s := models.ResourceSample{
		Component: ev.comp,
		Timestamp: ev.ts,
		Warning:   warningLevel(ev.level),
	}
	if x.mode == "memory" {
		used, _ := strconv.ParseFloat(m[1], 64)
		pct, _ := strconv.ParseFloat(m[3], 64)
		s.Value = used
		s.Percent = pct
	} else {
		load, _ := strconv.ParseFloat(m[1], 64)
		s.Value = load
		s.Percent = load
	}
	return s
}

func (x *resourceExtractor) render(samples []models.ResourceSample, loc *time.Location) string {
	unit := "MB"
	if x.mode == "cpu" {
		unit = "%"
	}
	var b strings.Builder
	for _, s := range samples {
		flag := ""
		if s.Warning {
			flag = "  [warn]"
		}
		fmt.Fprintf(&b, "%s %-9s %8.1f %s (%.1f%%)%s\n",
			s.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"),
			s.Component, s.Value, unit, s.Percent, flag)
	}
	return b.String()
}
