package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
)

// gradeRule normalizes one of the three equivalent ways a unit signals a
// grade transition onto the shared Full/Limited vocabulary. First match
// wins.
type gradeRule struct {
	re    *regexp.Regexp
	build func(ts time.Time, m []string) models.GradeEvent
}

var gradeRules = []gradeRule{
	// Explicit grade-change line.
	{regexp.MustCompile(`GradingManager: modem (\d+) grade changed to (Full|Limited) Service(?: \(([^)]+)\))?`),
		func(ts time.Time, m []string) models.GradeEvent {
			return models.GradeEvent{
				ModemID:   m[1],
				Timestamp: ts,
				Status:    models.GradeStatus(m[2]),
				Detail:    m[3],
			}
		}},
	// Smoothed-RTT threshold crossing implies Limited Service.
	{regexp.MustCompile(`GradingManager: modem (\d+) smoothed rtt (\d+) ms above threshold`),
		func(ts time.Time, m []string) models.GradeEvent {
			return models.GradeEvent{
				ModemID:   m[1],
				Timestamp: ts,
				Status:    models.GradeLimited,
				Detail:    fmt.Sprintf("smoothed rtt %s ms above threshold", m[2]),
			}
		}},
	// Loss-ceiling crossing implies Limited Service.
	{regexp.MustCompile(`GradingManager: modem (\d+) loss ([\d.]+)% above ceiling`),
		func(ts time.Time, m []string) models.GradeEvent {
			return models.GradeEvent{
				ModemID:   m[1],
				Timestamp: ts,
				Status:    models.GradeLimited,
				Detail:    fmt.Sprintf("loss %s%% above ceiling", m[2]),
			}
		}},
}

type gradingExtractor struct{}

func newGrading() Extractor { return gradingExtractor{} }

func (gradingExtractor) Mode() string { return "grading" }

func (gradingExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	events := make(map[string][]models.GradeEvent)
	count := 0

	err := env.scan(src, func(l models.LogLine) error {
		ev, ok := parseEvent(l, env.Loc)
		if !ok || !env.inWindow(ev.ts) {
			return nil
		}
		for _, r := range gradeRules {
			if m := r.re.FindStringSubmatch(ev.msg); m != nil {
				ge := r.build(ev.ts, m)
				events[ge.ModemID] = append(events[ge.ModemID], ge)
				count++
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return runFallback(env, src, "grading", `(?i)grad(e|ing)`)
	}

	return &models.ExtractionResult{
		Mode:   "grading",
		Raw:    renderGrades(events, env.Loc),
		Parsed: events,
	}, nil
}

func renderGrades(events map[string][]models.GradeEvent, loc *time.Location) string {
	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "modem %s\n", id)
		for _, e := range events[id] {
			detail := ""
			if e.Detail != "" {
				detail = " (" + e.Detail + ")"
			}
			fmt.Fprintf(&b, "  %s %s Service%s\n",
				e.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"), e.Status, detail)
		}
	}
	return b.String()
}
