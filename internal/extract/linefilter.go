package extract

import (
	"regexp"
	"strings"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/timeutil"
)

// lineFilter is the permissive extraction family: it keeps every line
// matching any of its patterns, timestamp or not. It also backs the legacy
// fallback path of the structured extractors, because some archive dialects
// never satisfy the structured patterns.
type lineFilter struct {
	mode     string
	patterns []*regexp.Regexp // empty means every line matches
}

func newLineFilter(mode string, exprs ...string) *lineFilter {
	f := &lineFilter{mode: mode}
	for _, e := range exprs {
		f.patterns = append(f.patterns, regexp.MustCompile(e))
	}
	return f
}

func (f *lineFilter) Mode() string { return f.mode }

func (f *lineFilter) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	var matched []models.LogLine
	var raw strings.Builder

	err := env.scan(src, func(l models.LogLine) error {
		if !f.match(l.Text) {
			return nil
		}
		// Lines without a parsable timestamp stay eligible; the window
		// only excludes lines that carry a stamp outside it.
		if ts, _, ok := timeutil.ParseStamp(l.Text, env.Loc); ok && !env.inWindow(ts) {
			return nil
		}
		matched = append(matched, l)
		raw.WriteString(l.Text)
		raw.WriteByte('\n')
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.ExtractionResult{
		Mode:   f.mode,
		Raw:    raw.String(),
		Parsed: matched,
	}, nil
}

func (f *lineFilter) match(text string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, p := range f.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Filter expressions per mode. Component filters key off the bracketed tag;
// the rest are free-text matches the way operators grep these logs by hand.
func newErrorFilter() Extractor   { return newLineFilter("error", `ERROR|CRITICAL`, `(?i)\berror\b`) }
func newWarningFilter() Extractor { return newLineFilter("warning", `WARNING`, `(?i)\bwarning\b`) }
func newModemsFilter() Extractor  { return newLineFilter("modems", `(?i)\bmodem\b`) }
func newConnectionFilter() Extractor {
	return newLineFilter("connection", `(?i)connect|disconnect|link ready|link lost`)
}
func newStreamerFilter() Extractor { return newLineFilter("streamer", `\[streamer\]`) }
func newCorecardFilter() Extractor { return newLineFilter("corecard", `\[corecard\]`) }
func newServerFilter() Extractor   { return newLineFilter("server", `\[mgmt\]`) }
func newKernelFilter() Extractor   { return newLineFilter("kernel", `(?i)\bkernel\b`) }
func newFFmpegFilter() Extractor   { return newLineFilter("ffmpeg") }
func newAllFilter() Extractor      { return newLineFilter("all") }

// runFallback re-runs the permissive legacy extractor for a structured mode
// that produced zero records, keeping the structured mode's name on the
// result.
func runFallback(env *Env, src *archive.Scanner, mode string, exprs ...string) (*models.ExtractionResult, error) {
	res, err := newLineFilter(mode, exprs...).Run(env, src)
	if err != nil {
		return nil, err
	}
	res.Mode = mode
	return res, nil
}
