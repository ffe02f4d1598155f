// Package extract implements the per-mode extraction engine that turns a
// diagnostic archive's line stream into structured time-series and event
// data.
package extract

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/timeutil"
)

// ErrCancelled is the distinguished outcome of a cooperatively cancelled
// extraction. Callers must branch on it separately from failures and must
// not treat partial output as valid.
var ErrCancelled = errors.New("extraction cancelled")

// Progress callbacks fire every progressEvery scanned lines.
const progressEvery = 100000

// Env carries the per-request state every extractor runs under. A fresh Env
// (and a fresh extractor) is created per request; nothing here is shared
// across concurrent extractions.
type Env struct {
	Ctx      context.Context
	Loc      *time.Location
	Window   *timeutil.Range
	Progress func(lines int)
}

// Extractor is the contract all modes share: iterate lines, honor
// cancellation, return a structured result.
type Extractor interface {
	Mode() string
	Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error)
}

// scan walks the archive once, checking cancellation before every line.
func (e *Env) scan(src *archive.Scanner, fn func(models.LogLine) error) error {
	n := 0
	err := src.Scan(func(l models.LogLine) error {
		if err := e.Ctx.Err(); err != nil {
			return ErrCancelled
		}
		n++
		if e.Progress != nil && n%progressEvery == 0 {
			e.Progress(n)
		}
		return fn(l)
	})
	if err != nil {
		return err
	}
	if e.Progress != nil {
		e.Progress(n)
	}
	return nil
}

// inWindow applies the request's time window. Zero timestamps (lines without
// a parsable stamp) pass only when the window is open.
func (e *Env) inWindow(ts time.Time) bool {
	if e.Window == nil || e.Window.Open() {
		return true
	}
	return e.Window.Contains(ts)
}

// logEvent is one decoded diagnostic line: leading timestamp, level token,
// optional bracketed component tag, and the message remainder.
type logEvent struct {
	ts    time.Time
	level string
	comp  string
	msg   string
}

var levelTokens = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true,
}

// parseEvent decodes the common line shape
// "YYYY-MM-DD HH:MM:SS.fff LEVEL [component] message". Lines without a
// leading timestamp do not decode; timestamp-dependent extractors skip them.
func parseEvent(l models.LogLine, loc *time.Location) (logEvent, bool) {
	ts, rest, ok := timeutil.ParseStamp(l.Text, loc)
	if !ok {
		return logEvent{}, false
	}
	ev := logEvent{ts: ts, msg: rest}

	if i := strings.IndexByte(rest, ' '); i > 0 && levelTokens[rest[:i]] {
		ev.level = rest[:i]
		rest = strings.TrimLeft(rest[i+1:], " ")
		ev.msg = rest
	}
	if strings.HasPrefix(rest, "[") {
		if j := strings.IndexByte(rest, ']'); j > 1 {
			ev.comp = rest[1:j]
			ev.msg = strings.TrimLeft(rest[j+1:], " ")
		}
	}
	return ev, true
}

// warningLevel reports whether the level tags the record as a warning rather
// than informational.
func warningLevel(level string) bool {
	switch level {
	case "WARNING", "ERROR", "CRITICAL":
		return true
	}
	return false
}
