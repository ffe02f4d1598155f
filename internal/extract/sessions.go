package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
)

var (
	sessionStartRe = regexp.MustCompile(`StreamManager: starting stream to ([\d.]+:\d+)`)
	sessionEndRe   = regexp.MustCompile(`StreamManager: stream stopped`)
	sessionIDRe    = regexp.MustCompile(`SessionManager: session id ([A-Za-z0-9-]+)`)
)

// sessionExtractor reconstructs streaming sessions from boundary markers
// with a two-state machine (idle / in-session).
type sessionExtractor struct {
	inSession bool
	start     time.Time
	pendingID string
	sessions  []models.SessionRecord
}

func newSessions() Extractor { return &sessionExtractor{} }

func (x *sessionExtractor) Mode() string { return "sessions" }

func (x *sessionExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	err := env.scan(src, func(l models.LogLine) error {
		ev, ok := parseEvent(l, env.Loc)
		if !ok || !env.inWindow(ev.ts) {
			return nil
		}
		switch {
		case sessionStartRe.MatchString(ev.msg):
			x.onStart(ev.ts)
		case sessionEndRe.MatchString(ev.msg):
			x.onEnd(ev.ts)
		default:
			if m := sessionIDRe.FindStringSubmatch(ev.msg); m != nil {
				// Attaches to the next emitted session unless one
				// is already pending.
				if x.pendingID == "" {
					x.pendingID = m[1]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A still-open session at end of log is flushed as start-only, not
	// discarded.
	if x.inSession {
		start := x.start
		x.emit(models.SessionRecord{Start: &start})
		x.inSession = false
	}

	return &models.ExtractionResult{
		Mode:   "sessions",
		Raw:    renderSessions(x.sessions, env.Loc),
		Parsed: x.sessions,
	}, nil
}

// onStart records a new session start. A start while already in a session
// emits the prior start as an incomplete session first.
func (x *sessionExtractor) onStart(ts time.Time) {
	if x.inSession {
		start := x.start
		x.emit(models.SessionRecord{Start: &start})
	}
	x.inSession = true
	x.start = ts
}

// onEnd closes the open session, or emits an end-only record when no start
// was observed.
func (x *sessionExtractor) onEnd(ts time.Time) {
	end := ts
	if x.inSession {
		start := x.start
		x.emit(models.SessionRecord{Start: &start, End: &end})
		x.inSession = false
		return
	}
	x.emit(models.SessionRecord{End: &end})
}

func (x *sessionExtractor) emit(s models.SessionRecord) {
	if x.pendingID != "" {
		s.ID = x.pendingID
		x.pendingID = ""
	}
	x.sessions = append(x.sessions, s)
}

func renderSessions(sessions []models.SessionRecord, loc *time.Location) string {
	const stamp = "2006-01-02 15:04:05"
	var b strings.Builder
	for _, s := range sessions {
		id := s.ID
		if id == "" {
			id = "-"
		}
		switch {
		case s.Complete():
			fmt.Fprintf(&b, "session %s: %s -> %s (%s)\n", id,
				s.Start.In(loc).Format(stamp), s.End.In(loc).Format(stamp), s.Duration())
		case s.Start != nil:
			fmt.Fprintf(&b, "session %s: %s -> (no end)\n", id, s.Start.In(loc).Format(stamp))
		default:
			fmt.Fprintf(&b, "session %s: (no start) -> %s\n", id, s.End.In(loc).Format(stamp))
		}
	}
	return b.String()
}
