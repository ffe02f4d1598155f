// Package timeutil provides the time-window primitives shared by the archive
// scanner, pre-filter and extractors.
package timeutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// ErrInvalidDateBound is returned when a begin/end string cannot be parsed.
// A bound that fails to parse is a configuration error, never silently
// ignored.
var ErrInvalidDateBound = errors.New("invalid date bound")

// Range is an immutable inclusive [start, end] window. A nil bound is open on
// that side. Loc is the comparison zone: naive instants are interpreted in it
// before containment is tested.
type Range struct {
	Start *time.Time
	End   *time.Time
	Loc   *time.Location
}

// NewRange builds a Range from optional begin/end strings using a permissive
// date parser. Empty strings leave the corresponding side open.
func NewRange(begin, end string, loc *time.Location) (*Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Range{Loc: loc}

	if begin != "" {
		t, err := dateparse.ParseIn(begin, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: begin %q: %v", ErrInvalidDateBound, begin, err)
		}
		r.Start = &t
	}
	if end != "" {
		t, err := dateparse.ParseIn(end, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: end %q: %v", ErrInvalidDateBound, end, err)
		}
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return nil, fmt.Errorf("%w: end %q precedes begin %q", ErrInvalidDateBound, end, begin)
	}
	return r, nil
}

// Contains tests inclusive containment. Missing bounds are open; a zero
// instant is never contained.
func (r *Range) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if t.IsZero() {
		return false
	}
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Open reports whether the range has no bounds at all.
func (r *Range) Open() bool {
	return r == nil || (r.Start == nil && r.End == nil)
}

// ParseStamp parses the leading "YYYY-MM-DD HH:MM:SS(.fff)" timestamp of a
// log line in the given zone, returning the remainder of the line after the
// stamp. Manual digit parsing runs several times faster than time.Parse for
// the fixed layout, which matters when scanning multi-GB archives.
func ParseStamp(line string, loc *time.Location) (time.Time, string, bool) {
	// Minimum: "2024-01-15 10:30:45" = 19 chars.
	if len(line) < 19 || line[4] != '-' || line[7] != '-' || line[10] != ' ' ||
		line[13] != ':' || line[16] != ':' {
		return time.Time{}, "", false
	}

	year := parseInt4(line[0:4])
	month := parseInt2(line[5:7])
	day := parseInt2(line[8:10])
	hour := parseInt2(line[11:13])
	min := parseInt2(line[14:16])
	sec := parseInt2(line[17:19])

	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}, "", false
	}

	rest := line[19:]
	var nsec int
	if len(rest) > 1 && rest[0] == '.' {
		i := 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		frac := rest[1:i]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		nsec = parseIntN(frac)
		for j := len(frac); j < 9; j++ {
			nsec *= 10
		}
		rest = rest[i:]
	}

	if loc == nil {
		loc = time.UTC
	}
	ts := time.Date(year, time.Month(month), day, hour, min, sec, nsec, loc)
	for len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return ts, rest, true
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}

// parseIntN parses an all-digit decimal string. Returns 0 on error.
func parseIntN(s string) int {
	result := 0
	for i := 0; i < len(s); i++ {
		d := s[i] - '0'
		if d > 9 {
			return 0
		}
		result = result*10 + int(d)
	}
	return result
}
