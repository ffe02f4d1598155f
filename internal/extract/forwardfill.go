package extract

import (
	"time"

	"github.com/alonraif/NGL-sub000/internal/models"
)

// Units report bandwidth roughly every fillInterval; gaps wider than that
// would render as a drop to zero on a chart, so they are bridged with
// synthetic points that repeat the last known values.
const fillInterval = 5 * time.Second

// A pathological gap (days of idle log) must not explode into millions of
// rows; past this many synthetic points the interval is widened instead.
const maxSyntheticPerGap = 1000

// forwardFill walks consecutive real samples and inserts "forward filled"
// points across gaps wider than the sampling interval. Points that mark a
// stream boundary never fill forward. If until is later than the final
// sample, the fill extends to it (but not past it). Original numeric values
// are only ever repeated, never altered or invented.
func forwardFill(points []models.BandwidthPoint, until *time.Time) []models.BandwidthPoint {
	if len(points) == 0 {
		return points
	}

	out := make([]models.BandwidthPoint, 0, len(points))
	for i, p := range points {
		out = append(out, p)
		if i+1 < len(points) {
			out = append(out, fillGap(p, points[i+1].Timestamp)...)
		} else if until != nil && until.After(p.Timestamp) {
			out = append(out, fillTo(p, *until)...)
		}
	}
	return out
}

// fillGap produces the synthetic points strictly between from.Timestamp and
// next, repeating from's values.
func fillGap(from models.BandwidthPoint, next time.Time) []models.BandwidthPoint {
	if from.Boundary() {
		return nil
	}
	gap := next.Sub(from.Timestamp)
	if gap <= fillInterval {
		return nil
	}

	step := fillInterval
	if int64(gap/step) > maxSyntheticPerGap {
		step = gap / time.Duration(maxSyntheticPerGap+1)
	}

	var synth []models.BandwidthPoint
	for t := from.Timestamp.Add(step); t.Before(next); t = t.Add(step) {
		synth = append(synth, synthPoint(from, t))
	}
	return synth
}

// fillTo extends the fill past the final real sample, up to and including
// until but never beyond it. An off-grid until simply gets no point on the
// short remainder.
func fillTo(from models.BandwidthPoint, until time.Time) []models.BandwidthPoint {
	if from.Boundary() {
		return nil
	}
	gap := until.Sub(from.Timestamp)

	step := fillInterval
	if int64(gap/step) > maxSyntheticPerGap {
		step = gap / time.Duration(maxSyntheticPerGap+1)
	}

	var synth []models.BandwidthPoint
	for t := from.Timestamp.Add(step); !t.After(until); t = t.Add(step) {
		synth = append(synth, synthPoint(from, t))
	}
	return synth
}

func synthPoint(from models.BandwidthPoint, t time.Time) models.BandwidthPoint {
	return models.BandwidthPoint{
		Timestamp: t,
		TotalKbps: from.TotalKbps,
		VideoKbps: from.VideoKbps,
		Note:      models.NoteForwardFilled,
	}
}
