package chart

import (
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

// frame is the read only context shared by the builders of one recompute
type frame struct {
	in       *models.Snapshot
	m        Mapper // restricted to rng
	rng      YRange
	maxBasal func() float64
	log      *slog.Logger
	obs      Observer
}

func newFrame(in *models.Snapshot, layout Layout, log *slog.Logger, obs Observer) *frame {
	m := NewMapper(in.Now, layout)
	rng := ComputeRange(in, m)
	return &frame{
		in:       in,
		m:        rng.Mapper(m),
		rng:      rng,
		maxBasal: maxBasalCache(in),
		log:      log,
		obs:      obs,
	}
}

// anomaly reports a data quality problem. Builders never fail; they skip
// or clamp the offending entry and report it here.
func (f *frame) anomaly(s Series, msg string, args ...any) {
	f.log.Warn(msg, append([]any{slog.String("series", s.String())}, args...)...)
	f.obs.Anomaly(s)
}

// interpolatedPoint places t on the glucose curve. The first sample newer
// than t bounds the segment; with no earlier sample the last reading is used.
func (f *frame) interpolatedPoint(t time.Time) Point {
	x := f.m.TimeToX(t)
	glucose := f.in.Glucose

	_, next, found := lo.FindIndexOf(glucose, func(g models.GlucoseSample) bool {
		return g.Date.After(t)
	})
	if !found || next == 0 {
		last := 0.0
		if n := len(glucose); n > 0 {
			last = glucose[n-1].Value()
		}
		return Point{X: x, Y: f.m.ValueToY(last)}
	}

	prev := f.m.Point(glucose[next-1].Date, glucose[next-1].Value())
	nxt := f.m.Point(glucose[next].Date, glucose[next].Value())
	delta := nxt.X - prev.X
	if delta == 0 {
		return Point{X: x, Y: prev.Y}
	}
	fraction := (x - prev.X) / delta
	return Point{
		X: prev.X + (nxt.X-prev.X)*fraction,
		Y: prev.Y + (nxt.Y-prev.Y)*fraction,
	}
}

// horizon returns how far the longest prediction reaches past the last
// glucose reading
func horizon(in *models.Snapshot) (time.Duration, bool) {
	if in.Suggestion == nil || in.Suggestion.DeliverAt == nil || len(in.Glucose) == 0 {
		return 0, false
	}
	last := in.Glucose[len(in.Glucose)-1]
	lastDelta := last.Date.Sub(*in.Suggestion.DeliverAt)
	return time.Duration(in.Suggestion.Predictions.MaxLen())*models.PredictionStep - lastDelta, true
}

// AdditionalWidth is the room reserved right of now for predictions at the
// given zoom, clamped to [MinAdditionalWidth, MaxAdditionalWidth]
func AdditionalWidth(h time.Duration, ok bool, layout Layout, screenHours float64) float64 {
	if !ok {
		return MinAdditionalWidth
	}
	if screenHours <= 0 {
		screenHours = 1
	}
	w := h.Seconds() * layout.OneSecondStep() / screenHours
	return min(max(w, MinAdditionalWidth), MaxAdditionalWidth)
}
