package chart

import (
	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

const suspensionHeight = BasalHeight * 0.7

// buildSuspensions turns suspend/resume pairs into bands in the basal
// strip. A leading resume starts where the last temp basal before it
// ended; a trailing suspend runs until the next temp basal or past the
// prediction area.
func buildSuspensions(f *frame) func(*Geometry) {
	events := f.in.Suspensions
	temps := pairTempBasals(f.in.TempBasals, nil)
	paired := make([]bool, len(events))

	var rects []Rect
	band := func(x0, x1 float64) {
		if x1 < x0 {
			f.anomaly(SeriesSuspensions, "suspension ends before it starts", "x0", x0, "x1", x1)
			x1 = x0
		}
		rects = append(rects, Rect{X: x0, Y: 0, W: x1 - x0, H: suspensionHeight})
	}

	for i := 0; i+1 < len(events); i++ {
		if events[i].Type == models.EventPumpSuspend && events[i+1].Type == models.EventPumpResume {
			band(f.m.TimeToX(events[i].Timestamp), f.m.TimeToX(events[i+1].Timestamp))
			paired[i], paired[i+1] = true, true
		}
	}

	if n := len(events); n > 0 {
		if first := events[0]; first.Type == models.EventPumpResume {
			start := f.m.Origin()
			if t, _, ok := lo.FindLastIndexOf(temps, func(t tempBasal) bool { return t.start.Before(first.Timestamp) }); ok {
				start = t.end
			}
			band(f.m.TimeToX(start), f.m.TimeToX(first.Timestamp))
			paired[0] = true
		}
		if last := events[n-1]; last.Type == models.EventPumpSuspend {
			x1 := f.m.Layout().FullWidth() + MaxAdditionalWidth
			if t, ok := lo.Find(temps, func(t tempBasal) bool { return t.start.After(last.Timestamp) }); ok {
				x1 = f.m.TimeToX(t.start)
			}
			band(f.m.TimeToX(last.Timestamp), x1)
			paired[n-1] = true
		}
	}

	for i, ok := range paired {
		if !ok {
			f.anomaly(SeriesSuspensions, "unpaired pump event", "type", events[i].Type, "timestamp", events[i].Timestamp)
		}
	}

	return func(g *Geometry) { g.Suspensions = rects }
}
