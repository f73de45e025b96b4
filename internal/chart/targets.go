package chart

import (
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

// truncateOverlaps resolves overlap left to right: a rectangle stops where
// the next one starts. Widths that would go negative are clamped to zero
// and reported.
func truncateOverlaps(f *frame, s Series, rects []Rect) {
	for i := 1; i < len(rects); i++ {
		last := &rects[i-1]
		if last.MaxX() > rects[i].X {
			last.W = rects[i].X - last.X
		}
	}
	for i := range rects {
		if rects[i].W < 0 {
			f.anomaly(s, "negative band width clamped", "index", i, "width", rects[i].W)
			rects[i].W = 0
		}
	}
}

func buildTempTargets(f *frame) func(*Geometry) {
	rects := lo.Map(f.in.TempTargets, func(t models.TempTarget, _ int) Rect {
		x0 := f.m.TimeToX(t.CreatedAt)
		x1 := f.m.TimeToX(t.End())
		y0 := f.m.ValueToY(t.Top())
		y1 := f.m.ValueToY(t.Bottom())
		return Rect{X: x0, Y: y0 - 3, W: x1 - x0, H: y1 - y0 + 6}
	})
	truncateOverlaps(f, SeriesTempTargets, rects)
	return func(g *Geometry) { g.TempTargets = rects }
}

func (f *frame) overrideRect(start, end time.Time, target, extra float64) Rect {
	y := f.m.ValueToY(max(target, MinGlucose))
	x0 := f.m.TimeToX(start)
	x1 := f.m.TimeToX(end)
	return Rect{X: x0, Y: y - 3, W: x1 - x0 + extra, H: 8}
}

// buildOverrides draws the override history. When the newest entry is
// enabled it is the active override: it spans its duration, or runs to
// now plus the prediction area when it has none.
func buildOverrides(f *frame) func(*Geometry) {
	history := f.in.Overrides
	var active *models.OverrideEvent
	if n := len(history); n > 0 && history[n-1].Enabled {
		active = &history[n-1]
		history = history[:n-1]
	}

	rects := lo.Map(history, func(o models.OverrideEvent, _ int) Rect {
		return f.overrideRect(o.Date, o.End(), o.Target, 0)
	})
	if active != nil {
		if active.DurationMin > 0 {
			rects = append(rects, f.overrideRect(active.Date, active.End(), active.Target, 0))
		} else {
			h, ok := horizon(f.in)
			extra := AdditionalWidth(h, ok, f.m.Layout(), 1)
			rects = append(rects, f.overrideRect(active.Date, f.m.Now(), active.Target, extra))
		}
	}
	truncateOverlaps(f, SeriesOverrides, rects)
	return func(g *Geometry) { g.Overrides = rects }
}
