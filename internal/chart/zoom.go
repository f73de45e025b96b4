package chart

import (
	"github.com/samber/lo"
)

// View is a Geometry scaled for a visible window of ScreenHours. Scaling
// never reruns a builder; shape counts are those of the source geometry.
type View struct {
	Geometry
	ScreenHours     int     `json:"screenHours"`
	Scale           float64 `json:"scale"`
	AdditionalWidth float64 `json:"additionalWidth"`
	// Width is the whole drawable width at this zoom
	Width float64 `json:"width"`
	Axes  Axes    `json:"axes"`
}

// scaleRect stretches a band horizontally
func scaleRect(r Rect, k float64) Rect {
	return Rect{X: r.X * k, Y: r.Y, W: r.W * k, H: r.H}
}

// scaleCenter moves a marker with the timeline but keeps its size
func scaleCenter(r Rect, k float64) Rect {
	return Rect{X: r.MidX()*k - r.W/2, Y: r.Y, W: r.W, H: r.H}
}

func scaleRects(rs []Rect, f func(Rect, float64) Rect, k float64) []Rect {
	if rs == nil {
		return nil
	}
	return lo.Map(rs, func(r Rect, _ int) Rect { return f(r, k) })
}

func scalePath(p Path, k float64) Path {
	if p == nil {
		return nil
	}
	return lo.Map(p, func(pt Point, _ int) Point { return Point{X: pt.X * k, Y: pt.Y} })
}

func scaleDots(ds []Dot, k float64) []Dot {
	if ds == nil {
		return nil
	}
	return lo.Map(ds, func(d Dot, _ int) Dot { return Dot{Rect: scaleCenter(d.Rect, k), Value: d.Value} })
}

// Zoom scales g to a window of screenHours. Dots keep their size and move
// with their center; bands, segments and paths stretch.
func Zoom(g *Geometry, screenHours int, cfg AxesConfig) *View {
	if screenHours <= 0 {
		screenHours = 1
	}
	k := 1 / float64(screenHours)

	v := &View{
		Geometry:    *g,
		ScreenHours: screenHours,
		Scale:       k,
	}
	z := &v.Geometry
	z.Glucose = scaleRects(g.Glucose, scaleCenter, k)
	z.ManualGlucose = scaleRects(g.ManualGlucose, scaleCenter, k)
	z.ManualGlucoseCenter = scaleRects(g.ManualGlucoseCenter, scaleCenter, k)
	z.Unsmoothed = scaleRects(g.Unsmoothed, scaleCenter, k)
	for kind := range g.Predictions {
		z.Predictions[kind] = scaleRects(g.Predictions[kind], scaleCenter, k)
	}
	z.Announcements = lo.Map(g.Announcements, func(a AnnouncementDot, _ int) AnnouncementDot {
		a.Rect = scaleCenter(a.Rect, k)
		return a
	})
	z.Boluses = lo.Map(g.Boluses, func(b BolusDot, _ int) BolusDot {
		b.Rect = scaleCenter(b.Rect, k)
		return b
	})
	z.ManualBoluses = scaleDots(g.ManualBoluses, k)
	z.Carbs = scaleDots(g.Carbs, k)
	z.FPU = scaleDots(g.FPU, k)

	z.TempBasal = scalePath(g.TempBasal, k)
	z.RegularBasal = scalePath(g.RegularBasal, k)
	z.BasalSegments = lo.Map(g.BasalSegments, func(s BasalSegment, _ int) BasalSegment {
		s.X0 *= k
		s.X1 *= k
		return s
	})
	z.Suspensions = scaleRects(g.Suspensions, scaleRect, k)
	z.TempTargets = scaleRects(g.TempTargets, scaleRect, k)
	z.Overrides = scaleRects(g.Overrides, scaleRect, k)

	v.AdditionalWidth = AdditionalWidth(g.Horizon, g.HasHorizon, g.Layout, float64(screenHours))
	v.Width = g.Layout.FullWidth()*k + v.AdditionalWidth
	v.Axes = buildAxes(g, screenHours, k, cfg)
	return v
}
