package chart

import (
	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

const (
	carbsSize    = 10.0
	carbsScale   = 0.3
	carbsOffset  = 20.0
	carbsMaxSize = 80.0
	fpuSize      = 5.0
	fpuScale     = 2.0
)

// carbDots places entries on the glucose curve at their actual intake time
func carbDots(f *frame, entries []models.CarbEntry, size func(float64) float64, offset float64) []Dot {
	return lo.Map(entries, func(c models.CarbEntry, _ int) Dot {
		center := f.interpolatedPoint(c.Time())
		s := size(c.Carbs)
		return Dot{
			Rect:  Rect{X: center.X - s/2, Y: center.Y - s/2 + offset, W: s, H: s},
			Value: c.Carbs,
		}
	})
}

func buildCarbs(f *frame) func(*Geometry) {
	carbs := lo.Reject(f.in.Carbs, func(c models.CarbEntry, _ int) bool { return c.IsFPU })
	dots := carbDots(f, carbs, func(v float64) float64 {
		return min(carbsSize+v*carbsScale, carbsMaxSize)
	}, carbsOffset)
	return func(g *Geometry) { g.Carbs = dots }
}

func buildFPU(f *frame) func(*Geometry) {
	fpus := lo.Filter(f.in.Carbs, func(c models.CarbEntry, _ int) bool { return c.IsFPU })
	dots := carbDots(f, fpus, func(v float64) float64 {
		return min(fpuSize+v*fpuScale, carbsMaxSize)
	}, carbsOffset/2)
	return func(g *Geometry) { g.FPU = dots }
}
