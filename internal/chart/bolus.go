package chart

import (
	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

const (
	bolusSize         = 8.0
	bolusScale        = 2.5
	bolusOffset       = -1.5
	manualBolusOffset = -55.0
)

func bolusDiameter(amount float64) float64 {
	return bolusSize + amount*2*bolusScale
}

// buildBoluses places every bolus on the automated track. SMBs are lifted
// above the curve; external boluses keep their slot with zero size.
func buildBoluses(f *frame) func(*Geometry) {
	dots := lo.Map(f.in.Boluses, func(b models.PumpHistoryEvent, _ int) BolusDot {
		center := f.interpolatedPoint(b.Timestamp)
		size := bolusDiameter(b.AmountOrZero())
		if b.IsExternal {
			size = 0
		}
		rect := Rect{X: center.X - size/2, Y: center.Y - size/2, W: size, H: size}
		if b.IsSMB {
			rect.Y += bolusOffset - size*bolusScale
		}
		return BolusDot{Rect: rect, Value: b.AmountOrZero(), SMB: b.IsSMB}
	})
	return func(g *Geometry) { g.Boluses = dots }
}

// buildManualBoluses draws external boluses as diamonds above the chart body
func buildManualBoluses(f *frame) func(*Geometry) {
	external := lo.Filter(f.in.Boluses, func(b models.PumpHistoryEvent, _ int) bool { return b.IsExternal })
	dots := lo.Map(external, func(b models.PumpHistoryEvent, _ int) Dot {
		center := f.interpolatedPoint(b.Timestamp)
		size := bolusDiameter(b.AmountOrZero())
		return Dot{
			Rect: Rect{
				X: center.X - size/2,
				Y: center.Y - size/2 + manualBolusOffset,
				W: size / 2,
				H: size * 1.3 / 2,
			},
			Value: b.AmountOrZero(),
		}
	})
	return func(g *Geometry) { g.ManualBoluses = dots }
}
