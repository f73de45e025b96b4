package chart

import (
	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

func positive(v float64, _ int) bool { return v > 0 }

// valueBounds returns the min and max of the plotted values: glucose,
// every prediction curve and the positive temp target bounds. Missing
// glucose falls back to the default band.
func valueBounds(in *models.Snapshot) (minValue, maxValue float64) {
	glucose := lo.FilterMap(in.Glucose, func(g models.GlucoseSample, _ int) (float64, bool) {
		return g.Value(), g.HasValue()
	})
	minValue, maxValue = MinGlucose, MaxGlucose
	if len(glucose) > 0 {
		minValue, maxValue = lo.Min(glucose), lo.Max(glucose)
	}

	if in.Suggestion != nil {
		preds := lo.Flatten(in.Suggestion.Predictions[:])
		if len(preds) > 0 {
			minValue = min(minValue, lo.Min(preds))
			maxValue = max(maxValue, lo.Max(preds))
		}
	}

	tops := lo.Filter(lo.Map(in.TempTargets, func(t models.TempTarget, _ int) float64 { return t.Top() }), positive)
	if len(tops) > 0 {
		maxValue = max(maxValue, lo.Max(tops))
	}
	bottoms := lo.Filter(lo.Map(in.TempTargets, func(t models.TempTarget, _ int) float64 { return t.Bottom() }), positive)
	if len(bottoms) > 0 {
		minValue = min(minValue, lo.Min(bottoms))
	}
	return minValue, maxValue
}

// ComputeRange derives the visible value range and its pixel bounds. The
// result always contains [MinGlucose, MaxGlucose].
func ComputeRange(in *models.Snapshot, m Mapper) YRange {
	minValue, maxValue := valueBounds(in)
	if minValue == maxValue {
		minValue, maxValue = MinGlucose, MaxGlucose
	}
	minValue = min(minValue, MinGlucose)
	maxValue = max(maxValue, MaxGlucose)

	rm := m.WithRange(minValue, maxValue)
	return YRange{
		MinValue: minValue,
		MaxValue: maxValue,
		MinY:     rm.ValueToY(maxValue),
		MaxY:     rm.ValueToY(minValue),
	}
}

// Mapper returns m restricted to r
func (r YRange) Mapper(m Mapper) Mapper {
	return m.WithRange(r.MinValue, r.MaxValue)
}

// ValueAt inverts the pixel mapping for a y inside the range
func (r YRange) ValueAt(y float64) float64 {
	if r.MaxY == r.MinY {
		return r.MinValue
	}
	return r.MaxValue - (y-r.MinY)*(r.MaxValue-r.MinValue)/(r.MaxY-r.MinY)
}
