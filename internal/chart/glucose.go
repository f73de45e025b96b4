package chart

import (
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

func dotRect(p Point, size float64) Rect {
	return Rect{X: p.X - 2, Y: p.Y - 2, W: size, H: size}
}

func glucoseDots(f *frame, samples []models.GlucoseSample, value func(*models.GlucoseSample) float64, place func(Point) Rect) []Rect {
	return lo.Map(samples, func(g models.GlucoseSample, _ int) Rect {
		return place(f.m.Point(g.Date, value(&g)))
	})
}

func buildGlucose(f *frame) func(*Geometry) {
	dots := glucoseDots(f, f.in.Glucose, (*models.GlucoseSample).Value, func(p Point) Rect { return dotRect(p, 4) })
	return func(g *Geometry) { g.Glucose = dots }
}

func buildUnsmoothed(f *frame) func(*Geometry) {
	dots := glucoseDots(f, f.in.Glucose, (*models.GlucoseSample).RawValue, func(p Point) Rect { return dotRect(p, 4) })
	return func(g *Geometry) { g.Unsmoothed = dots }
}

func buildManualGlucose(f *frame) func(*Geometry) {
	dots := glucoseDots(f, f.in.ManualGlucose, (*models.GlucoseSample).Value, func(p Point) Rect { return dotRect(p, 14) })
	return func(g *Geometry) { g.ManualGlucose = dots }
}

func buildManualGlucoseCenter(f *frame) func(*Geometry) {
	dots := glucoseDots(f, f.in.ManualGlucose, (*models.GlucoseSample).Value, func(p Point) Rect {
		return Rect{X: p.X, Y: p.Y, W: 10, H: 10}
	})
	return func(g *Geometry) { g.ManualGlucoseCenter = dots }
}

func buildPrediction(kind models.PredictionKind) func(*frame) func(*Geometry) {
	return func(f *frame) func(*Geometry) {
		var dots []Rect
		if s := f.in.Suggestion; s != nil && s.DeliverAt != nil {
			anchor := *s.DeliverAt
			dots = make([]Rect, 0, len(s.Predictions[kind]))
			for i, v := range s.Predictions[kind] {
				t := anchor.Add(time.Duration(i) * models.PredictionStep)
				dots = append(dots, dotRect(f.m.Point(t, v), 4))
			}
		}
		return func(g *Geometry) { g.Predictions[kind] = dots }
	}
}
