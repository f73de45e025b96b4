package chart

import (
	"math"
	"time"
)

// Chart constants in view pixels
const (
	BasalHeight        = 70.0
	TopYPadding        = 20.0
	BottomYPadding     = 40.0
	MinAdditionalWidth = 150.0
	MaxAdditionalWidth = 275.0

	MinGlucose = 40.0
	MaxGlucose = 240.0

	// Lookback is the distance from the coordinate origin to now
	Lookback = 24 * time.Hour
)

// Layout is the size of the visible view and the number of hours the
// scrollable chart covers. Geometry is built as if one hour filled Width.
type Layout struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Hours  int     `json:"hours"`
}

// DefaultLayout returns a phone sized view covering 24 hours
func DefaultLayout() Layout {
	return Layout{Width: 390, Height: 320, Hours: 24}
}

// FullWidth is the width of the whole lookback at one hour per view width
func (l Layout) FullWidth() float64 {
	return l.Width * float64(l.Hours)
}

// OneSecondStep is the number of pixels per second at one hour per view width
func (l Layout) OneSecondStep() float64 {
	return l.Width / time.Hour.Seconds()
}

// Mapper converts timestamps and glucose values into view coordinates.
// The origin is fixed at now minus Lookback; zoom never moves it.
type Mapper struct {
	origin time.Time
	layout Layout
	stepX  float64

	minValue float64
	maxValue float64
}

// NewMapper returns a mapper anchored at now with the default value range
func NewMapper(now time.Time, layout Layout) Mapper {
	hours := layout.Hours
	if hours <= 0 {
		hours = 24
		layout.Hours = hours
	}
	return Mapper{
		origin:   now.Add(-Lookback),
		layout:   layout,
		stepX:    layout.FullWidth() / (float64(hours) * time.Hour.Seconds()),
		minValue: MinGlucose,
		maxValue: MaxGlucose,
	}
}

// WithRange returns a copy of m mapping values in [lo, hi]
func (m Mapper) WithRange(lo, hi float64) Mapper {
	m.minValue = lo
	m.maxValue = hi
	return m
}

// Origin returns the timestamp mapped to x = 0
func (m Mapper) Origin() time.Time { return m.origin }

// Now returns the anchor the mapper was built for
func (m Mapper) Now() time.Time { return m.origin.Add(Lookback) }

// Layout returns the layout the mapper was built for
func (m Mapper) Layout() Layout { return m.layout }

// TimeToX maps t onto the horizontal axis
func (m Mapper) TimeToX(t time.Time) float64 {
	return t.Sub(m.origin).Seconds() * m.stepX
}

// XToTime is the inverse of TimeToX
func (m Mapper) XToTime(x float64) time.Time {
	secs := x / m.stepX
	return m.origin.Add(time.Duration(math.Round(secs * float64(time.Second))))
}

// ValueToY maps a glucose value onto the vertical axis. Higher values are
// drawn higher, so they get a smaller y.
func (m Mapper) ValueToY(v float64) float64 {
	span := m.maxValue - m.minValue
	if span <= 0 {
		span = MaxGlucose - MinGlucose
	}
	step := (m.layout.Height - TopYPadding - BasalHeight - BottomYPadding) / span
	return m.layout.Height - v*step + m.minValue*step - BottomYPadding
}

// Point maps a (time, value) pair
func (m Mapper) Point(t time.Time, v float64) Point {
	return Point{X: m.TimeToX(t), Y: m.ValueToY(v)}
}
