// Package models contains data structures used throughout the application
package models

import "time"

// MmolFactor converts mg/dL to mmol/L
const MmolFactor = 0.0555

// GlucoseSample represents a single glucose reading as delivered by the CGM or meter
type GlucoseSample struct {
	ID         string    `json:"_id,omitempty" yaml:"id,omitempty"`
	Date       time.Time `json:"dateString" yaml:"date"`
	Glucose    *float64  `json:"glucose,omitempty" yaml:"glucose,omitempty"`       // Filtered value in mg/dL
	Unfiltered *float64  `json:"unfiltered,omitempty" yaml:"unfiltered,omitempty"` // Raw sensor value in mg/dL
	Direction  string    `json:"direction,omitempty" yaml:"direction,omitempty"`
	Trend      int       `json:"trend,omitempty" yaml:"trend,omitempty"`
	IsManual   bool      `json:"isManual,omitempty" yaml:"isManual,omitempty"` // Finger stick / meter entry
}

// Value returns the filtered glucose value, zero when missing
func (g *GlucoseSample) Value() float64 {
	if g.Glucose == nil {
		return 0
	}
	return *g.Glucose
}

// HasValue reports whether the sample carries a glucose value
func (g *GlucoseSample) HasValue() bool {
	return g.Glucose != nil
}

// RawValue returns the unfiltered value, falling back to the filtered one
func (g *GlucoseSample) RawValue() float64 {
	if g.Unfiltered != nil {
		return *g.Unfiltered
	}
	return g.Value()
}

// ValueMmolL returns the glucose value in mmol/L
func (g *GlucoseSample) ValueMmolL() float64 {
	return ToMmol(g.Value())
}

// TrendArrow returns the Unicode arrow character for the trend
func (g *GlucoseSample) TrendArrow() string {
	arrows := map[string]string{
		"DoubleUp":          "⇈",
		"SingleUp":          "↑",
		"FortyFiveUp":       "↗",
		"Flat":              "→",
		"FortyFiveDown":     "↘",
		"SingleDown":        "↓",
		"DoubleDown":        "⇊",
		"NOT COMPUTABLE":    "?",
		"RATE OUT OF RANGE": "⚠",
	}

	if g.Direction != "" {
		if arrow, ok := arrows[g.Direction]; ok {
			return arrow
		}
	}

	// Fallback to numeric trend
	numericArrows := map[int]string{
		1: "⇈",
		2: "↑",
		3: "↗",
		4: "→",
		5: "↘",
		6: "↓",
		7: "⇊",
	}

	if arrow, ok := numericArrows[g.Trend]; ok {
		return arrow
	}

	return "-"
}

// Float returns a pointer to v, handy for optional numeric fields
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl * MmolFactor
}

// Glucose status values used for coloring
const (
	StatusUrgentLow  = "urgent_low"
	StatusLow        = "low"
	StatusNormal     = "normal"
	StatusHigh       = "high"
	StatusUrgentHigh = "urgent_high"
)
