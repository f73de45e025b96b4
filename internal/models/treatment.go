// Package models contains data structures used throughout the application
package models

import "time"

// EventType tags a pump history event
type EventType string

// Pump history event kinds
const (
	EventBolus             EventType = "Bolus"
	EventTempBasal         EventType = "TempBasal"
	EventTempBasalDuration EventType = "TempBasalDuration"
	EventPumpSuspend       EventType = "PumpSuspend"
	EventPumpResume        EventType = "PumpResume"
)

// PumpHistoryEvent is a single record from the pump history.
// Temp basals arrive as a TempBasal event carrying the rate immediately
// followed by a TempBasalDuration event carrying the duration.
type PumpHistoryEvent struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Type        EventType `json:"_type" yaml:"type"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Amount      *float64  `json:"amount,omitempty" yaml:"amount,omitempty"`              // Bolus units
	Rate        *float64  `json:"rate,omitempty" yaml:"rate,omitempty"`                  // Temp basal U/h
	DurationMin *int      `json:"duration (min),omitempty" yaml:"durationMin,omitempty"` // Temp basal duration
	IsExternal  bool      `json:"isExternal,omitempty" yaml:"isExternal,omitempty"`      // Not delivered through the loop
	IsSMB       bool      `json:"isSMB,omitempty" yaml:"isSMB,omitempty"`
}

// AmountOrZero returns the bolus amount, zero when missing
func (e *PumpHistoryEvent) AmountOrZero() float64 {
	if e.Amount == nil {
		return 0
	}
	return *e.Amount
}

// RateOrZero returns the temp basal rate, zero when missing
func (e *PumpHistoryEvent) RateOrZero() float64 {
	if e.Rate == nil {
		return 0
	}
	return *e.Rate
}

// Duration returns the temp basal duration, zero when missing
func (e *PumpHistoryEvent) Duration() time.Duration {
	if e.DurationMin == nil {
		return 0
	}
	return time.Duration(*e.DurationMin) * time.Minute
}

// CarbEntry represents a carbohydrate or fat/protein unit entry
type CarbEntry struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"createdAt"`
	ActualDate *time.Time `json:"actualDate,omitempty" yaml:"actualDate,omitempty"`
	Carbs      float64    `json:"carbs" yaml:"carbs"`
	IsFPU      bool       `json:"isFPU,omitempty" yaml:"isFPU,omitempty"` // Fat/protein equivalent
}

// Time returns the actual intake time, falling back to creation time
func (c *CarbEntry) Time() time.Time {
	if c.ActualDate != nil {
		return *c.ActualDate
	}
	return c.CreatedAt
}

// Announcement is a free text remote command note
type Announcement struct {
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Notes     string    `json:"notes" yaml:"notes"`
	EnteredBy string    `json:"enteredBy,omitempty" yaml:"enteredBy,omitempty"`
}

// TempTarget is a temporary glucose target range
type TempTarget struct {
	ID           string    `json:"_id,omitempty" yaml:"id,omitempty"`
	Name         string    `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"createdAt"`
	TargetTop    *float64  `json:"targetTop,omitempty" yaml:"targetTop,omitempty"`
	TargetBottom *float64  `json:"targetBottom,omitempty" yaml:"targetBottom,omitempty"`
	DurationMin  float64   `json:"duration" yaml:"duration"`
}

// Top returns the upper bound, zero when missing
func (t *TempTarget) Top() float64 {
	if t.TargetTop == nil {
		return 0
	}
	return *t.TargetTop
}

// Bottom returns the lower bound, zero when missing
func (t *TempTarget) Bottom() float64 {
	if t.TargetBottom == nil {
		return 0
	}
	return *t.TargetBottom
}

// End returns when the target expires
func (t *TempTarget) End() time.Time {
	return t.CreatedAt.Add(time.Duration(t.DurationMin * float64(time.Minute)))
}

// OverrideEvent is a profile override. The last entry of the history is
// the currently active one when Enabled is set.
type OverrideEvent struct {
	Date        time.Time `json:"date" yaml:"date"`
	DurationMin float64   `json:"duration" yaml:"duration"`
	Target      float64   `json:"target" yaml:"target"` // mg/dL, zero when the override keeps the profile target
	Enabled     bool      `json:"enabled" yaml:"enabled"`
}

// End returns the override end for a positive duration
func (o *OverrideEvent) End() time.Time {
	return o.Date.Add(time.Duration(o.DurationMin * float64(time.Minute)))
}

// BasalProfileEntry is one step of a daily basal schedule
type BasalProfileEntry struct {
	Minutes int     `json:"minutes" yaml:"minutes"` // Minutes since midnight
	Rate    float64 `json:"rate" yaml:"rate"`       // U/h
}
