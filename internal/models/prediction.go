// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// PredictionKind identifies one of the forecast curves produced by the loop
type PredictionKind int

// Prediction curves, in drawing order
const (
	PredictionIOB PredictionKind = iota // Insulin only
	PredictionCOB                       // Insulin and announced carbs
	PredictionZT                        // Zero temp
	PredictionUAM                       // Unannounced meal
	NumPredictionKinds
)

// PredictionStep is the fixed spacing between forecast values
const PredictionStep = 5 * time.Minute

// String returns the short name of the curve
func (k PredictionKind) String() string {
	switch k {
	case PredictionIOB:
		return "iob"
	case PredictionCOB:
		return "cob"
	case PredictionZT:
		return "zt"
	case PredictionUAM:
		return "uam"
	default:
		return "unknown"
	}
}

// Predictions holds the four forecast curves indexed by kind
type Predictions [NumPredictionKinds][]float64

// MaxLen returns the length of the longest curve
func (p *Predictions) MaxLen() int {
	n := 0
	for _, values := range p {
		if len(values) > n {
			n = len(values)
		}
	}
	return n
}

// predictionCurves is the keyed form of Predictions used by Nightscout and
// snapshot files
type predictionCurves struct {
	IOB []float64 `json:"IOB,omitempty" yaml:"iob,omitempty"`
	COB []float64 `json:"COB,omitempty" yaml:"cob,omitempty"`
	ZT  []float64 `json:"ZT,omitempty" yaml:"zt,omitempty"`
	UAM []float64 `json:"UAM,omitempty" yaml:"uam,omitempty"`
}

func (p Predictions) curves() predictionCurves {
	return predictionCurves{
		IOB: p[PredictionIOB],
		COB: p[PredictionCOB],
		ZT:  p[PredictionZT],
		UAM: p[PredictionUAM],
	}
}

func (p *Predictions) setCurves(c predictionCurves) {
	*p = Predictions{
		PredictionIOB: c.IOB,
		PredictionCOB: c.COB,
		PredictionZT:  c.ZT,
		PredictionUAM: c.UAM,
	}
}

// MarshalJSON writes the curves as an {IOB, COB, ZT, UAM} object
func (p Predictions) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.curves())
}

// UnmarshalJSON reads the {IOB, COB, ZT, UAM} object; missing curves are empty
func (p *Predictions) UnmarshalJSON(data []byte) error {
	var c predictionCurves
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	p.setCurves(c)
	return nil
}

// MarshalYAML writes the curves keyed by lower-case kind
func (p Predictions) MarshalYAML() (any, error) {
	return p.curves(), nil
}

// UnmarshalYAML reads curves keyed by lower-case kind
func (p *Predictions) UnmarshalYAML(node *yaml.Node) error {
	var c predictionCurves
	if err := node.Decode(&c); err != nil {
		return err
	}
	p.setCurves(c)
	return nil
}

// Suggestion is the loop's latest determination. Only the parts the chart
// needs are kept.
type Suggestion struct {
	DeliverAt   *time.Time  `json:"deliverAt,omitempty" yaml:"deliverAt,omitempty"`
	Timestamp   time.Time   `json:"timestamp" yaml:"timestamp"`
	Predictions Predictions `json:"predBGs" yaml:"predictions"`
	IOB         float64     `json:"IOB,omitempty" yaml:"iob,omitempty"`
	COB         float64     `json:"COB,omitempty" yaml:"cob,omitempty"`
	Reason      string      `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Snapshot bundles every input stream the chart consumes at one point in time
type Snapshot struct {
	Now                   time.Time           `json:"now" yaml:"now"`
	Glucose               []GlucoseSample     `json:"glucose" yaml:"glucose"`
	ManualGlucose         []GlucoseSample     `json:"manualGlucose" yaml:"manualGlucose"`
	Suggestion            *Suggestion         `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	TempBasals            []PumpHistoryEvent  `json:"tempBasals" yaml:"tempBasals"`
	Boluses               []PumpHistoryEvent  `json:"boluses" yaml:"boluses"`
	Suspensions           []PumpHistoryEvent  `json:"suspensions" yaml:"suspensions"`
	Announcements         []Announcement      `json:"announcements" yaml:"announcements"`
	Carbs                 []CarbEntry         `json:"carbs" yaml:"carbs"`
	TempTargets           []TempTarget        `json:"tempTargets" yaml:"tempTargets"`
	Overrides             []OverrideEvent     `json:"overrides" yaml:"overrides"`
	BasalProfile          []BasalProfileEntry `json:"basalProfile" yaml:"basalProfile"`
	AutotunedBasalProfile []BasalProfileEntry `json:"autotunedBasalProfile" yaml:"autotunedBasalProfile"`
	MaxBasal              float64             `json:"maxBasal" yaml:"maxBasal"`
}
