package chart

import (
	"time"

	"github.com/mrcode/loopchart/internal/models"
)

// Point is a position in chart pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis aligned rectangle, origin at the top left
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// MidX returns the horizontal center
func (r Rect) MidX() float64 { return r.X + r.W/2 }

// MidY returns the vertical center
func (r Rect) MidY() float64 { return r.Y + r.H/2 }

// MaxX returns the right edge
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Path is a polyline. Step paths alternate horizontal and vertical runs.
type Path []Point

// Dot is a sized marker carrying the value it was built from, for labels
type Dot struct {
	Rect  Rect    `json:"rect"`
	Value float64 `json:"value"`
}

// BolusDot is a marker on the automated bolus track
type BolusDot struct {
	Rect  Rect    `json:"rect"`
	Value float64 `json:"value"`
	SMB   bool    `json:"smb"`
}

// AnnouncementDot is a remote command marker placed on the glucose curve
type AnnouncementDot struct {
	Rect  Rect             `json:"rect"`
	Note  string           `json:"note"`
	Kind  AnnouncementKind `json:"kind"`
	Label string           `json:"label"`
}

// BasalSegment is one horizontal run of the basal step path
type BasalSegment struct {
	X0   float64 `json:"x0"`
	X1   float64 `json:"x1"`
	Y    float64 `json:"y"`
	Rate float64 `json:"rate"`
	Temp bool    `json:"temp"` // false when the scheduled rate fills the gap
}

// YRange is the visible glucose value range and its pixel bounds.
// MinY belongs to MaxValue since y grows downward.
type YRange struct {
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`
	MinY     float64 `json:"minY"`
	MaxY     float64 `json:"maxY"`
}

// Geometry is the complete output of one recompute at the canonical
// one hour per view width resolution. A published Geometry is never
// mutated; each recompute publishes a new value.
type Geometry struct {
	Now    time.Time `json:"now"`
	Layout Layout    `json:"layout"`
	Range  YRange    `json:"range"`

	MaxBasalRate float64 `json:"maxBasalRate"`
	// Horizon is how far predictions reach past the last glucose reading.
	// HasHorizon is false without a suggestion, deliverAt or glucose.
	Horizon    time.Duration `json:"horizon"`
	HasHorizon bool          `json:"hasHorizon"`

	Glucose             []Rect                            `json:"glucose"`
	ManualGlucose       []Rect                            `json:"manualGlucose"`
	ManualGlucoseCenter []Rect                            `json:"manualGlucoseCenter"`
	Unsmoothed          []Rect                            `json:"unsmoothed"`
	Announcements       []AnnouncementDot                 `json:"announcements"`
	Boluses             []BolusDot                        `json:"boluses"`
	ManualBoluses       []Dot                             `json:"manualBoluses"`
	Carbs               []Dot                             `json:"carbs"`
	FPU                 []Dot                             `json:"fpu"`
	Predictions         [models.NumPredictionKinds][]Rect `json:"predictions"`
	TempBasal           Path                              `json:"tempBasal"`
	BasalSegments       []BasalSegment                    `json:"basalSegments"`
	RegularBasal        Path                              `json:"regularBasal"`
	Suspensions         []Rect                            `json:"suspensions"`
	TempTargets         []Rect                            `json:"tempTargets"`
	Overrides           []Rect                            `json:"overrides"`
}

// Count returns the number of shapes produced for series
func (g *Geometry) Count(s Series) int {
	switch s {
	case SeriesGlucose:
		return len(g.Glucose)
	case SeriesManualGlucose:
		return len(g.ManualGlucose)
	case SeriesManualGlucoseCenter:
		return len(g.ManualGlucoseCenter)
	case SeriesUnsmoothed:
		return len(g.Unsmoothed)
	case SeriesAnnouncements:
		return len(g.Announcements)
	case SeriesBoluses:
		return len(g.Boluses)
	case SeriesManualBoluses:
		return len(g.ManualBoluses)
	case SeriesCarbs:
		return len(g.Carbs)
	case SeriesFPU:
		return len(g.FPU)
	case SeriesPredictionIOB, SeriesPredictionCOB, SeriesPredictionZT, SeriesPredictionUAM:
		return len(g.Predictions[s.predictionKind()])
	case SeriesBasal:
		return len(g.BasalSegments)
	case SeriesSuspensions:
		return len(g.Suspensions)
	case SeriesTempTargets:
		return len(g.TempTargets)
	case SeriesOverrides:
		return len(g.Overrides)
	default:
		return 0
	}
}
