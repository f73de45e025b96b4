package nightscout

import "time"

// Entry kinds
const (
	EntrySensor = "sgv"
	EntryMeter  = "mbg"
)

// Treatment event types the chart understands
const (
	EventBolus             = "Bolus"
	EventCorrectionBolus   = "Correction Bolus"
	EventMealBolus         = "Meal Bolus"
	EventSMB               = "SMB"
	EventCarbs             = "Carb Correction"
	EventTempBasal         = "Temp Basal"
	EventPumpSuspend       = "Pump Suspend"
	EventPumpResume        = "Pump Resume"
	EventAnnouncement      = "Announcement"
	EventTempTarget        = "Temporary Target"
	EventTemporaryOverride = "Temporary Override"
	EventExercise          = "Exercise"
)

// Entry is a glucose reading from /api/v1/entries
type Entry struct {
	ID         string  `json:"_id"`
	Type       string  `json:"type"`
	SGV        float64 `json:"sgv,omitempty"` // Sensor glucose value in mg/dL
	MBG        float64 `json:"mbg,omitempty"` // Meter glucose value in mg/dL
	Unfiltered float64 `json:"unfiltered,omitempty"`
	Date       int64   `json:"date"` // Unix timestamp in milliseconds
	DateStr    string  `json:"dateString"`
	Trend      int     `json:"trend"`
	Direction  string  `json:"direction"`
	Device     string  `json:"device"`
}

// Time returns the time of the glucose entry
func (e *Entry) Time() time.Time {
	if e.Date > 0 {
		return time.UnixMilli(e.Date).UTC()
	}
	parsed, err := time.Parse(time.RFC3339, e.DateStr)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// Treatment is a careportal or loop upload from /api/v1/treatments
type Treatment struct {
	ID              string    `json:"_id"`
	EventType       string    `json:"eventType"`
	CreatedAt       string    `json:"created_at"`
	Timestamp       string    `json:"timestamp,omitempty"`
	Date            int64     `json:"date,omitempty"` // Unix timestamp in milliseconds
	EnteredBy       string    `json:"enteredBy,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Insulin         *float64  `json:"insulin,omitempty"`
	Type            string    `json:"type,omitempty"` // "SMB" for automatic microboluses
	IsSMB           bool      `json:"isSMB,omitempty"`
	IsExternal      bool      `json:"isExternal,omitempty"`
	Carbs           *float64  `json:"carbs,omitempty"`
	Fat             *float64  `json:"fat,omitempty"`
	Protein         *float64  `json:"protein,omitempty"`
	IsFPU           bool      `json:"isFPU,omitempty"`
	Duration        *float64  `json:"duration,omitempty"` // Minutes
	Rate            *float64  `json:"rate,omitempty"`
	Absolute        *float64  `json:"absolute,omitempty"`
	TargetTop       *float64  `json:"targetTop,omitempty"`
	TargetBottom    *float64  `json:"targetBottom,omitempty"`
	CorrectionRange []float64 `json:"correctionRange,omitempty"`
	Enabled         *bool     `json:"enabled,omitempty"`
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date).UTC()
	}
	for _, s := range []string{t.CreatedAt, t.Timestamp} {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// PredBGs holds the loop's forecast curves
type PredBGs struct {
	IOB []float64 `json:"IOB,omitempty"`
	COB []float64 `json:"COB,omitempty"`
	ZT  []float64 `json:"ZT,omitempty"`
	UAM []float64 `json:"UAM,omitempty"`
}

// Suggested is the loop determination uploaded under openaps.suggested
type Suggested struct {
	DeliverAt *time.Time `json:"deliverAt,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	BG        float64    `json:"bg,omitempty"`
	IOB       float64    `json:"IOB,omitempty"`
	COB       float64    `json:"COB,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	PredBGs   *PredBGs   `json:"predBGs,omitempty"`
}

// OpenAPSStatus is the loop section of a device status
type OpenAPSStatus struct {
	Suggested *Suggested `json:"suggested,omitempty"`
	Enacted   *Suggested `json:"enacted,omitempty"`
}

// DeviceStatus is a record from /api/v1/devicestatus
type DeviceStatus struct {
	ID        string         `json:"_id"`
	CreatedAt string         `json:"created_at"`
	Device    string         `json:"device"`
	OpenAPS   *OpenAPSStatus `json:"openaps,omitempty"`
}

// ProfileBasal is one step of a stored basal schedule
type ProfileBasal struct {
	Time          string  `json:"time"` // "HH:MM"
	Value         float64 `json:"value"`
	TimeAsSeconds *int    `json:"timeAsSeconds,omitempty"`
}

// Profile is one named profile of the store
type Profile struct {
	Basal    []ProfileBasal `json:"basal"`
	Units    string         `json:"units,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
}

// ProfileSet is a record from /api/v1/profile
type ProfileSet struct {
	ID             string             `json:"_id"`
	DefaultProfile string             `json:"defaultProfile"`
	StartDate      string             `json:"startDate"`
	Store          map[string]Profile `json:"store"`
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	ServerTime string `json:"serverTime"`
	APIEnabled bool   `json:"apiEnabled"`
	Settings   struct {
		Units string `json:"units"`
	} `json:"settings,omitempty"`
}
