package nightscout

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

func byDate(a, b models.GlucoseSample) int { return a.Date.Compare(b.Date) }

// ConvertEntries splits entries into sensor and meter readings, oldest first
func ConvertEntries(entries []Entry) (glucose, manual []models.GlucoseSample) {
	toSample := func(e Entry, value float64, isManual bool) models.GlucoseSample {
		s := models.GlucoseSample{
			ID:        e.ID,
			Date:      e.Time(),
			Glucose:   models.Float(value),
			Direction: e.Direction,
			Trend:     e.Trend,
			IsManual:  isManual,
		}
		if e.Unfiltered > 0 {
			s.Unfiltered = models.Float(e.Unfiltered)
		}
		return s
	}

	glucose = lo.FilterMap(entries, func(e Entry, _ int) (models.GlucoseSample, bool) {
		return toSample(e, e.SGV, false), (e.Type == EntrySensor || e.Type == "") && e.SGV > 0
	})
	manual = lo.FilterMap(entries, func(e Entry, _ int) (models.GlucoseSample, bool) {
		return toSample(e, e.MBG, true), e.Type == EntryMeter && e.MBG > 0
	})

	slices.SortStableFunc(glucose, byDate)
	slices.SortStableFunc(manual, byDate)
	return glucose, manual
}

func (t *Treatment) isBolus() bool {
	switch t.EventType {
	case EventBolus, EventCorrectionBolus, EventMealBolus, EventSMB, "Snack Bolus", "Combo Bolus", "Bolus Wizard":
		return t.Insulin != nil && *t.Insulin > 0
	}
	return false
}

func (t *Treatment) rate() float64 {
	switch {
	case t.Rate != nil:
		return *t.Rate
	case t.Absolute != nil:
		return *t.Absolute
	default:
		return 0
	}
}

func durationOf(t *Treatment) float64 {
	if t.Duration == nil {
		return 0
	}
	return *t.Duration
}

// Treatments is the chart view of a treatment list, every stream oldest first
type Treatments struct {
	TempBasals    []models.PumpHistoryEvent
	Boluses       []models.PumpHistoryEvent
	Suspensions   []models.PumpHistoryEvent
	Announcements []models.Announcement
	Carbs         []models.CarbEntry
	TempTargets   []models.TempTarget
	Overrides     []models.OverrideEvent
}

// ConvertTreatments classifies treatments into the chart's streams. A temp
// basal becomes a start event carrying the rate followed by a duration event.
func ConvertTreatments(treatments []Treatment) Treatments {
	sorted := slices.Clone(treatments)
	slices.SortStableFunc(sorted, func(a, b Treatment) int { return a.Time().Compare(b.Time()) })

	var out Treatments

	out.Boluses = lo.FilterMap(sorted, func(t Treatment, _ int) (models.PumpHistoryEvent, bool) {
		if !t.isBolus() {
			return models.PumpHistoryEvent{}, false
		}
		return models.PumpHistoryEvent{
			ID:         t.ID,
			Type:       models.EventBolus,
			Timestamp:  t.Time(),
			Amount:     models.Float(*t.Insulin),
			IsSMB:      t.IsSMB || t.Type == EventSMB || t.EventType == EventSMB,
			IsExternal: t.IsExternal,
		}, true
	})

	out.TempBasals = lo.FlatMap(lo.Filter(sorted, func(t Treatment, _ int) bool {
		return t.EventType == EventTempBasal
	}), func(t Treatment, _ int) []models.PumpHistoryEvent {
		at := t.Time()
		return []models.PumpHistoryEvent{
			{ID: t.ID, Type: models.EventTempBasal, Timestamp: at, Rate: models.Float(t.rate())},
			{ID: t.ID, Type: models.EventTempBasalDuration, Timestamp: at, DurationMin: models.Int(int(durationOf(&t)))},
		}
	})

	out.Suspensions = lo.FilterMap(sorted, func(t Treatment, _ int) (models.PumpHistoryEvent, bool) {
		e := models.PumpHistoryEvent{ID: t.ID, Timestamp: t.Time()}
		switch t.EventType {
		case EventPumpSuspend:
			e.Type = models.EventPumpSuspend
		case EventPumpResume:
			e.Type = models.EventPumpResume
		default:
			return e, false
		}
		return e, true
	})

	out.Announcements = lo.FilterMap(sorted, func(t Treatment, _ int) (models.Announcement, bool) {
		return models.Announcement{
			CreatedAt: t.Time(),
			Notes:     t.Notes,
			EnteredBy: t.EnteredBy,
		}, t.EventType == EventAnnouncement
	})

	out.Carbs = lo.FilterMap(sorted, func(t Treatment, _ int) (models.CarbEntry, bool) {
		if t.Carbs == nil || *t.Carbs <= 0 {
			return models.CarbEntry{}, false
		}
		at := t.Time()
		return models.CarbEntry{
			ID:         t.ID,
			CreatedAt:  at,
			ActualDate: &at,
			Carbs:      *t.Carbs,
			IsFPU:      t.IsFPU,
		}, true
	})

	out.TempTargets = lo.FilterMap(sorted, func(t Treatment, _ int) (models.TempTarget, bool) {
		return models.TempTarget{
			ID:           t.ID,
			Name:         t.Reason,
			CreatedAt:    t.Time(),
			TargetTop:    t.TargetTop,
			TargetBottom: t.TargetBottom,
			DurationMin:  durationOf(&t),
		}, t.EventType == EventTempTarget
	})

	out.Overrides = lo.FilterMap(sorted, func(t Treatment, _ int) (models.OverrideEvent, bool) {
		if t.EventType != EventTemporaryOverride && t.EventType != EventExercise {
			return models.OverrideEvent{}, false
		}
		enabled := t.Enabled == nil || *t.Enabled
		return models.OverrideEvent{
			Date:        t.Time(),
			DurationMin: durationOf(&t),
			Target:      overrideTarget(&t),
			Enabled:     enabled,
		}, true
	})

	return out
}

// overrideTarget is the middle of the correction range, zero when the
// override keeps the profile target
func overrideTarget(t *Treatment) float64 {
	switch {
	case len(t.CorrectionRange) == 2:
		return (t.CorrectionRange[0] + t.CorrectionRange[1]) / 2
	case t.TargetTop != nil && t.TargetBottom != nil:
		return (*t.TargetTop + *t.TargetBottom) / 2
	default:
		return 0
	}
}

// ConvertSuggestion returns the newest loop suggestion, nil when no device
// status carries one
func ConvertSuggestion(statuses []DeviceStatus) *models.Suggestion {
	candidates := lo.FilterMap(statuses, func(d DeviceStatus, _ int) (*Suggested, bool) {
		if d.OpenAPS == nil || d.OpenAPS.Suggested == nil {
			return nil, false
		}
		return d.OpenAPS.Suggested, true
	})
	if len(candidates) == 0 {
		return nil
	}

	latest := lo.MaxBy(candidates, func(a, b *Suggested) bool { return a.Timestamp.After(b.Timestamp) })
	s := &models.Suggestion{
		DeliverAt: latest.DeliverAt,
		Timestamp: latest.Timestamp,
		IOB:       latest.IOB,
		COB:       latest.COB,
		Reason:    latest.Reason,
	}
	if p := latest.PredBGs; p != nil {
		s.Predictions[models.PredictionIOB] = p.IOB
		s.Predictions[models.PredictionCOB] = p.COB
		s.Predictions[models.PredictionZT] = p.ZT
		s.Predictions[models.PredictionUAM] = p.UAM
	}
	return s
}

// parseClock turns "HH:MM" into minutes since midnight
func parseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// ConvertProfile extracts the basal schedule of the default profile of the
// newest profile set active at now
func ConvertProfile(sets []ProfileSet, now time.Time) []models.BasalProfileEntry {
	active := lo.Filter(sets, func(p ProfileSet, _ int) bool {
		start, err := time.Parse(time.RFC3339, p.StartDate)
		return err != nil || !start.After(now)
	})
	if len(active) == 0 {
		return nil
	}
	set := lo.MaxBy(active, func(a, b ProfileSet) bool { return a.StartDate > b.StartDate })

	profile, ok := set.Store[set.DefaultProfile]
	if !ok {
		return nil
	}

	entries := lo.FilterMap(profile.Basal, func(b ProfileBasal, _ int) (models.BasalProfileEntry, bool) {
		if b.TimeAsSeconds != nil {
			return models.BasalProfileEntry{Minutes: *b.TimeAsSeconds / 60, Rate: b.Value}, true
		}
		minutes, ok := parseClock(b.Time)
		return models.BasalProfileEntry{Minutes: minutes, Rate: b.Value}, ok
	})
	slices.SortStableFunc(entries, func(a, b models.BasalProfileEntry) int { return cmp.Compare(a.Minutes, b.Minutes) })
	return entries
}
