package nightscout

import (
	"testing"
	"time"

	"github.com/mrcode/loopchart/internal/models"
)

var convNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(minutesAgo int) string {
	return convNow.Add(-time.Duration(minutesAgo) * time.Minute).Format(time.RFC3339)
}

func TestConvertEntries(t *testing.T) {
	entries := []Entry{
		{Type: EntrySensor, SGV: 150, Date: convNow.UnixMilli(), Direction: "Flat", Unfiltered: 155},
		{Type: EntryMeter, MBG: 140, Date: convNow.Add(-3 * time.Minute).UnixMilli()},
		{Type: EntrySensor, SGV: 145, Date: convNow.Add(-5 * time.Minute).UnixMilli()},
		{Type: "cal", Date: convNow.UnixMilli()},
		{Type: EntrySensor, SGV: 0, Date: convNow.Add(-10 * time.Minute).UnixMilli()},
	}

	glucose, manual := ConvertEntries(entries)

	if len(glucose) != 2 {
		t.Fatalf("len(glucose) = %d, want 2", len(glucose))
	}
	if glucose[0].Value() != 145 || glucose[1].Value() != 150 {
		t.Errorf("glucose not sorted oldest first: %v, %v", glucose[0].Value(), glucose[1].Value())
	}
	if glucose[1].RawValue() != 155 {
		t.Errorf("RawValue() = %v, want 155", glucose[1].RawValue())
	}
	if glucose[0].Unfiltered != nil {
		t.Error("Unfiltered should stay nil when not reported")
	}
	if len(manual) != 1 || !manual[0].IsManual || manual[0].Value() != 140 {
		t.Errorf("manual = %+v, want one meter reading of 140", manual)
	}
}

func TestEntry_Time(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  time.Time
	}{
		{"millis", Entry{Date: convNow.UnixMilli()}, convNow},
		{"date string", Entry{DateStr: convNow.Format(time.RFC3339)}, convNow},
		{"neither", Entry{}, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Time(); !got.Equal(tt.want) {
				t.Errorf("Time() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvertTreatments(t *testing.T) {
	yes, no := true, false
	treatments := []Treatment{
		{EventType: EventTempBasal, CreatedAt: at(60), Absolute: models.Float(0.5), Duration: models.Float(30)},
		{EventType: EventBolus, CreatedAt: at(40), Insulin: models.Float(3), IsExternal: true},
		{EventType: EventSMB, CreatedAt: at(35), Insulin: models.Float(0.2)},
		{EventType: EventMealBolus, CreatedAt: at(45), Insulin: models.Float(2), Carbs: models.Float(40)},
		{EventType: EventCarbs, CreatedAt: at(30), Carbs: models.Float(12), IsFPU: true},
		{EventType: EventPumpSuspend, CreatedAt: at(25)},
		{EventType: EventPumpResume, CreatedAt: at(20)},
		{EventType: EventAnnouncement, CreatedAt: at(15), Notes: "meal:20", EnteredBy: "remote"},
		{EventType: EventTempTarget, CreatedAt: at(90), TargetTop: models.Float(140), TargetBottom: models.Float(130), Duration: models.Float(60), Reason: "Activity"},
		{EventType: EventTemporaryOverride, CreatedAt: at(120), Duration: models.Float(30), CorrectionRange: []float64{100, 120}, Enabled: &no},
		{EventType: EventExercise, CreatedAt: at(10), Enabled: &yes},
		{EventType: "Note", CreatedAt: at(5), Notes: "ignored"},
	}

	got := ConvertTreatments(treatments)

	if len(got.TempBasals) != 2 {
		t.Fatalf("len(TempBasals) = %d, want 2", len(got.TempBasals))
	}
	if got.TempBasals[0].Type != models.EventTempBasal || got.TempBasals[0].RateOrZero() != 0.5 {
		t.Errorf("TempBasals[0] = %+v, want start with rate 0.5", got.TempBasals[0])
	}
	if got.TempBasals[1].Type != models.EventTempBasalDuration || got.TempBasals[1].Duration() != 30*time.Minute {
		t.Errorf("TempBasals[1] = %+v, want 30 min duration", got.TempBasals[1])
	}

	if len(got.Boluses) != 3 {
		t.Fatalf("len(Boluses) = %d, want 3", len(got.Boluses))
	}
	if got.Boluses[0].AmountOrZero() != 2 {
		t.Errorf("Boluses not sorted: first = %v", got.Boluses[0].AmountOrZero())
	}
	if !got.Boluses[1].IsExternal || got.Boluses[1].IsSMB {
		t.Errorf("Boluses[1] = %+v, want external non-SMB", got.Boluses[1])
	}
	if !got.Boluses[2].IsSMB {
		t.Errorf("Boluses[2] = %+v, want SMB", got.Boluses[2])
	}

	if len(got.Carbs) != 2 || got.Carbs[0].Carbs != 40 || !got.Carbs[1].IsFPU {
		t.Errorf("Carbs = %+v", got.Carbs)
	}
	if len(got.Suspensions) != 2 || got.Suspensions[0].Type != models.EventPumpSuspend || got.Suspensions[1].Type != models.EventPumpResume {
		t.Errorf("Suspensions = %+v", got.Suspensions)
	}
	if len(got.Announcements) != 1 || got.Announcements[0].Notes != "meal:20" {
		t.Errorf("Announcements = %+v", got.Announcements)
	}
	if len(got.TempTargets) != 1 || got.TempTargets[0].Top() != 140 || got.TempTargets[0].DurationMin != 60 {
		t.Errorf("TempTargets = %+v", got.TempTargets)
	}

	if len(got.Overrides) != 2 {
		t.Fatalf("len(Overrides) = %d, want 2", len(got.Overrides))
	}
	if got.Overrides[0].Enabled || got.Overrides[0].Target != 110 {
		t.Errorf("Overrides[0] = %+v, want disabled with target 110", got.Overrides[0])
	}
	if !got.Overrides[1].Enabled || got.Overrides[1].Target != 0 || got.Overrides[1].DurationMin != 0 {
		t.Errorf("Overrides[1] = %+v, want enabled indefinite override", got.Overrides[1])
	}
}

func TestConvertSuggestion(t *testing.T) {
	older := convNow.Add(-10 * time.Minute)
	newer := convNow.Add(-5 * time.Minute)

	statuses := []DeviceStatus{
		{Device: "pump"},
		{OpenAPS: &OpenAPSStatus{Suggested: &Suggested{Timestamp: older, PredBGs: &PredBGs{IOB: []float64{1}}}}},
		{OpenAPS: &OpenAPSStatus{Suggested: &Suggested{
			Timestamp: newer,
			DeliverAt: &newer,
			COB:       12,
			PredBGs:   &PredBGs{IOB: []float64{150, 148}, ZT: []float64{150}, UAM: []float64{150, 152, 155}},
		}}},
	}

	got := ConvertSuggestion(statuses)
	if got == nil {
		t.Fatal("ConvertSuggestion() = nil")
	}
	if !got.Timestamp.Equal(newer) || got.DeliverAt == nil || got.COB != 12 {
		t.Errorf("ConvertSuggestion() picked %+v, want the newest", got)
	}
	if got.Predictions.MaxLen() != 3 || len(got.Predictions[models.PredictionCOB]) != 0 {
		t.Errorf("Predictions = %+v", got.Predictions)
	}

	if ConvertSuggestion([]DeviceStatus{{Device: "pump"}}) != nil {
		t.Error("ConvertSuggestion() without openaps should be nil")
	}
}

func TestConvertProfile(t *testing.T) {
	secs := 3 * 3600
	sets := []ProfileSet{
		{
			DefaultProfile: "Default",
			StartDate:      convNow.Add(-48 * time.Hour).Format(time.RFC3339),
			Store:          map[string]Profile{"Default": {Basal: []ProfileBasal{{Time: "00:00", Value: 9}}}},
		},
		{
			DefaultProfile: "Default",
			StartDate:      convNow.Add(-24 * time.Hour).Format(time.RFC3339),
			Store: map[string]Profile{"Default": {Basal: []ProfileBasal{
				{Time: "06:30", Value: 1.2},
				{Time: "00:00", Value: 0.8},
				{Time: "ignored", Value: 5, TimeAsSeconds: &secs},
				{Time: "bad", Value: 7},
			}}},
		},
		{
			DefaultProfile: "Default",
			StartDate:      convNow.Add(time.Hour).Format(time.RFC3339),
			Store:          map[string]Profile{"Default": {Basal: []ProfileBasal{{Time: "00:00", Value: 99}}}},
		},
	}

	got := ConvertProfile(sets, convNow)
	want := []models.BasalProfileEntry{{Minutes: 0, Rate: 0.8}, {Minutes: 180, Rate: 5}, {Minutes: 390, Rate: 1.2}}
	if len(got) != len(want) {
		t.Fatalf("ConvertProfile() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if ConvertProfile(nil, convNow) != nil {
		t.Error("ConvertProfile(nil) should be nil")
	}
	missing := []ProfileSet{{DefaultProfile: "Other", Store: map[string]Profile{}}}
	if ConvertProfile(missing, convNow) != nil {
		t.Error("ConvertProfile() with missing default profile should be nil")
	}
}
