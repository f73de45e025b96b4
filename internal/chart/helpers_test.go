package chart

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mrcode/loopchart/internal/models"
)

// With this layout one second is 0.1 px and, over the default range,
// one mg/dL is one pixel: y(v) = 330 - v.
var (
	testNow    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	testLayout = Layout{Width: 360, Height: 330, Hours: 24}
)

func ago(d time.Duration) time.Time { return testNow.Add(-d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu         sync.Mutex
	built      []Series
	anomalies  map[Series]int
	recomputes int
}

func newRecorder() *recorder {
	return &recorder{anomalies: make(map[Series]int)}
}

func (r *recorder) BuildDone(s Series, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.built = append(r.built, s)
}

func (r *recorder) Recomputed(bool, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputes++
}

func (r *recorder) Anomaly(s Series) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies[s]++
}

func (r *recorder) QueueDepth(int) {}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.built = nil
	r.anomalies = make(map[Series]int)
	r.recomputes = 0
}

func (r *recorder) builtSet() map[Series]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Series]bool, len(r.built))
	for _, s := range r.built {
		out[s] = true
	}
	return out
}

func (r *recorder) anomalyCount(s Series) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anomalies[s]
}

func testFrame(in *models.Snapshot, obs Observer) *frame {
	if obs == nil {
		obs = nopObserver{}
	}
	return newFrame(in, testLayout, discardLogger(), obs)
}

func sample(t time.Time, v float64) models.GlucoseSample {
	return models.GlucoseSample{Date: t, Glucose: models.Float(v)}
}

func tempBasalPair(start time.Time, rate float64, minutes int) []models.PumpHistoryEvent {
	return []models.PumpHistoryEvent{
		{Type: models.EventTempBasal, Timestamp: start, Rate: models.Float(rate)},
		{Type: models.EventTempBasalDuration, Timestamp: start, DurationMin: models.Int(minutes)},
	}
}

// fullSnapshot exercises every stream
func fullSnapshot() models.Snapshot {
	deliverAt := ago(2 * time.Minute)
	actual := ago(95 * time.Minute)
	var preds models.Predictions
	preds[models.PredictionIOB] = []float64{120, 118, 115, 112, 110}
	preds[models.PredictionCOB] = []float64{120, 125, 131, 138, 142, 144}
	preds[models.PredictionZT] = []float64{120, 117}
	preds[models.PredictionUAM] = []float64{120, 122, 124}

	var temps []models.PumpHistoryEvent
	temps = append(temps, tempBasalPair(ago(3*time.Hour), 1.6, 30)...)
	temps = append(temps, tempBasalPair(ago(150*time.Minute), 0.4, 30)...)
	temps = append(temps, tempBasalPair(ago(40*time.Minute), 2.2, 30)...)

	var glucose []models.GlucoseSample
	for i := 36; i >= 0; i-- {
		glucose = append(glucose, sample(ago(time.Duration(i)*5*time.Minute), 100+float64(i%7)*8))
	}
	glucose[10].Unfiltered = models.Float(131)

	return models.Snapshot{
		Now:           testNow,
		Glucose:       glucose,
		ManualGlucose: []models.GlucoseSample{{Date: ago(70 * time.Minute), Glucose: models.Float(118), IsManual: true}},
		Suggestion:    &models.Suggestion{DeliverAt: &deliverAt, Timestamp: deliverAt, Predictions: preds},
		TempBasals:    temps,
		Boluses: []models.PumpHistoryEvent{
			{Type: models.EventBolus, Timestamp: ago(100 * time.Minute), Amount: models.Float(3)},
			{Type: models.EventBolus, Timestamp: ago(60 * time.Minute), Amount: models.Float(0.3), IsSMB: true},
			{Type: models.EventBolus, Timestamp: ago(20 * time.Minute), Amount: models.Float(1.5), IsExternal: true},
		},
		Suspensions: []models.PumpHistoryEvent{
			{Type: models.EventPumpSuspend, Timestamp: ago(130 * time.Minute)},
			{Type: models.EventPumpResume, Timestamp: ago(120 * time.Minute)},
		},
		Announcements: []models.Announcement{{CreatedAt: ago(50 * time.Minute), Notes: "meal 30"}},
		Carbs: []models.CarbEntry{
			{CreatedAt: ago(90 * time.Minute), ActualDate: &actual, Carbs: 45},
			{CreatedAt: ago(90 * time.Minute), Carbs: 12, IsFPU: true},
		},
		TempTargets: []models.TempTarget{
			{CreatedAt: ago(4 * time.Hour), DurationMin: 60, TargetTop: models.Float(140), TargetBottom: models.Float(130)},
		},
		Overrides: []models.OverrideEvent{
			{Date: ago(6 * time.Hour), DurationMin: 120, Target: 110},
			{Date: ago(30 * time.Minute), Target: 0, Enabled: true},
		},
		BasalProfile: []models.BasalProfileEntry{{Minutes: 0, Rate: 0.8}, {Minutes: 360, Rate: 1.1}, {Minutes: 1200, Rate: 0.9}},
		MaxBasal:     3,
	}
}
