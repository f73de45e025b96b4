package chart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mrcode/loopchart/internal/models"
)

func newTestCoordinator(t *testing.T, rec *recorder) *Coordinator {
	t.Helper()
	opts := []Option{WithLogger(discardLogger())}
	if rec != nil {
		opts = append(opts, WithObserver(rec))
	}
	c := NewCoordinator(fullSnapshot(), testLayout, opts...)
	t.Cleanup(c.Stop)
	return c
}

func flush(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

func seriesSet(ss ...Series) map[Series]bool {
	out := make(map[Series]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}

func TestBuild_Idempotent(t *testing.T) {
	in := fullSnapshot()
	first := Build(&in, testLayout, WithLogger(discardLogger()))
	second := Build(&in, testLayout, WithLogger(discardLogger()))

	assert.Equal(t, first, second)
	for _, s := range AllSeries() {
		if s == SeriesManualBoluses || s == SeriesSuspensions {
			continue
		}
		assert.NotZero(t, first.Count(s), "series %s is exercised", s)
	}
}

func TestCoordinator_InitialGeometryMatchesBuild(t *testing.T) {
	c := newTestCoordinator(t, nil)
	in := fullSnapshot()

	require.NotNil(t, c.Snapshot())
	assert.Equal(t, Build(&in, testLayout, WithLogger(discardLogger())), c.Snapshot())
}

func TestCoordinator_FullRecomputeIdempotent(t *testing.T) {
	c := newTestCoordinator(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx, testNow))
	flush(t, c)
	first := c.Snapshot()

	require.NoError(t, c.Refresh(ctx, testNow))
	flush(t, c)
	second := c.Snapshot()

	assert.NotSame(t, first, second, "every recompute publishes a new geometry")
	assert.Equal(t, first, second)
}

func TestCoordinator_RebuildsOnlyDependents(t *testing.T) {
	rec := newRecorder()
	c := newTestCoordinator(t, rec)

	tests := []struct {
		name string
		push func() error
		want map[Series]bool
	}{
		{
			name: "carbs",
			push: func() error { return c.SetCarbs([]models.CarbEntry{{CreatedAt: ago(time.Hour), Carbs: 20}}) },
			want: seriesSet(SeriesCarbs, SeriesFPU),
		},
		{
			name: "temp basals",
			push: func() error { return c.SetTempBasals(tempBasalPair(ago(time.Hour), 1.2, 30)) },
			want: seriesSet(SeriesBasal, SeriesSuspensions),
		},
		{
			name: "max basal",
			push: func() error { return c.SetMaxBasal(4) },
			want: seriesSet(SeriesBasal),
		},
		{
			name: "manual glucose",
			push: func() error { return c.SetManualGlucose([]models.GlucoseSample{sample(ago(time.Hour), 300)}) },
			want: seriesSet(SeriesManualGlucose, SeriesManualGlucoseCenter),
		},
		{
			name: "glucose inside the default band keeps the range",
			push: func() error {
				return c.SetGlucose([]models.GlucoseSample{sample(ago(10*time.Minute), 120), sample(ago(5*time.Minute), 130)})
			},
			want: seriesSet(SeriesGlucose, SeriesUnsmoothed, SeriesAnnouncements, SeriesBoluses,
				SeriesManualBoluses, SeriesCarbs, SeriesFPU, SeriesOverrides),
		},
		{
			name: "glucose moving the range repositions every value series",
			push: func() error {
				return c.SetGlucose([]models.GlucoseSample{sample(ago(10*time.Minute), 120), sample(ago(5*time.Minute), 350)})
			},
			want: func() map[Series]bool {
				all := seriesSet(AllSeries()...)
				delete(all, SeriesBasal)
				delete(all, SeriesSuspensions)
				return all
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.reset()
			require.NoError(t, tt.push())
			flush(t, c)
			assert.Equal(t, tt.want, rec.builtSet())
		})
	}
}

func TestCoordinator_RangeChangeMovesUnchangedStreams(t *testing.T) {
	c := newTestCoordinator(t, nil)
	before := c.Snapshot()

	require.NoError(t, c.SetGlucose([]models.GlucoseSample{sample(ago(10*time.Minute), 40), sample(ago(5*time.Minute), 400)}))
	flush(t, c)
	after := c.Snapshot()

	assert.Equal(t, 400.0, after.Range.MaxValue)
	require.Len(t, after.TempTargets, len(before.TempTargets))
	assert.NotEqual(t, before.TempTargets[0].Y, after.TempTargets[0].Y)
	assert.Equal(t, before.BasalSegments, after.BasalSegments, "basal does not depend on the value range")
}

func TestCoordinator_RefreshMovesClock(t *testing.T) {
	c := newTestCoordinator(t, nil)
	before := c.Snapshot()

	require.NoError(t, c.Refresh(context.Background(), testNow.Add(time.Hour)))
	flush(t, c)
	after := c.Snapshot()

	assert.Equal(t, testNow.Add(time.Hour), after.Now)
	require.Equal(t, len(before.Glucose), len(after.Glucose))
	assert.InDelta(t, before.Glucose[0].X-360, after.Glucose[0].X, 1e-6)
}

func TestCoordinator_Resize(t *testing.T) {
	c := newTestCoordinator(t, nil)

	layout := Layout{Width: 720, Height: 330, Hours: 24}
	require.NoError(t, c.Resize(context.Background(), layout))
	flush(t, c)

	assert.Equal(t, layout, c.Snapshot().Layout)
	in := fullSnapshot()
	assert.Equal(t, Build(&in, layout, WithLogger(discardLogger())).Glucose, c.Snapshot().Glucose)
}

func TestCoordinator_Update(t *testing.T) {
	c := newTestCoordinator(t, nil)
	ctx := context.Background()

	src := models.Snapshot{
		Now:   testNow.Add(5 * time.Hour),
		Carbs: []models.CarbEntry{{CreatedAt: ago(time.Hour), Carbs: 10}, {CreatedAt: ago(2 * time.Hour), Carbs: 20}},
	}
	require.NoError(t, c.Update(ctx, &src, StreamCarbs))
	flush(t, c)

	g := c.Snapshot()
	assert.Len(t, g.Carbs, 2)
	assert.Empty(t, g.FPU)
	assert.Equal(t, testNow, g.Now, "Update never moves the clock")

	assert.ErrorIs(t, c.Update(ctx, &src, Stream(99)), ErrUnknownStream)
}

func TestCoordinator_ReloadIsOneRecompute(t *testing.T) {
	rec := newRecorder()
	c := newTestCoordinator(t, rec)
	ctx := context.Background()
	flush(t, c)

	rec.mu.Lock()
	before := rec.recomputes
	rec.mu.Unlock()

	src := models.Snapshot{
		Now:   testNow.Add(5 * time.Minute),
		Carbs: []models.CarbEntry{{CreatedAt: ago(time.Hour), Carbs: 10}, {CreatedAt: ago(2 * time.Hour), Carbs: 20}},
	}
	require.NoError(t, c.Reload(ctx, &src, StreamCarbs))
	flush(t, c)

	rec.mu.Lock()
	assert.Equal(t, before+1, rec.recomputes)
	rec.mu.Unlock()

	g := c.Snapshot()
	assert.Equal(t, testNow.Add(5*time.Minute), g.Now)
	assert.Len(t, g.Carbs, 2)
	assert.NotEmpty(t, g.Glucose, "untouched streams are kept")

	assert.ErrorIs(t, c.Reload(ctx, &src, Stream(-1)), ErrUnknownStream)
}

func TestCoordinator_Subscribe(t *testing.T) {
	c := newTestCoordinator(t, nil)
	ch, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.SetMaxBasal(5))

	select {
	case g := <-ch:
		assert.Equal(t, 5.0, g.MaxBasalRate)
		assert.Same(t, c.Snapshot(), g)
	case <-time.After(5 * time.Second):
		t.Fatal("no geometry published")
	}
}

func TestCoordinator_ConcurrentPushes(t *testing.T) {
	c := newTestCoordinator(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := 100 + float64(i)
			assert.NoError(t, c.SetGlucose([]models.GlucoseSample{sample(ago(10*time.Minute), v), sample(ago(5*time.Minute), v)}))
			_ = c.Snapshot()
		}(i)
	}
	wg.Wait()
	flush(t, c)

	assert.Len(t, c.Snapshot().Glucose, 2)
}

func TestCoordinator_Stop(t *testing.T) {
	c := NewCoordinator(fullSnapshot(), testLayout, WithLogger(discardLogger()))
	ch, _ := c.Subscribe()

	c.Stop()
	c.Stop()

	assert.ErrorIs(t, c.SetGlucose(nil), ErrStopped)
	assert.ErrorIs(t, c.Flush(context.Background()), ErrStopped)

	_, open := <-ch
	assert.False(t, open, "subscriptions are closed on stop")
	assert.NotNil(t, c.Snapshot(), "last geometry stays readable")
}

func TestCoordinator_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c := NewCoordinator(fullSnapshot(), testLayout,
		WithLogger(discardLogger()),
		WithTracer(tp.Tracer("test")),
		WithQueueSize(1))
	t.Cleanup(c.Stop)

	require.NoError(t, c.SetCarbs(nil))
	flush(t, c)

	names := map[string]int{}
	var partial bool
	for _, span := range sr.Ended() {
		names[span.Name()]++
		if span.Name() != "chart.recompute" {
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == "full" && !kv.Value.AsBool() {
				partial = true
			}
		}
	}
	assert.Equal(t, 2, names["chart.recompute"], "initial build and the carbs update")
	assert.Equal(t, int(numSeries)+len(Dependents([]Stream{StreamCarbs}, false)), names["chart.build"])
	assert.True(t, partial, "carbs update is a partial recompute")
}
