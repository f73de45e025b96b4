package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/mrcode/loopchart/internal/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	streams []chart.Stream
	reload  time.Time
}

type fakeSink struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (s *fakeSink) Update(_ context.Context, _ *models.Snapshot, streams ...chart.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, call{streams: streams})
	return nil
}

func (s *fakeSink) Reload(_ context.Context, src *models.Snapshot, streams ...chart.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, call{streams: streams, reload: src.Now})
	return nil
}

func (s *fakeSink) snapshot() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

type fakeMetrics struct {
	mu     sync.Mutex
	pushed int
	failed int
}

func (m *fakeMetrics) FeedPushed(string, []chart.Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed++
}

func (m *fakeMetrics) FeedFailed(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func snapshotAt(now time.Time, glucose ...float64) *models.Snapshot {
	s := &models.Snapshot{Now: now}
	for i, v := range glucose {
		s.Glucose = append(s.Glucose, models.GlucoseSample{
			Date:    now.Add(-time.Duration(len(glucose)-i) * 5 * time.Minute),
			Glucose: models.Float(v),
		})
	}
	return s
}

func TestPusher_FirstPushSendsEverything(t *testing.T) {
	sink := &fakeSink{}
	p := newPusher("test", sink, newOptions([]Option{quiet()}))

	changed, err := p.push(context.Background(), snapshotAt(testNow, 100))
	require.NoError(t, err)
	assert.Equal(t, chart.Streams(), changed)

	calls := sink.snapshot()
	require.Len(t, calls, 1, "streams and clock go in one rebuild")
	assert.Equal(t, chart.Streams(), calls[0].streams)
	assert.Equal(t, testNow, calls[0].reload)
}

func TestPusher_OnlyChangedStreams(t *testing.T) {
	sink := &fakeSink{}
	p := newPusher("test", sink, newOptions([]Option{quiet(), WithBaseline(snapshotAt(testNow, 100))}))

	next := snapshotAt(testNow, 100)
	next.Carbs = []models.CarbEntry{{CreatedAt: testNow, Carbs: 20}}
	changed, err := p.push(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, []chart.Stream{chart.StreamCarbs}, changed)

	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].reload.IsZero(), "clock unchanged, partial update")

	// Same content again pushes nothing but still reaches the sink
	changed, err = p.push(context.Background(), next)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestPusher_ClockMoves(t *testing.T) {
	sink := &fakeSink{}
	p := newPusher("test", sink, newOptions([]Option{quiet(), WithBaseline(snapshotAt(testNow, 100))}))

	later := testNow.Add(5 * time.Minute)
	next := snapshotAt(testNow, 100)
	next.Now = later
	_, err := p.push(context.Background(), next)
	require.NoError(t, err)

	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].streams)
	assert.Equal(t, later, calls[0].reload)
}

func TestPusher_FillsDefaults(t *testing.T) {
	sink := &fakeSink{}
	p := newPusher("test", sink, newOptions([]Option{
		quiet(),
		WithClock(func() time.Time { return testNow }),
		WithMaxBasal(3.5),
	}))

	snap := &models.Snapshot{}
	_, err := p.push(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, testNow, snap.Now)
	assert.InDelta(t, 3.5, snap.MaxBasal, 0)

	keep := &models.Snapshot{Now: testNow, MaxBasal: 1}
	_, err = p.push(context.Background(), keep)
	require.NoError(t, err)
	assert.InDelta(t, 1, keep.MaxBasal, 0)
}

func TestPusher_SinkError(t *testing.T) {
	sink := &fakeSink{err: chart.ErrStopped}
	m := &fakeMetrics{}
	p := newPusher("test", sink, newOptions([]Option{quiet(), WithMetrics(m)}))

	_, err := p.push(context.Background(), snapshotAt(testNow, 100))
	require.ErrorIs(t, err, chart.ErrStopped)
	assert.Equal(t, 1, m.failed)
	assert.Nil(t, p.last, "failed pushes are retried in full")
}

func writeYAML(t *testing.T, path string, snap *models.Snapshot) {
	t.Helper()
	data, err := yaml.Marshal(snap)
	require.NoError(t, err)
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, data, 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestReadSnapshot(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "snap.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"now": "2024-05-01T12:00:00Z",
		"glucose": [{"dateString": "2024-05-01T11:55:00Z", "glucose": 120}],
		"tempBasals": [
			{"_type": "TempBasal", "timestamp": "2024-05-01T11:00:00Z", "rate": 1.2},
			{"_type": "TempBasalDuration", "timestamp": "2024-05-01T11:00:00Z", "duration (min)": 30}
		],
		"maxBasal": 3
	}`), 0o600))

	snap, err := ReadSnapshot(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, testNow, snap.Now)
	require.Len(t, snap.Glucose, 1)
	assert.InDelta(t, 120, snap.Glucose[0].Value(), 0)
	require.Len(t, snap.TempBasals, 2)
	assert.Equal(t, 30*time.Minute, snap.TempBasals[1].Duration())

	yamlPath := filepath.Join(dir, "snap.yaml")
	writeYAML(t, yamlPath, snapshotAt(testNow, 90, 95))
	snap, err = ReadSnapshot(yamlPath)
	require.NoError(t, err)
	require.Len(t, snap.Glucose, 2)
	assert.InDelta(t, 95, snap.Glucose[1].Value(), 0)

	_, err = ReadSnapshot(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = ReadSnapshot(bad)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = ReadSnapshot(empty)
	require.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestFileWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")
	writeYAML(t, path, snapshotAt(testNow, 100))

	sink := &fakeSink{}
	m := &fakeMetrics{}
	w := NewFileWatcher(path, sink, quiet(), WithMetrics(m), WithDebounce(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	next := snapshotAt(testNow, 100)
	next.Overrides = []models.OverrideEvent{{Date: testNow, DurationMin: 30, Enabled: true}}
	writeYAML(t, path, next)

	require.Eventually(t, func() bool {
		calls := sink.snapshot()
		for _, c := range calls[1:] {
			if len(c.streams) == 1 && c.streams[0] == chart.StreamOverrides {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	w := NewFileWatcher(filepath.Join(t.TempDir(), "nope", "snap.json"), &fakeSink{}, quiet())
	require.Error(t, w.Run(context.Background()))
}

type fakeSource struct {
	mu    sync.Mutex
	snaps []*models.Snapshot
	err   error
	calls int
}

func (s *fakeSource) FetchSnapshot(_ context.Context, now time.Time, lookback time.Duration) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.snaps) == 0 {
		return snapshotAt(now, 100), nil
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

func TestPoller_Poll(t *testing.T) {
	first := snapshotAt(testNow, 100)
	second := snapshotAt(testNow.Add(5*time.Minute), 100, 110)
	src := &fakeSource{snaps: []*models.Snapshot{first, second}}
	sink := &fakeSink{}
	p := NewPoller(src, sink, time.Minute, 24*time.Hour, quiet())

	require.NoError(t, p.Poll(context.Background()))
	require.NoError(t, p.Poll(context.Background()))

	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, []chart.Stream{chart.StreamGlucose}, calls[1].streams)
	assert.Equal(t, testNow.Add(5*time.Minute), calls[1].reload)
}

func TestPoller_Run(t *testing.T) {
	m := &fakeMetrics{}
	src := &fakeSource{err: errors.New("nightscout down")}
	p := NewPoller(src, &fakeSink{}, 10*time.Millisecond, time.Hour, quiet(), WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.failed >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
