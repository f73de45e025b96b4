package chart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrcode/loopchart/internal/models"
)

// ErrStopped is returned when pushing to a stopped coordinator
var ErrStopped = errors.New("coordinator stopped")

type update struct {
	streams []Stream
	full    bool
	apply   func(in *models.Snapshot, layout *Layout)
	flushed chan struct{}
}

// Coordinator owns the chart inputs and republishes geometry as streams
// change. A single worker goroutine applies updates in arrival order and
// reruns only the builders that depend on what changed. Readers get
// immutable snapshots through Snapshot or Subscribe.
type Coordinator struct {
	opts    options
	updates chan update
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup

	current atomic.Pointer[Geometry]

	subsMu sync.Mutex
	subs   map[chan *Geometry]struct{}

	// Owned by the worker
	in       models.Snapshot
	layout   Layout
	rng      YRange
	maxBasal func() float64
}

// NewCoordinator builds the initial geometry from in synchronously and
// starts the worker. Slices pushed later are retained, not copied; callers
// must not modify them afterwards.
func NewCoordinator(in models.Snapshot, layout Layout, opts ...Option) *Coordinator {
	o := newOptions(opts)
	c := &Coordinator{
		opts:    o,
		updates: make(chan update, o.queueSize),
		done:    make(chan struct{}),
		subs:    make(map[chan *Geometry]struct{}),
		in:      in,
		layout:  layout,
	}
	c.handle(update{full: true, apply: func(*models.Snapshot, *Layout) {}})

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case u := <-c.updates:
			c.opts.observer.QueueDepth(len(c.updates))
			if u.flushed != nil {
				close(u.flushed)
				continue
			}
			c.handle(u)
		}
	}
}

func (c *Coordinator) handle(u update) {
	ctx, span := c.opts.tracer.Start(context.Background(), "chart.recompute", trace.WithAttributes(
		attribute.Bool("full", u.full),
		attribute.StringSlice("streams", lo.Map(u.streams, func(s Stream, _ int) string { return s.String() })),
	))
	defer span.End()
	start := time.Now()

	u.apply(&c.in, &c.layout)
	in := c.in
	m := NewMapper(in.Now, c.layout)

	rangeChanged := false
	if u.full || touches(u.streams, rangeStreams) {
		rng := ComputeRange(&in, m)
		rangeChanged = rng != c.rng
		c.rng = rng
	}
	if u.full || c.maxBasal == nil || touches(u.streams, maxBasalStreams) {
		c.maxBasal = maxBasalCache(&in)
	}

	series := AllSeries()
	if !u.full {
		series = Dependents(u.streams, rangeChanged)
	}

	f := &frame{
		in:       &in,
		m:        c.rng.Mapper(m),
		rng:      c.rng,
		maxBasal: c.maxBasal,
		log:      c.opts.logger,
		obs:      c.opts.observer,
	}
	setters := runBuilders(ctx, c.opts.tracer, f, series)

	var next Geometry
	if prev := c.current.Load(); prev != nil {
		next = *prev
	}
	for _, set := range setters {
		set(&next)
	}
	f.finish(&next)

	c.current.Store(&next)
	c.broadcast(&next)

	span.SetAttributes(attribute.Int("builders", len(series)), attribute.Bool("range_changed", rangeChanged))
	c.opts.observer.Recomputed(u.full, len(series), time.Since(start))
	c.opts.logger.Debug("chart recomputed",
		"full", u.full,
		"streams", u.streams,
		"builders", len(series),
		"duration", time.Since(start))
}

func (c *Coordinator) broadcast(g *Geometry) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		// Keep only the newest geometry for slow subscribers
		select {
		case ch <- g:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- g:
			default:
			}
		}
	}
}

func (c *Coordinator) send(ctx context.Context, u update) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.updates <- u:
		c.opts.observer.QueueDepth(len(c.updates))
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published geometry
func (c *Coordinator) Snapshot() *Geometry {
	return c.current.Load()
}

// Subscribe returns a channel receiving every newly published geometry
// and a function that cancels the subscription. Slow readers miss
// intermediate geometries but always see the latest.
func (c *Coordinator) Subscribe() (<-chan *Geometry, func()) {
	ch := make(chan *Geometry, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// Refresh moves the clock to now and rebuilds every series
func (c *Coordinator) Refresh(ctx context.Context, now time.Time) error {
	return c.send(ctx, update{full: true, apply: func(in *models.Snapshot, _ *Layout) { in.Now = now }})
}

// Resize changes the view size and rebuilds every series
func (c *Coordinator) Resize(ctx context.Context, layout Layout) error {
	return c.send(ctx, update{full: true, apply: func(_ *models.Snapshot, l *Layout) { *l = layout }})
}

// Update replaces the given streams with their values in src and rebuilds
// the dependent series. src.Now is ignored; use Refresh to move the clock.
func (c *Coordinator) Update(ctx context.Context, src *models.Snapshot, streams ...Stream) error {
	if len(streams) == 0 {
		return nil
	}
	if err := checkStreams(streams); err != nil {
		return err
	}
	cp := *src
	return c.send(ctx, update{
		streams: streams,
		apply: func(in *models.Snapshot, _ *Layout) {
			for _, s := range streams {
				CopyStream(in, &cp, s)
			}
		},
	})
}

// Reload replaces the given streams, moves the clock to src.Now and
// rebuilds every series in a single pass
func (c *Coordinator) Reload(ctx context.Context, src *models.Snapshot, streams ...Stream) error {
	if err := checkStreams(streams); err != nil {
		return err
	}
	cp := *src
	return c.send(ctx, update{
		streams: streams,
		full:    true,
		apply: func(in *models.Snapshot, _ *Layout) {
			for _, s := range streams {
				CopyStream(in, &cp, s)
			}
			in.Now = cp.Now
		},
	})
}

func checkStreams(streams []Stream) error {
	for _, s := range streams {
		if s < 0 || s >= numStreams {
			return ErrUnknownStream
		}
	}
	return nil
}

func (c *Coordinator) set(s Stream, apply func(in *models.Snapshot)) error {
	return c.send(context.Background(), update{
		streams: []Stream{s},
		apply:   func(in *models.Snapshot, _ *Layout) { apply(in) },
	})
}

// SetGlucose replaces the CGM readings
func (c *Coordinator) SetGlucose(v []models.GlucoseSample) error {
	return c.set(StreamGlucose, func(in *models.Snapshot) { in.Glucose = v })
}

// SetManualGlucose replaces the meter readings
func (c *Coordinator) SetManualGlucose(v []models.GlucoseSample) error {
	return c.set(StreamManualGlucose, func(in *models.Snapshot) { in.ManualGlucose = v })
}

// SetSuggestion replaces the loop suggestion carrying the predictions
func (c *Coordinator) SetSuggestion(v *models.Suggestion) error {
	return c.set(StreamSuggestion, func(in *models.Snapshot) { in.Suggestion = v })
}

// SetTempBasals replaces the temp basal history
func (c *Coordinator) SetTempBasals(v []models.PumpHistoryEvent) error {
	return c.set(StreamTempBasals, func(in *models.Snapshot) { in.TempBasals = v })
}

// SetBoluses replaces the bolus history
func (c *Coordinator) SetBoluses(v []models.PumpHistoryEvent) error {
	return c.set(StreamBoluses, func(in *models.Snapshot) { in.Boluses = v })
}

// SetSuspensions replaces the suspend/resume history
func (c *Coordinator) SetSuspensions(v []models.PumpHistoryEvent) error {
	return c.set(StreamSuspensions, func(in *models.Snapshot) { in.Suspensions = v })
}

// SetAnnouncements replaces the remote command notes
func (c *Coordinator) SetAnnouncements(v []models.Announcement) error {
	return c.set(StreamAnnouncements, func(in *models.Snapshot) { in.Announcements = v })
}

// SetCarbs replaces the carb and fat/protein entries
func (c *Coordinator) SetCarbs(v []models.CarbEntry) error {
	return c.set(StreamCarbs, func(in *models.Snapshot) { in.Carbs = v })
}

// SetTempTargets replaces the temp targets
func (c *Coordinator) SetTempTargets(v []models.TempTarget) error {
	return c.set(StreamTempTargets, func(in *models.Snapshot) { in.TempTargets = v })
}

// SetOverrides replaces the override history
func (c *Coordinator) SetOverrides(v []models.OverrideEvent) error {
	return c.set(StreamOverrides, func(in *models.Snapshot) { in.Overrides = v })
}

// SetBasalProfile replaces the scheduled basal profile
func (c *Coordinator) SetBasalProfile(v []models.BasalProfileEntry) error {
	return c.set(StreamBasalProfile, func(in *models.Snapshot) { in.BasalProfile = v })
}

// SetAutotunedBasalProfile replaces the autotuned basal profile
func (c *Coordinator) SetAutotunedBasalProfile(v []models.BasalProfileEntry) error {
	return c.set(StreamAutotunedBasalProfile, func(in *models.Snapshot) { in.AutotunedBasalProfile = v })
}

// SetMaxBasal replaces the pump's configured max basal rate
func (c *Coordinator) SetMaxBasal(v float64) error {
	return c.set(StreamMaxBasal, func(in *models.Snapshot) { in.MaxBasal = v })
}

// Flush waits until every update queued before the call is published
func (c *Coordinator) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	if err := c.send(ctx, update{flushed: ch}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop terminates the worker. Updates still queued are dropped and every
// subscription channel is closed.
func (c *Coordinator) Stop() {
	c.stop.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		for ch := range c.subs {
			delete(c.subs, ch)
			close(ch)
		}
	})
}
