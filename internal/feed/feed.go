// Package feed delivers input streams to the chart engine. Producers read a
// whole snapshot, diff it against the last one delivered and push only the
// streams that changed.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/mrcode/loopchart/internal/models"
)

// Sink receives stream updates. *chart.Coordinator is one.
type Sink interface {
	Update(ctx context.Context, src *models.Snapshot, streams ...chart.Stream) error
	Reload(ctx context.Context, src *models.Snapshot, streams ...chart.Stream) error
}

// Metrics counts feed activity
type Metrics interface {
	FeedPushed(feed string, streams []chart.Stream)
	FeedFailed(feed string)
}

type nopMetrics struct{}

func (nopMetrics) FeedPushed(string, []chart.Stream) {}
func (nopMetrics) FeedFailed(string)                 {}

type options struct {
	logger   *slog.Logger
	metrics  Metrics
	clock    func() time.Time
	baseline *models.Snapshot
	maxBasal float64
	debounce time.Duration
}

// Option configures a feed
type Option func(*options)

// WithLogger sets the feed logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the feed metrics
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock sets the time source used when a snapshot carries no time
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBaseline sets the snapshot the sink already holds, so the first push
// only sends what differs from it
func WithBaseline(snap *models.Snapshot) Option {
	return func(o *options) { o.baseline = snap }
}

// WithMaxBasal fills the configured max basal for snapshots that lack one
func WithMaxBasal(v float64) Option {
	return func(o *options) { o.maxBasal = v }
}

// WithDebounce sets how long the file watcher waits for writes to settle
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		metrics:  nopMetrics{},
		clock:    time.Now,
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// pusher delivers the difference between successive snapshots
type pusher struct {
	name string
	sink Sink
	opts options

	mu   sync.Mutex
	last *models.Snapshot
}

func newPusher(name string, sink Sink, opts options) *pusher {
	return &pusher{name: name, sink: sink, opts: opts, last: opts.baseline}
}

// fill completes a snapshot read from a source that may omit the clock or
// the configured max basal
func (p *pusher) fill(snap *models.Snapshot) {
	if snap.Now.IsZero() {
		snap.Now = p.opts.clock()
	}
	if snap.MaxBasal == 0 {
		snap.MaxBasal = p.opts.maxBasal
	}
}

// push sends the streams that changed since the last successful push. When
// the snapshot time moved the streams and the clock go in one full rebuild.
func (p *pusher) push(ctx context.Context, snap *models.Snapshot) ([]chart.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fill(snap)

	changed := chart.Streams()
	if p.last != nil {
		changed = chart.ChangedStreams(p.last, snap)
	}

	var err error
	if p.last == nil || !p.last.Now.Equal(snap.Now) {
		err = p.sink.Reload(ctx, snap, changed...)
	} else {
		err = p.sink.Update(ctx, snap, changed...)
	}
	if err != nil {
		p.opts.metrics.FeedFailed(p.name)
		return nil, err
	}

	p.last = snap
	p.opts.metrics.FeedPushed(p.name, changed)
	if len(changed) > 0 {
		p.opts.logger.Debug("Pushed streams",
			slog.String("feed", p.name),
			slog.Any("streams", changed),
			slog.Time("now", snap.Now))
	}
	return changed, nil
}
