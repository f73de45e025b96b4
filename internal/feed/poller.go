package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/mrcode/loopchart/internal/models"
)

// Source produces a full snapshot for the lookback ending at now.
// *nightscout.Client is one.
type Source interface {
	FetchSnapshot(ctx context.Context, now time.Time, lookback time.Duration) (*models.Snapshot, error)
}

// Poller fetches a Source on a fixed interval and pushes what changed
type Poller struct {
	source   Source
	interval time.Duration
	lookback time.Duration
	p        *pusher

	consecutiveErrors int
}

// NewPoller creates a poller. interval defaults to one minute.
func NewPoller(source Source, sink Sink, interval, lookback time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		source:   source,
		interval: interval,
		lookback: lookback,
		p:        newPusher("nightscout", sink, newOptions(opts)),
	}
}

// Poll fetches once and pushes the changed streams
func (p *Poller) Poll(ctx context.Context) error {
	snap, err := p.source.FetchSnapshot(ctx, p.p.opts.clock(), p.lookback)
	if err != nil {
		p.p.opts.metrics.FeedFailed(p.p.name)
		return err
	}
	_, err = p.p.push(ctx, snap)
	return err
}

// Run polls immediately and then on every tick until ctx is done.
// Failures are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetchAndUpdate(ctx)
	for {
		select {
		case <-ticker.C:
			p.fetchAndUpdate(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Poller) fetchAndUpdate(ctx context.Context) {
	if err := p.Poll(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.consecutiveErrors++
		p.p.opts.logger.Error("Error fetching snapshot",
			slog.Int("attempt", p.consecutiveErrors),
			slog.Any("error", err))
		return
	}
	p.consecutiveErrors = 0
}
