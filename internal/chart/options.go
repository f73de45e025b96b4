package chart

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Observer receives engine events. Implementations must be safe for
// concurrent use since builders report from their own goroutines.
type Observer interface {
	BuildDone(s Series, d time.Duration)
	Recomputed(full bool, builders int, d time.Duration)
	Anomaly(s Series)
	QueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) BuildDone(Series, time.Duration)     {}
func (nopObserver) Recomputed(bool, int, time.Duration) {}
func (nopObserver) Anomaly(Series)                      {}
func (nopObserver) QueueDepth(int)                      {}

type options struct {
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	queueSize int
}

// Option configures Build and NewCoordinator
type Option func(*options)

// WithLogger sets the logger used for data quality warnings
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithQueueSize sets how many stream updates may wait for the worker
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:    slog.Default(),
		observer:  nopObserver{},
		tracer:    otel.Tracer("github.com/mrcode/loopchart/internal/chart"),
		queueSize: 64,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
