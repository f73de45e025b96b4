// Package obvy carries the service's observability: prometheus metrics for
// the chart engine and HTTP surface, and OpenTelemetry trace export.
package obvy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal owns a private registry so tests can build as many as they like
type StatsInternal struct {
	Registry *prometheus.Registry

	BuildDuration  *prometheus.HistogramVec
	Recomputes     *prometheus.CounterVec
	RecomputeTime  prometheus.Histogram
	Anomalies      *prometheus.CounterVec
	Queue          prometheus.Gauge
	FeedUpdates    *prometheus.CounterVec
	FeedErrors     *prometheus.CounterVec
	RequestCount   *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
}

// NewStatsInternal registers every collector on a fresh registry
func NewStatsInternal() *StatsInternal {
	s := &StatsInternal{
		Registry: prometheus.NewRegistry(),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loopchart",
			Name:      "build_duration_seconds",
			Help:      "Time spent in a single series builder.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"series"}),
		Recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loopchart",
			Name:      "recomputes_total",
			Help:      "Geometry recomputations by kind.",
		}, []string{"kind"}),
		RecomputeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loopchart",
			Name:      "recompute_duration_seconds",
			Help:      "Wall time of one recomputation including all builders.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loopchart",
			Name:      "anomalies_total",
			Help:      "Malformed input tolerated by a builder.",
		}, []string{"series"}),
		Queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loopchart",
			Name:      "queue_depth",
			Help:      "Stream updates waiting for the recompute worker.",
		}),
		FeedUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loopchart",
			Name:      "feed_updates_total",
			Help:      "Streams pushed by a feed.",
		}, []string{"feed", "stream"}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loopchart",
			Name:      "feed_errors_total",
			Help:      "Failed feed reads.",
		}, []string{"feed"}),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loopchart",
			Name:      "http_requests_total",
			Help:      "API requests by route and status.",
		}, []string{"route", "code"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loopchart",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.BuildDuration,
		s.Recomputes,
		s.RecomputeTime,
		s.Anomalies,
		s.Queue,
		s.FeedUpdates,
		s.FeedErrors,
		s.RequestCount,
		s.RequestLatency,
	)
	return s
}

// Handler serves the registry in the prometheus exposition format
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

// BuildDone implements chart.Observer
func (s *StatsInternal) BuildDone(series chart.Series, d time.Duration) {
	s.BuildDuration.WithLabelValues(series.String()).Observe(d.Seconds())
}

// Recomputed implements chart.Observer
func (s *StatsInternal) Recomputed(full bool, _ int, d time.Duration) {
	kind := "partial"
	if full {
		kind = "full"
	}
	s.Recomputes.WithLabelValues(kind).Inc()
	s.RecomputeTime.Observe(d.Seconds())
}

// Anomaly implements chart.Observer
func (s *StatsInternal) Anomaly(series chart.Series) {
	s.Anomalies.WithLabelValues(series.String()).Inc()
}

// QueueDepth implements chart.Observer
func (s *StatsInternal) QueueDepth(n int) {
	s.Queue.Set(float64(n))
}

// FeedPushed counts streams a feed delivered to the engine
func (s *StatsInternal) FeedPushed(feed string, streams []chart.Stream) {
	for _, st := range streams {
		s.FeedUpdates.WithLabelValues(feed, st.String()).Inc()
	}
}

// FeedFailed counts a failed read
func (s *StatsInternal) FeedFailed(feed string) {
	s.FeedErrors.WithLabelValues(feed).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records count and latency per route. route names the request,
// usually the mux route template.
func (s *StatsInternal) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			name := route(r)
			s.RequestCount.WithLabelValues(name, strconv.Itoa(rec.code)).Inc()
			s.RequestLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		})
	}
}

var _ chart.Observer = (*StatsInternal)(nil)
