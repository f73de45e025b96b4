package chart

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrcode/loopchart/internal/models"
)

// builder computes one series. build runs off the publishing path and
// returns a setter that installs the whole result at once.
type builder struct {
	build     func(*frame) func(*Geometry)
	streams   []Stream
	usesRange bool
}

var builders = [numSeries]builder{
	SeriesGlucose:             {build: buildGlucose, streams: []Stream{StreamGlucose}, usesRange: true},
	SeriesManualGlucose:       {build: buildManualGlucose, streams: []Stream{StreamManualGlucose}, usesRange: true},
	SeriesManualGlucoseCenter: {build: buildManualGlucoseCenter, streams: []Stream{StreamManualGlucose}, usesRange: true},
	SeriesUnsmoothed:          {build: buildUnsmoothed, streams: []Stream{StreamGlucose}, usesRange: true},
	SeriesAnnouncements:       {build: buildAnnouncements, streams: []Stream{StreamAnnouncements, StreamGlucose}, usesRange: true},
	SeriesBoluses:             {build: buildBoluses, streams: []Stream{StreamBoluses, StreamGlucose}, usesRange: true},
	SeriesManualBoluses:       {build: buildManualBoluses, streams: []Stream{StreamBoluses, StreamGlucose}, usesRange: true},
	SeriesCarbs:               {build: buildCarbs, streams: []Stream{StreamCarbs, StreamGlucose}, usesRange: true},
	SeriesFPU:                 {build: buildFPU, streams: []Stream{StreamCarbs, StreamGlucose}, usesRange: true},
	SeriesPredictionIOB:       {build: buildPrediction(models.PredictionIOB), streams: []Stream{StreamSuggestion}, usesRange: true},
	SeriesPredictionCOB:       {build: buildPrediction(models.PredictionCOB), streams: []Stream{StreamSuggestion}, usesRange: true},
	SeriesPredictionZT:        {build: buildPrediction(models.PredictionZT), streams: []Stream{StreamSuggestion}, usesRange: true},
	SeriesPredictionUAM:       {build: buildPrediction(models.PredictionUAM), streams: []Stream{StreamSuggestion}, usesRange: true},
	SeriesBasal: {
		build:   buildBasal,
		streams: []Stream{StreamTempBasals, StreamBasalProfile, StreamAutotunedBasalProfile, StreamMaxBasal},
	},
	SeriesSuspensions: {build: buildSuspensions, streams: []Stream{StreamSuspensions, StreamTempBasals}},
	SeriesTempTargets: {build: buildTempTargets, streams: []Stream{StreamTempTargets}, usesRange: true},
	SeriesOverrides: {
		build:     buildOverrides,
		streams:   []Stream{StreamOverrides, StreamSuggestion, StreamGlucose},
		usesRange: true,
	},
}

// Streams feeding the shared derived values
var (
	rangeStreams    = []Stream{StreamGlucose, StreamSuggestion, StreamTempTargets}
	maxBasalStreams = []Stream{StreamTempBasals, StreamBasalProfile, StreamAutotunedBasalProfile, StreamMaxBasal}
)

func touches(changed, deps []Stream) bool {
	for _, c := range changed {
		for _, d := range deps {
			if c == d {
				return true
			}
		}
	}
	return false
}

// Dependents returns the series rebuilt when streams change, given whether
// the value range moved as a result
func Dependents(changed []Stream, rangeChanged bool) []Series {
	var out []Series
	for s, b := range builders {
		if touches(changed, b.streams) || (rangeChanged && b.usesRange) {
			out = append(out, Series(s))
		}
	}
	return out
}

// runBuilders runs the requested builders in parallel and returns their
// setters in series order
func runBuilders(ctx context.Context, tracer trace.Tracer, f *frame, series []Series) []func(*Geometry) {
	setters := make([]func(*Geometry), len(series))
	var wg sync.WaitGroup
	for i, s := range series {
		wg.Add(1)
		go func(i int, s Series) {
			defer wg.Done()
			_, span := tracer.Start(ctx, "chart.build", trace.WithAttributes(attribute.String("series", s.String())))
			defer span.End()

			start := time.Now()
			setters[i] = builders[s].build(f)
			f.obs.BuildDone(s, time.Since(start))
		}(i, s)
	}
	wg.Wait()
	return setters
}

// finish stamps the shared derived values onto g
func (f *frame) finish(g *Geometry) {
	g.Now = f.m.Now()
	g.Layout = f.m.Layout()
	g.Range = f.rng
	g.MaxBasalRate = f.maxBasal()
	g.Horizon, g.HasHorizon = horizon(f.in)
}

// Build runs every builder once over in and returns the complete geometry
func Build(in *models.Snapshot, layout Layout, opts ...Option) *Geometry {
	o := newOptions(opts)
	ctx, span := o.tracer.Start(context.Background(), "chart.Build")
	defer span.End()

	f := newFrame(in, layout, o.logger, o.observer)
	g := &Geometry{}
	for _, set := range runBuilders(ctx, o.tracer, f, AllSeries()) {
		set(g)
	}
	f.finish(g)
	return g
}
