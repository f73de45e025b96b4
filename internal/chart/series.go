package chart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrcode/loopchart/internal/models"
)

// ErrUnknownStream is returned when a stream name does not match any input
var ErrUnknownStream = errors.New("unknown stream")

// Stream identifies one input array of the chart
type Stream int

// Input streams
const (
	StreamGlucose Stream = iota
	StreamManualGlucose
	StreamSuggestion
	StreamTempBasals
	StreamBoluses
	StreamSuspensions
	StreamAnnouncements
	StreamCarbs
	StreamTempTargets
	StreamOverrides
	StreamBasalProfile
	StreamAutotunedBasalProfile
	StreamMaxBasal
	numStreams
)

var streamNames = [numStreams]string{
	"glucose",
	"manualGlucose",
	"suggestion",
	"tempBasals",
	"boluses",
	"suspensions",
	"announcements",
	"carbs",
	"tempTargets",
	"overrides",
	"basalProfile",
	"autotunedBasalProfile",
	"maxBasal",
}

func (s Stream) String() string {
	if s < 0 || s >= numStreams {
		return fmt.Sprintf("stream(%d)", int(s))
	}
	return streamNames[s]
}

// Streams returns every input stream in declaration order
func Streams() []Stream {
	out := make([]Stream, numStreams)
	for i := range out {
		out[i] = Stream(i)
	}
	return out
}

// ParseStream resolves a stream by its name, ignoring case
func ParseStream(name string) (Stream, error) {
	for i, n := range streamNames {
		if strings.EqualFold(n, name) {
			return Stream(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStream, name)
}

// Series identifies one geometry builder and the shape list it owns
type Series int

// Geometry series
const (
	SeriesGlucose Series = iota
	SeriesManualGlucose
	SeriesManualGlucoseCenter
	SeriesUnsmoothed
	SeriesAnnouncements
	SeriesBoluses
	SeriesManualBoluses
	SeriesCarbs
	SeriesFPU
	SeriesPredictionIOB
	SeriesPredictionCOB
	SeriesPredictionZT
	SeriesPredictionUAM
	SeriesBasal
	SeriesSuspensions
	SeriesTempTargets
	SeriesOverrides
	numSeries
)

var seriesNames = [numSeries]string{
	"glucose",
	"manual_glucose",
	"manual_glucose_center",
	"unsmoothed",
	"announcements",
	"boluses",
	"manual_boluses",
	"carbs",
	"fpu",
	"prediction_iob",
	"prediction_cob",
	"prediction_zt",
	"prediction_uam",
	"basal",
	"suspensions",
	"temp_targets",
	"overrides",
}

func (s Series) String() string {
	if s < 0 || s >= numSeries {
		return fmt.Sprintf("series(%d)", int(s))
	}
	return seriesNames[s]
}

// AllSeries returns every series in build order
func AllSeries() []Series {
	out := make([]Series, numSeries)
	for i := range out {
		out[i] = Series(i)
	}
	return out
}

func (s Series) predictionKind() models.PredictionKind {
	return models.PredictionKind(s - SeriesPredictionIOB)
}

func predictionSeries(k models.PredictionKind) Series {
	return SeriesPredictionIOB + Series(k)
}
