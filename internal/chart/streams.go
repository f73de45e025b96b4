package chart

import (
	"reflect"

	"github.com/mrcode/loopchart/internal/models"
)

// StreamField returns a pointer to the field of snap holding stream s, so
// callers can decode a single stream in place
func StreamField(snap *models.Snapshot, s Stream) any {
	switch s {
	case StreamGlucose:
		return &snap.Glucose
	case StreamManualGlucose:
		return &snap.ManualGlucose
	case StreamSuggestion:
		return &snap.Suggestion
	case StreamTempBasals:
		return &snap.TempBasals
	case StreamBoluses:
		return &snap.Boluses
	case StreamSuspensions:
		return &snap.Suspensions
	case StreamAnnouncements:
		return &snap.Announcements
	case StreamCarbs:
		return &snap.Carbs
	case StreamTempTargets:
		return &snap.TempTargets
	case StreamOverrides:
		return &snap.Overrides
	case StreamBasalProfile:
		return &snap.BasalProfile
	case StreamAutotunedBasalProfile:
		return &snap.AutotunedBasalProfile
	case StreamMaxBasal:
		return &snap.MaxBasal
	default:
		return nil
	}
}

// CopyStream replaces stream s of dst with the one in src
func CopyStream(dst, src *models.Snapshot, s Stream) {
	d := StreamField(dst, s)
	if d == nil {
		return
	}
	reflect.ValueOf(d).Elem().Set(reflect.ValueOf(StreamField(src, s)).Elem())
}

// ChangedStreams lists the streams whose contents differ between a and b
func ChangedStreams(a, b *models.Snapshot) []Stream {
	var out []Stream
	for _, s := range Streams() {
		if !reflect.DeepEqual(StreamField(a, s), StreamField(b, s)) {
			out = append(out, s)
		}
	}
	return out
}
