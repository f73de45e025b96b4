package chart

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

// tempBasal is a TempBasal event joined with its TempBasalDuration
type tempBasal struct {
	start time.Time
	end   time.Time
	rate  float64
}

// pairTempBasals scans events in order. A TempBasal must be followed by
// its TempBasalDuration; otherwise it is skipped and the scan resumes at
// the next event. report may be nil.
func pairTempBasals(events []models.PumpHistoryEvent, report func(msg string, args ...any)) []tempBasal {
	if report == nil {
		report = func(string, ...any) {}
	}
	pairs := make([]tempBasal, 0, len(events)/2)
	for i := 0; i < len(events); i++ {
		e := events[i]
		switch e.Type {
		case models.EventTempBasal:
		case models.EventTempBasalDuration:
			report("temp basal duration without start", "timestamp", e.Timestamp)
			continue
		default:
			continue
		}
		if i+1 >= len(events) || events[i+1].Type != models.EventTempBasalDuration {
			report("temp basal without duration", "timestamp", e.Timestamp)
			continue
		}
		d := events[i+1]
		pairs = append(pairs, tempBasal{
			start: e.Timestamp,
			end:   e.Timestamp.Add(d.Duration()),
			rate:  e.RateOrZero(),
		})
		i++
	}
	return pairs
}

// MaxBasalRate is the rate drawn at full basal strip height: the highest
// of the scheduled, autotuned and temp rates, falling back to the pump's
// configured maximum when a profile is empty.
func MaxBasalRate(in *models.Snapshot) float64 {
	return maxBasalRate(in.BasalProfile, in.AutotunedBasalProfile, in.TempBasals, in.MaxBasal)
}

func maxBasalRate(profile, autotuned []models.BasalProfileEntry, temps []models.PumpHistoryEvent, configured float64) float64 {
	profileMax := func(p []models.BasalProfileEntry) float64 {
		if len(p) == 0 {
			return configured
		}
		return lo.MaxBy(p, func(a, b models.BasalProfileEntry) bool { return a.Rate > b.Rate }).Rate
	}
	maxRegular := max(profileMax(profile), profileMax(autotuned))

	maxTemp := maxRegular
	rates := lo.FilterMap(temps, func(e models.PumpHistoryEvent, _ int) (float64, bool) {
		return e.RateOrZero(), e.Rate != nil
	})
	if len(rates) > 0 {
		maxTemp = lo.Max(rates)
	}
	if maxTemp == 0 {
		maxTemp = maxRegular
	}
	return max(maxTemp, maxRegular)
}

// maxBasalCache computes the max basal rate on first read. The inputs are
// captured so the cache stays valid while the snapshot moves on.
func maxBasalCache(in *models.Snapshot) func() float64 {
	profile, autotuned, temps, configured := in.BasalProfile, in.AutotunedBasalProfile, in.TempBasals, in.MaxBasal
	return sync.OnceValue(func() float64 {
		return maxBasalRate(profile, autotuned, temps, configured)
	})
}

// rateSpan is a half open interval at a constant rate
type rateSpan struct {
	start time.Time
	end   time.Time
	rate  float64
}

// scheduledSpans replicates the daily profile from the start of from's
// local day and clips it to [from, to). An empty profile yields rate 0.
func scheduledSpans(profile []models.BasalProfileEntry, from, to time.Time) []rateSpan {
	if !from.Before(to) {
		return nil
	}
	if len(profile) == 0 {
		return []rateSpan{{start: from, end: to}}
	}

	entries := slices.Clone(profile)
	slices.SortStableFunc(entries, func(a, b models.BasalProfileEntry) int { return a.Minutes - b.Minutes })

	y, m, d := from.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, from.Location())

	var spans []rateSpan
	// Day -1 covers the stretch before the first entry of from's day.
	for day := -1; ; day++ {
		base := midnight.AddDate(0, 0, day)
		if !base.Before(to) {
			break
		}
		for i, e := range entries {
			start := base.Add(time.Duration(e.Minutes) * time.Minute)
			var end time.Time
			if i+1 < len(entries) {
				end = base.Add(time.Duration(entries[i+1].Minutes) * time.Minute)
			} else {
				end = base.AddDate(0, 0, 1).Add(time.Duration(entries[0].Minutes) * time.Minute)
			}
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			if start.Before(end) {
				spans = append(spans, rateSpan{start: start, end: end, rate: e.Rate})
			}
		}
	}
	return spans
}

type basalScale struct {
	m    Mapper
	cost float64
}

func newBasalScale(m Mapper, maxRate float64) basalScale {
	s := basalScale{m: m}
	if maxRate > 0 {
		s.cost = BasalHeight / maxRate
	}
	return s
}

func (s basalScale) segment(start, end time.Time, rate float64, temp bool) BasalSegment {
	return BasalSegment{
		X0:   s.m.TimeToX(start),
		X1:   s.m.TimeToX(end),
		Y:    BasalHeight - rate*s.cost,
		Rate: rate,
		Temp: temp,
	}
}

// basalSegments merges temp basals with the scheduled profile from the
// origin to now. A later temp basal cuts the previous one short.
func basalSegments(f *frame, scale basalScale) []BasalSegment {
	temps := pairTempBasals(f.in.TempBasals, func(msg string, args ...any) {
		f.anomaly(SeriesBasal, msg, args...)
	})
	for i := 0; i+1 < len(temps); i++ {
		if temps[i].end.After(temps[i+1].start) {
			temps[i].end = temps[i+1].start
		}
	}

	var segs []BasalSegment
	fill := func(from, to time.Time) {
		for _, s := range scheduledSpans(f.in.BasalProfile, from, to) {
			segs = append(segs, scale.segment(s.start, s.end, s.rate, false))
		}
	}

	cursor := f.m.Origin()
	for _, t := range temps {
		if !t.end.After(cursor) {
			continue
		}
		start := t.start
		if start.Before(cursor) {
			start = cursor
		}
		fill(cursor, start)
		segs = append(segs, scale.segment(start, t.end, t.rate, true))
		cursor = t.end
	}
	fill(cursor, f.m.Now())
	return segs
}

// stepPath turns contiguous segments into a step outline. When closed the
// outline drops to the baseline at both ends so it can be filled.
func stepPath(segs []BasalSegment, closed bool) Path {
	if len(segs) == 0 {
		return nil
	}
	path := make(Path, 0, 2*len(segs)+3)
	if closed {
		path = append(path, Point{X: segs[0].X0, Y: BasalHeight})
	}
	for _, s := range segs {
		path = append(path, Point{X: s.X0, Y: s.Y}, Point{X: s.X1, Y: s.Y})
	}
	if closed {
		last := segs[len(segs)-1]
		path = append(path, Point{X: last.X1, Y: BasalHeight}, Point{X: segs[0].X0, Y: BasalHeight})
	}
	return path
}

// buildBasal draws the delivered basal and the two day scheduled
// comparison line, preferring the autotuned profile when present
func buildBasal(f *frame) func(*Geometry) {
	scale := newBasalScale(f.m, f.maxBasal())
	segs := basalSegments(f, scale)

	profile := f.in.AutotunedBasalProfile
	if len(profile) == 0 {
		profile = f.in.BasalProfile
	}
	origin := f.m.Origin()
	regular := lo.Map(scheduledSpans(profile, origin, origin.Add(2*Lookback)), func(s rateSpan, _ int) BasalSegment {
		return scale.segment(s.start, s.end, s.rate, false)
	})

	tempPath := stepPath(segs, true)
	regularPath := stepPath(regular, false)
	return func(g *Geometry) {
		g.BasalSegments = segs
		g.TempBasal = tempPath
		g.RegularBasal = regularPath
	}
}
