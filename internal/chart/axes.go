package chart

import (
	"math"
	"time"

	"github.com/mrcode/loopchart/internal/models"
)

// YLinesCount is the number of intervals between horizontal grid lines
const YLinesCount = 5

// Line is a straight segment
type Line struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Label is text anchored at its center
type Label struct {
	At   Point  `json:"at"`
	Text string `json:"text"`
}

// Axes holds the grid, threshold lines, labels and the now marker for one
// zoom level
type Axes struct {
	YLines     []Line  `json:"yLines"`
	YLabels    []Label `json:"yLabels"`
	HighLine   *Line   `json:"highLine,omitempty"`
	LowLine    *Line   `json:"lowLine,omitempty"`
	HourLines  []Line  `json:"hourLines"`
	HourLabels []Label `json:"hourLabels"`
	NowLine    Line    `json:"nowLine"`
}

// AxesConfig carries the settings the axes depend on
type AxesConfig struct {
	Unit           string
	LowGlucose     float64
	HighGlucose    float64
	ThresholdLines bool
}

// AxesConfigFromSettings extracts the axes settings
func AxesConfigFromSettings(s *models.Settings) AxesConfig {
	c := s.Clone()
	return AxesConfig{
		Unit:           c.Unit,
		LowGlucose:     c.LowGlucose,
		HighGlucose:    c.HighGlucose,
		ThresholdLines: c.ThresholdLines,
	}
}

func buildAxes(g *Geometry, screenHours int, scale float64, cfg AxesConfig) Axes {
	var ax Axes
	l := g.Layout
	r := g.Range

	yStep := (r.MaxY - r.MinY) / YLinesCount
	valueStep := (r.MaxValue - r.MinValue) / YLinesCount
	for i := 0; i <= YLinesCount; i++ {
		y := r.MinY + float64(i)*yStep
		ax.YLines = append(ax.YLines, Line{From: Point{X: 0, Y: y}, To: Point{X: l.Width, Y: y}})
		value := math.Round(r.MaxValue - float64(i)*valueStep)
		ax.YLabels = append(ax.YLabels, Label{At: Point{X: l.Width - 12, Y: y}, Text: FormatGlucose(value, cfg.Unit)})
	}

	if cfg.ThresholdLines && r.MaxValue > r.MinValue {
		perValue := (r.MaxY - r.MinY) / (r.MaxValue - r.MinValue)
		if r.MaxValue > cfg.HighGlucose {
			y := r.MinY + perValue*(r.MaxValue-cfg.HighGlucose)
			ax.HighLine = &Line{From: Point{X: 0, Y: y}, To: Point{X: l.Width, Y: y}}
		}
		if r.MinValue < cfg.LowGlucose {
			y := r.MinY + perValue*(r.MaxValue-cfg.LowGlucose)
			ax.LowLine = &Line{From: Point{X: 0, Y: y}, To: Point{X: l.Width, Y: y}}
		}
	}

	m := NewMapper(g.Now, l)
	origin := m.Origin()
	firstHour := time.Date(origin.Year(), origin.Month(), origin.Day(), origin.Hour(), 0, 0, 0, origin.Location())
	firstX := m.TimeToX(firstHour)
	format := "15:04"
	if screenHours > 6 {
		format = "15"
	}
	bottom := l.Height - 20
	for hour := 0; hour < 2*l.Hours; hour++ {
		if screenHours >= 12 && hour%2 == 1 {
			continue
		}
		x := (firstX + l.OneSecondStep()*float64(hour)*time.Hour.Seconds()) * scale
		ax.HourLines = append(ax.HourLines, Line{From: Point{X: x, Y: 0}, To: Point{X: x, Y: bottom}})
		ax.HourLabels = append(ax.HourLabels, Label{
			At:   Point{X: x, Y: 10},
			Text: firstHour.Add(time.Duration(hour) * time.Hour).Format(format),
		})
	}

	nowX := m.TimeToX(g.Now) * scale
	ax.NowLine = Line{From: Point{X: nowX, Y: 0}, To: Point{X: nowX, Y: bottom}}
	return ax
}
