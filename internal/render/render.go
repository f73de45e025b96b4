// Package render rasterizes chart views with gg
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/mrcode/loopchart/internal/models"
)

const (
	backgroundColor = "#111827"
	gridColor       = "#374151"
	labelColor      = "#d1d5db"
	basalColor      = "#3b82f6"
	suspendColor    = "#6b7280"
	targetColor     = "#a3e635"
	overrideColor   = "#a855f7"
	bolusColor      = "#60a5fa"
	carbColor       = "#fb923c"
	fpuColor        = "#a16207"
	manualColor     = "#e5e7eb"
	nowColor        = "#f9fafb"
	unknownColor    = "#808080"
)

// predictionColors follow the curve order iob, cob, zt, uam
var predictionColors = [models.NumPredictionKinds]string{"#60a5fa", "#fb923c", "#22d3ee", "#facc15"}

var parseFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

// Renderer draws views using the colors and toggles of its settings
type Renderer struct {
	settings *models.Settings
	font     *truetype.Font
}

// NewRenderer parses the label font once
func NewRenderer(settings *models.Settings) (*Renderer, error) {
	f, err := parseFont()
	if err != nil {
		return nil, fmt.Errorf("parsing label font: %w", err)
	}
	return &Renderer{settings: settings.Clone(), font: f}, nil
}

// UpdateSettings swaps the settings used for the next render
func (r *Renderer) UpdateSettings(settings *models.Settings) {
	r.settings = settings.Clone()
}

// loadFont sets a face of the given size on dc
func (r *Renderer) loadFont(dc *gg.Context, size float64) {
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: size}))
}

// Render draws v onto a new image sized to its drawable width
func (r *Renderer) Render(v *chart.View) image.Image {
	width := max(1, int(math.Ceil(v.Width)))
	height := max(1, int(math.Ceil(v.Layout.Height)))

	dc := gg.NewContext(width, height)
	dc.SetHexColor(backgroundColor)
	dc.Clear()

	r.drawAxes(dc, v)
	r.drawBands(dc, v)
	r.drawBasal(dc, v)
	r.drawGlucose(dc, v)
	r.drawTreatments(dc, v)
	r.drawAnnouncements(dc, v)

	return dc.Image()
}

// EncodePNG renders v and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, v *chart.View) error {
	if err := png.Encode(w, r.Render(v)); err != nil {
		return fmt.Errorf("encoding chart: %w", err)
	}
	return nil
}

func strokeLine(dc *gg.Context, l chart.Line) {
	dc.DrawLine(l.From.X, l.From.Y, l.To.X, l.To.Y)
	dc.Stroke()
}

func (r *Renderer) drawAxes(dc *gg.Context, v *chart.View) {
	ax := v.Axes
	dc.SetLineWidth(1)

	if r.settings.DisplayYGridLines {
		dc.SetHexColor(gridColor)
		dc.SetDash(2, 3)
		for _, l := range ax.YLines {
			l.To.X = v.Width
			strokeLine(dc, l)
		}
	}
	if r.settings.DisplayXGridLines {
		dc.SetHexColor(gridColor)
		dc.SetDash(2, 3)
		for _, l := range ax.HourLines {
			strokeLine(dc, l)
		}
	}

	dc.SetDash(5, 2)
	if ax.HighLine != nil {
		dc.SetHexColor(r.settings.ChartColorHigh)
		l := *ax.HighLine
		l.To.X = v.Width
		strokeLine(dc, l)
	}
	if ax.LowLine != nil {
		dc.SetHexColor(r.settings.ChartColorLow)
		l := *ax.LowLine
		l.To.X = v.Width
		strokeLine(dc, l)
	}

	dc.SetHexColor(nowColor)
	dc.SetDash(4, 4)
	strokeLine(dc, ax.NowLine)
	dc.SetDash()

	r.loadFont(dc, 10)
	dc.SetHexColor(labelColor)
	for _, l := range ax.YLabels {
		dc.DrawStringAnchored(l.Text, l.At.X, l.At.Y, 0.5, 0.5)
	}
	for _, l := range ax.HourLabels {
		dc.DrawStringAnchored(l.Text, l.At.X, l.At.Y, 0.5, 0.5)
	}
}

func fillRects(dc *gg.Context, rects []chart.Rect) {
	for _, b := range rects {
		if b.W <= 0 || b.H <= 0 {
			continue
		}
		dc.DrawRectangle(b.X, b.Y, b.W, b.H)
		dc.Fill()
	}
}

func (r *Renderer) drawBands(dc *gg.Context, v *chart.View) {
	setAlpha(dc, targetColor, 0.35)
	fillRects(dc, v.TempTargets)
	setAlpha(dc, overrideColor, 0.5)
	fillRects(dc, v.Overrides)
	setAlpha(dc, suspendColor, 0.4)
	fillRects(dc, v.Suspensions)
}

func tracePath(dc *gg.Context, p chart.Path) {
	dc.NewSubPath()
	for i, pt := range p {
		if i == 0 {
			dc.MoveTo(pt.X, pt.Y)
			continue
		}
		dc.LineTo(pt.X, pt.Y)
	}
}

func (r *Renderer) drawBasal(dc *gg.Context, v *chart.View) {
	if len(v.TempBasal) > 1 {
		tracePath(dc, v.TempBasal)
		dc.ClosePath()
		setAlpha(dc, basalColor, 0.4)
		dc.FillPreserve()
		dc.SetHexColor(basalColor)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
	if len(v.RegularBasal) > 1 {
		tracePath(dc, v.RegularBasal)
		setAlpha(dc, basalColor, 0.8)
		dc.SetDash(3, 3)
		dc.Stroke()
		dc.SetDash()
	}
}

func fillCircle(dc *gg.Context, b chart.Rect) {
	if b.W <= 0 {
		return
	}
	dc.DrawCircle(b.MidX(), b.MidY(), b.W/2)
	dc.Fill()
}

func (r *Renderer) drawGlucose(dc *gg.Context, v *chart.View) {
	for kind, dots := range v.Predictions {
		setAlpha(dc, predictionColors[kind], 0.7)
		for _, d := range dots {
			fillCircle(dc, d)
		}
	}

	if r.settings.Smooth {
		setAlpha(dc, labelColor, 0.4)
		for _, d := range v.Unsmoothed {
			fillCircle(dc, d)
		}
	}

	for _, d := range v.Glucose {
		dc.SetHexColor(r.glucoseColor(v.Range.ValueAt(d.MidY())))
		fillCircle(dc, d)
	}

	for _, d := range v.ManualGlucose {
		dc.SetHexColor(manualColor)
		fillCircle(dc, d)
	}
	for _, d := range v.ManualGlucoseCenter {
		dc.SetHexColor(r.glucoseColor(v.Range.ValueAt(d.MidY())))
		fillCircle(dc, d)
	}
}

func (r *Renderer) drawTreatments(dc *gg.Context, v *chart.View) {
	r.loadFont(dc, 9)

	for _, b := range v.Boluses {
		if b.Rect.W <= 0 {
			continue
		}
		dc.SetHexColor(bolusColor)
		if b.SMB {
			drawTriangle(dc, b.Rect)
		} else {
			fillCircle(dc, b.Rect)
		}
		dc.SetHexColor(labelColor)
		dc.DrawStringAnchored(chart.FormatBolus(b.Value), b.Rect.MidX(), b.Rect.Y-6, 0.5, 0.5)
	}

	for _, b := range v.ManualBoluses {
		dc.SetHexColor(bolusColor)
		drawDiamond(dc, b.Rect)
		dc.SetHexColor(labelColor)
		dc.DrawStringAnchored(chart.FormatBolus(b.Value), b.Rect.MidX(), b.Rect.Y-6, 0.5, 0.5)
	}

	for _, c := range v.Carbs {
		dc.SetHexColor(carbColor)
		fillCircle(dc, c.Rect)
		dc.SetHexColor(labelColor)
		dc.DrawStringAnchored(chart.FormatCarbs(c.Value), c.Rect.MidX(), c.Rect.MaxY()+6, 0.5, 0.5)
	}
	for _, c := range v.FPU {
		dc.SetHexColor(fpuColor)
		fillCircle(dc, c.Rect)
	}
}

func (r *Renderer) drawAnnouncements(dc *gg.Context, v *chart.View) {
	r.loadFont(dc, 11)
	for _, a := range v.Announcements {
		setAlpha(dc, labelColor, 0.25)
		fillCircle(dc, a.Rect)
		dc.SetHexColor(labelColor)
		dc.DrawStringAnchored(a.Label, a.Rect.MidX(), a.Rect.MidY(), 0.5, 0.5)
	}
}

// drawTriangle draws an upward triangle inside b
func drawTriangle(dc *gg.Context, b chart.Rect) {
	dc.NewSubPath()
	dc.MoveTo(b.MidX(), b.Y)
	dc.LineTo(b.MaxX(), b.MaxY())
	dc.LineTo(b.X, b.MaxY())
	dc.ClosePath()
	dc.Fill()
}

func drawDiamond(dc *gg.Context, b chart.Rect) {
	if b.W <= 0 || b.H <= 0 {
		return
	}
	dc.NewSubPath()
	dc.MoveTo(b.MidX(), b.Y)
	dc.LineTo(b.MaxX(), b.MidY())
	dc.LineTo(b.MidX(), b.MaxY())
	dc.LineTo(b.X, b.MidY())
	dc.ClosePath()
	dc.Fill()
}
