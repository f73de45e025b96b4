package render

import (
	"fmt"

	"github.com/fogleman/gg"

	"github.com/mrcode/loopchart/internal/models"
)

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

func setAlpha(dc *gg.Context, hex string, alpha float64) {
	r, g, b := parseHexColor(hex)
	dc.SetRGBA255(int(r), int(g), int(b), int(alpha*255))
}

// glucoseColor returns the configured color for the status of mgdl
func (r *Renderer) glucoseColor(mgdl float64) string {
	var hex string
	switch r.settings.GetGlucoseStatus(mgdl) {
	case models.StatusUrgentLow, models.StatusUrgentHigh:
		hex = r.settings.ChartColorUrgent
	case models.StatusLow:
		hex = r.settings.ChartColorLow
	case models.StatusHigh:
		hex = r.settings.ChartColorHigh
	default:
		hex = r.settings.ChartColorInRange
	}
	if hex == "" {
		return unknownColor
	}
	return hex
}
