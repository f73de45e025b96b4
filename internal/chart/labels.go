package chart

import (
	"math"
	"strconv"

	"github.com/mrcode/loopchart/internal/models"
)

func formatDecimals(v float64, decimals int) string {
	p := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(v*p)/p, 'f', -1, 64)
}

// FormatBolus formats insulin units with up to two decimals
func FormatBolus(units float64) string { return formatDecimals(units, 2) }

// FormatCarbs formats grams without decimals
func FormatCarbs(grams float64) string { return formatDecimals(grams, 0) }

// FormatFPU formats fat/protein equivalents with up to one decimal
func FormatFPU(grams float64) string { return formatDecimals(grams, 1) }

// FormatGlucose formats a mg/dL value in the display unit
func FormatGlucose(mgdl float64, unit string) string {
	if unit == models.UnitMmol {
		return formatDecimals(models.ToMmol(mgdl), 1)
	}
	return formatDecimals(mgdl, 1)
}
