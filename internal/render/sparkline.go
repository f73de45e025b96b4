package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/mrcode/loopchart/internal/models"
)

// Braille blocks, empty to full in quarter steps
var blocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

// GlucoseValues recovers the plotted glucose values of v in display unit,
// oldest first, keeping at most the last n (all when n <= 0)
func GlucoseValues(v *chart.View, unit string, n int) []float64 {
	values := lo.Map(v.Glucose, func(d chart.Rect, _ int) float64 {
		mgdl := v.Range.ValueAt(d.MidY())
		if unit == models.UnitMmol {
			return models.ToMmol(mgdl)
		}
		return math.Round(mgdl)
	})
	if n > 0 && len(values) > n {
		values = values[len(values)-n:]
	}
	return values
}

// CompactSparkline draws values as two braille rows, one column per value
func CompactSparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := lo.Min(values), lo.Max(values)
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	var topLine, bottomLine bytes.Buffer
	for _, val := range values {
		// Scale to 0-8 sub-blocks, the bottom row fills first
		height := (val - minVal) / rangeVal * 8
		bottom := min(4, int(math.Round(height)))
		top := max(0, int(math.Round(height))-4)
		if bottom == 0 {
			bottom = 1 // visually better than an empty cell
		}
		topLine.WriteRune(blocks[top])
		bottomLine.WriteRune(blocks[bottom])
	}

	return topLine.String() + "\n" + bottomLine.String()
}

// Sparkline draws values as a braille chart of height rows with min/max labels
func Sparkline(values []float64, height int) string {
	if len(values) < 2 || height <= 0 {
		return ""
	}

	// Dynamic scaling with buffer
	buffer := 10.0
	minVal := math.Max(0, lo.Min(values)-buffer)
	maxVal := lo.Max(values) + buffer
	rangeVal := maxVal - minVal
	subBlocksPerLine := 4.0

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = lo.Times(len(values), func(int) rune { return blocks[0] })
	}

	for x, val := range values {
		totalSubBlocks := (val - minVal) / rangeVal * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if totalSubBlocks >= lineEnd {
				rows[lineIdx][x] = blocks[len(blocks)-1]
			} else if totalSubBlocks > lineStart {
				remainder := int(math.Round(totalSubBlocks - lineStart))
				remainder = max(0, min(remainder, len(blocks)-1))
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	fmt.Fprintf(&result, "Max: %.0f\n", maxVal)
	for _, row := range rows {
		result.WriteString(string(row))
		result.WriteString("\n")
	}
	fmt.Fprintf(&result, "Min: %.0f", minVal)
	return result.String()
}
