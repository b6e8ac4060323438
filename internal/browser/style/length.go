package style

import (
	"strconv"
	"strings"
)

// BaseFontSize is the font size in px used for em and rem when nothing else
// is known.
const BaseFontSize = 16.0

// LengthContext carries what a length needs to resolve relative units.
type LengthContext struct {
	// Reference is the dimension percentages resolve against.
	Reference      float64
	FontSize       float64
	RootFontSize   float64
	ViewportWidth  float64
	ViewportHeight float64
}

var unitSuffixes = []string{"%", "px", "rem", "em", "vw", "vh", "vmin", "vmax"}

// ParseLength resolves a CSS length to px. It reports false for "auto",
// empty and unparseable values so callers can tell them apart from 0.
func ParseLength(value string, ctx LengthContext) (float64, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" || value == "normal" {
		return 0, false
	}

	num, unit := splitUnit(value)
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}

	fontSize := ctx.FontSize
	if fontSize == 0 {
		fontSize = BaseFontSize
	}
	rootFontSize := ctx.RootFontSize
	if rootFontSize == 0 {
		rootFontSize = BaseFontSize
	}

	switch unit {
	case "%":
		return ctx.Reference * n / 100, true
	case "px", "":
		return n, true
	case "rem":
		return n * rootFontSize, true
	case "em":
		return n * fontSize, true
	case "vw":
		return ctx.ViewportWidth * n / 100, true
	case "vh":
		return ctx.ViewportHeight * n / 100, true
	case "vmin":
		return min(ctx.ViewportWidth, ctx.ViewportHeight) * n / 100, true
	case "vmax":
		return max(ctx.ViewportWidth, ctx.ViewportHeight) * n / 100, true
	}
	return 0, false
}

// splitUnit separates the numeric part from a known unit suffix. The longest
// matching suffix wins, so "rem" is not read as "em" and "vmin" not as "in".
func splitUnit(value string) (string, string) {
	best := ""
	for _, u := range unitSuffixes {
		if strings.HasSuffix(value, u) && len(u) > len(best) {
			best = u
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(value, best)), best
}

// Pixels formats v as a px length with the shortest exact representation.
func Pixels(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// Percent formats v as a percentage with a fixed number of decimals.
func Percent(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64) + "%"
}

// ParsePercent reads a "NN.N%" value.
func ParsePercent(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	num, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
