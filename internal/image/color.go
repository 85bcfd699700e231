package imagepkg

import (
	"image/color"
	"math"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// ParseColor parses a CSS colour string: hex, rgb(), hsl(), hwb(), named
// colours and "transparent". ok is false for anything else.
func ParseColor(s string) (color.NRGBA, bool) {
	if strings.TrimSpace(s) == "" {
		return color.NRGBA{}, false
	}
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: toByte(c.R), G: toByte(c.G), B: toByte(c.B), A: toByte(c.A)}, true
}

// Visible reports whether s parses to a colour with non-zero alpha.
func Visible(s string) bool {
	c, ok := ParseColor(s)
	return ok && c.A > 0
}

func toByte(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}
