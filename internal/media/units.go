package media

import "math"

// Length units. Sizes are given in centimetres and stored as EMU.
const (
	EMUPerCM      = 360000
	EMUPerInch    = 914400
	PixelsPerInch = 96

	// DefaultMaxWidth is half of an A4 page width (21 cm).
	DefaultMaxWidth int64 = 21 * EMUPerCM / 2
)

// StandardSize is the fixed placeholder size used when callers ask for a
// uniform image slot instead of the native pixel size.
var StandardSize = Size{WidthCM: 6.09, HeightCM: 5.90}

// Size is an explicit on-page image size in centimetres.
type Size struct {
	WidthCM  float64
	HeightCM float64
}

// EMU converts the size to EMU.
func (s Size) EMU() (width, height int64) {
	return CMToEMU(s.WidthCM), CMToEMU(s.HeightCM)
}

// CMToEMU converts centimetres to EMU.
func CMToEMU(cm float64) int64 {
	return int64(math.Round(cm * EMUPerCM))
}

// PixelsToEMU converts a pixel count to EMU assuming 96 DPI.
func PixelsToEMU(px int) int64 {
	return int64(px) * EMUPerInch / PixelsPerInch
}

// capWidth scales width and height down proportionally so that width does
// not exceed maxWidth. Height is never capped on its own.
func capWidth(width, height, maxWidth int64) (int64, int64) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	ratio := float64(maxWidth) / float64(width)
	return maxWidth, int64(math.Round(float64(height) * ratio))
}
