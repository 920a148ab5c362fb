package robot

import "strings"

// Color is a color class the vision system can look for.
type Color int

const (
	ColorUnrecognized Color = iota
	ColorRed
	ColorBlue
	ColorGreen
)

// ParseColor maps a catalog color marker to a Color. Matching ignores case
// only; anything else, padded markers included, is ColorUnrecognized.
func ParseColor(marker string) Color {
	switch strings.ToLower(marker) {
	case "red":
		return ColorRed
	case "blue":
		return ColorBlue
	case "green":
		return ColorGreen
	default:
		return ColorUnrecognized
	}
}

// Recognized reports whether c is a usable vision color.
func (c Color) Recognized() bool {
	return c != ColorUnrecognized
}

// String returns the controller's name for the color.
func (c Color) String() string {
	switch c {
	case ColorRed:
		return "RED"
	case ColorBlue:
		return "BLUE"
	case ColorGreen:
		return "GREEN"
	default:
		return "UNRECOGNIZED"
	}
}
