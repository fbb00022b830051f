// Package encode turns a single decoded frame into a quantized character grid
// and the color-tagged glyph runs of each row.
//
// Everything here is pure: an [Encoder] holds only immutable configuration,
// so many goroutines may encode independent frames at once. Assigning pen
// ids, deciding which frames to keep and timing them is sequential work that
// lives in [github.com/matzehuels/framepen/pkg/timedtext].
//
// The per-frame flow is:
//
//	frame.Raw
//	   ↓ Transform   (tile average or resize + sharpen, color mode)
//	Grid of Cells    (glyph, quantized color, unquantized sample)
//	   ↓ EncodeRow   (run-length by color, escape)
//	[]Row of Runs
package encode

import (
	"fmt"
	"math"
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex formats the color as #RRGGBB with uppercase digits.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Luminance returns the perceptual luminance 0.299r + 0.587g + 0.114b in
// [0, 255].
func (c RGB) Luminance() float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// Gray replicates the rounded luminance across all channels.
func (c RGB) Gray() RGB {
	l := clampByte(math.Round(c.Luminance()))
	return RGB{l, l, l}
}

// Binary thresholds the luminance at mid-gray, producing black or white.
func (c RGB) Binary() RGB {
	if c.Luminance() < 128 {
		return RGB{}
	}
	return RGB{255, 255, 255}
}

// Distance is the sum of channel-wise absolute differences.
func (c RGB) Distance(o RGB) int {
	return absDiff(c.R, o.R) + absDiff(c.G, o.G) + absDiff(c.B, o.B)
}

// ParseHex parses a #RRGGBB color.
func ParseHex(s string) (RGB, error) {
	var c RGB
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid color %q: want #RRGGBB", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
