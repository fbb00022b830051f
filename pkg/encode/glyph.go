package encode

import (
	"fmt"
	"math"
	"strings"
)

// Style selects how cells are drawn.
type Style string

const (
	// StyleBlock draws every cell as a solid block; only color varies.
	StyleBlock Style = "block"
	// StyleGradient picks a glyph from a luminance ramp.
	StyleGradient Style = "gradient"
)

// ParseStyle accepts the style names plus "ascii" as an alias for gradient.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "blocks":
		return StyleBlock, nil
	case "gradient", "ascii":
		return StyleGradient, nil
	default:
		return "", fmt.Errorf("invalid style: %q (must be one of: block, gradient)", s)
	}
}

// BlockGlyph is the filled block used by the block style.
const BlockGlyph = '█'

// Built-in gradient ramps, ordered dark to light: the first glyph is drawn
// for the darkest cells.
const (
	// RampClassic is a flat 15-glyph ramp.
	RampClassic = "`\"+1nuL0qpdbo8$"
	// RampDense is a 70-glyph ramp with finer midtone steps.
	RampDense = " .'`^\",:;Il!i><~+_-?][}{1)(|\\/tfjrxnuvczXYUJCLQ0OZmwqpdbkhao*#MW&8%B@$"
)

// Ramps maps ramp preset names to their glyphs.
var Ramps = map[string]string{
	"classic": RampClassic,
	"dense":   RampDense,
}

// DefaultGamma boosts midtones: L' = L^0.55.
const DefaultGamma = 0.55

// ResolveRamp returns the glyphs of a preset name, or s itself when it is
// not a preset.
func ResolveRamp(s string) string {
	if ramp, ok := Ramps[s]; ok {
		return ramp
	}
	return s
}

// GlyphMapper chooses the glyph drawn for a cell color.
type GlyphMapper interface {
	Glyph(c RGB) rune
}

// BlockMapper always returns [BlockGlyph].
type BlockMapper struct{}

// Glyph implements GlyphMapper.
func (BlockMapper) Glyph(RGB) rune { return BlockGlyph }

// GradientMapper indexes a glyph ramp by gamma-corrected luminance.
type GradientMapper struct {
	ramp  []rune
	gamma float64
}

// NewGradientMapper creates a mapper over ramp (dark to light). A gamma of 0
// selects [DefaultGamma].
func NewGradientMapper(ramp string, gamma float64) (*GradientMapper, error) {
	glyphs := []rune(ramp)
	if len(glyphs) < 2 {
		return nil, fmt.Errorf("glyph ramp needs at least 2 glyphs, got %d", len(glyphs))
	}
	if gamma == 0 {
		gamma = DefaultGamma
	}
	return &GradientMapper{ramp: glyphs, gamma: gamma}, nil
}

// Glyph implements GlyphMapper.
func (m *GradientMapper) Glyph(c RGB) rune {
	return m.ramp[m.Index(c.Luminance())]
}

// Index returns the ramp position for a luminance in [0, 255].
func (m *GradientMapper) Index(luminance float64) int {
	l := math.Pow(luminance/255, m.gamma)
	if math.IsNaN(l) || l < 0 {
		l = 0
	} else if l > 1 {
		l = 1
	}
	return int(math.Floor(l * float64(len(m.ramp)-1)))
}

// Ramp returns a copy of the mapper's glyphs.
func (m *GradientMapper) Ramp() []rune {
	return append([]rune(nil), m.ramp...)
}
