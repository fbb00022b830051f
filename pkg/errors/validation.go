package errors

import (
	"math"
	"strings"
	"unicode"
)

// MaxLevels is the largest supported color quantization level count. With
// 256 levels quantization is the identity.
const MaxLevels = 256

// ValidateColumns checks the target character column count.
func ValidateColumns(columns int) error {
	if columns < 1 {
		return New(ErrCodeInvalidConfig, "columns must be at least 1, got %d", columns)
	}
	return nil
}

// ValidateLevels checks the color quantization level count.
func ValidateLevels(levels int) error {
	if levels < 1 || levels > MaxLevels {
		return New(ErrCodeInvalidConfig, "color levels must be between 1 and %d, got %d", MaxLevels, levels)
	}
	return nil
}

// ValidateThreshold checks the duplicate-detection threshold. Zero disables
// frame coalescing.
func ValidateThreshold(threshold int) error {
	if threshold < 0 {
		return New(ErrCodeInvalidConfig, "duplicate threshold must be >= 0, got %d", threshold)
	}
	return nil
}

// ValidateFPS checks a frame rate. Zero is accepted by callers that treat it
// as "unset"; negative, NaN and infinite values never are.
func ValidateFPS(name string, fps float64) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps < 0 {
		return New(ErrCodeInvalidConfig, "%s must be a finite non-negative number, got %v", name, fps)
	}
	return nil
}

// ValidateFontAspect checks the character cell aspect correction. Typical
// values are 0.43 to 0.6.
func ValidateFontAspect(aspect float64) error {
	if math.IsNaN(aspect) || aspect <= 0 || aspect > 4 {
		return New(ErrCodeInvalidConfig, "font aspect must be in (0, 4], got %v", aspect)
	}
	return nil
}

// ValidateGamma checks the luminance gamma exponent of the gradient style.
func ValidateGamma(gamma float64) error {
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) || gamma <= 0 {
		return New(ErrCodeInvalidConfig, "gamma must be a positive number, got %v", gamma)
	}
	return nil
}

// ValidatePositive checks a tuning knob such as the worker count or the
// batch size.
func ValidatePositive(name string, v int) error {
	if v < 1 {
		return New(ErrCodeInvalidConfig, "%s must be at least 1, got %d", name, v)
	}
	return nil
}

// ValidateRamp checks a gradient glyph ramp. It needs at least two glyphs
// and none of them may be a control character or a line break.
func ValidateRamp(ramp string) error {
	if len([]rune(ramp)) < 2 {
		return New(ErrCodeInvalidConfig, "glyph ramp must contain at least 2 glyphs")
	}
	for _, r := range ramp {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "glyph ramp contains control character %q", r)
		}
	}
	return nil
}

// ValidateOutputPath validates an output file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - Cannot name a directory (trailing separator)
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output path contains invalid characters")
		}
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidPath, "output path must name a file, not a directory")
	}
	return nil
}
