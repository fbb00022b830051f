package encode

// Quantize maps an 8-bit channel value onto one of levels discrete values.
//
// The 0–255 range is split into levels equal-width buckets and each bucket
// is represented by an evenly spaced endpoint, so 0 always maps to 0 and 255
// to 255. levels == 1 saturates every channel to 255. Values of levels below
// 1 are treated as 1; validation happens before encoding starts.
func Quantize(value uint8, levels int) uint8 {
	if levels <= 1 {
		return 255
	}
	if levels > 256 {
		levels = 256
	}
	bucket := int(value) * levels / 256
	span := levels - 1
	return uint8((bucket*255 + span/2) / span)
}

// QuantizeRGB quantizes each channel independently.
func QuantizeRGB(c RGB, levels int) RGB {
	return RGB{
		R: Quantize(c.R, levels),
		G: Quantize(c.G, levels),
		B: Quantize(c.B, levels),
	}
}
