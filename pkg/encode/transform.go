package encode

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/framepen/pkg/frame"
)

// Mode selects the color treatment applied to each cell.
type Mode string

const (
	// ModeColor keeps full color.
	ModeColor Mode = "color"
	// ModeGrayscale replicates luminance across channels.
	ModeGrayscale Mode = "grayscale"
	// ModePureBW thresholds luminance at mid-gray: only black and white remain.
	ModePureBW Mode = "pure-bw"
)

// ParseMode accepts the mode names, with "_" and "-" interchangeable and
// "gray"/"bw" as short forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "color", "colour":
		return ModeColor, nil
	case "grayscale", "greyscale", "gray", "grey":
		return ModeGrayscale, nil
	case "pure-bw", "bw", "binary":
		return ModePureBW, nil
	default:
		return "", fmt.Errorf("invalid color mode: %q (must be one of: color, grayscale, pure-bw)", s)
	}
}

// Apply runs the mode on a single color.
func (m Mode) Apply(c RGB) RGB {
	switch m {
	case ModeGrayscale:
		return c.Gray()
	case ModePureBW:
		return c.Binary()
	default:
		return c
	}
}

// sharpenKernel is the 3×3 edge emphasis kernel: center 5, orthogonal
// neighbors -1.
var sharpenKernel = [9]float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

// TileAverage downsamples f to cols×rows by averaging each tile of source
// pixels. Tile edges are computed in integer arithmetic and the last tile of
// each axis extends to the image edge, so every source pixel is covered by
// exactly one tile. When the source is smaller than the grid along an axis
// the degenerate tiles sample the nearest pixel.
func TileAverage(f frame.Raw, cols, rows int) [][]RGB {
	out := make([][]RGB, rows)
	for j := 0; j < rows; j++ {
		y1, y2 := tileSpan(j, rows, f.Height)
		line := make([]RGB, cols)
		for i := 0; i < cols; i++ {
			x1, x2 := tileSpan(i, cols, f.Width)
			line[i] = averageTile(f, x1, y1, x2, y2)
		}
		out[j] = line
	}
	return out
}

// tileSpan returns the half-open pixel range [lo, hi) covered by tile i of n
// over size pixels. The range is never empty.
func tileSpan(i, n, size int) (int, int) {
	lo := i * size / n
	hi := (i + 1) * size / n
	if i == n-1 {
		hi = size
	}
	if hi <= lo {
		if lo >= size {
			lo = size - 1
		}
		hi = lo + 1
	}
	return lo, hi
}

func averageTile(f frame.Raw, x1, y1, x2, y2 int) RGB {
	var r, g, b, n int
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			pr, pg, pb := f.RGBAt(x, y)
			r += int(pr)
			g += int(pg)
			b += int(pb)
			n++
		}
	}
	// Truncate like an integer cast of the mean.
	return RGB{uint8(r / n), uint8(g / n), uint8(b / n)}
}

// Resample downsamples f to cols×rows with an area-weighted box filter and
// optionally sharpens the result, yielding one representative pixel per cell.
func Resample(f frame.Raw, cols, rows int, sharpen bool) [][]RGB {
	img := imaging.Resize(f.NRGBA(), cols, rows, imaging.Box)
	if sharpen {
		img = imaging.Convolve3x3(img, sharpenKernel, nil)
	}
	return pixels(img)
}

func pixels(img *image.NRGBA) [][]RGB {
	b := img.Bounds()
	out := make([][]RGB, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		line := make([]RGB, b.Dx())
		for x := range line {
			p := row[x*4:]
			line[x] = RGB{p[0], p[1], p[2]}
		}
		out[y] = line
	}
	return out
}
