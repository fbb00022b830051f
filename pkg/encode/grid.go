package encode

import (
	"math"

	"github.com/matzehuels/framepen/pkg/errors"
)

// Cell is one character position of a grid.
type Cell struct {
	// Glyph is the character drawn in the cell.
	Glyph rune
	// Color is the quantized foreground color.
	Color RGB
	// Sample is the cell color after the color mode but before
	// quantization. Frame similarity is measured on samples.
	Sample RGB
}

// Grid is a row-major matrix of cells. Every row has the same length.
type Grid [][]Cell

// Columns returns the row length.
func (g Grid) Columns() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Validate checks that every row has the same length.
func (g Grid) Validate() error {
	cols := g.Columns()
	for i, row := range g {
		if len(row) != cols {
			return errors.Invariant("grid row %d has %d cells, want %d", i, len(row), cols)
		}
	}
	return nil
}

// MidRow returns the index of the row used as the similarity probe.
func (g Grid) MidRow() int { return len(g) / 2 }

// Similarity scores how different next is from prev by summing channel-wise
// absolute differences between the samples of the middle row. Lower is more
// similar. Grids of different shapes compare as maximally different.
func Similarity(prev, next Grid) int {
	mid := next.MidRow()
	if len(next) == 0 || mid >= len(prev) || prev.Columns() != next.Columns() {
		return math.MaxInt
	}
	score := 0
	for i, cell := range next[mid] {
		score += cell.Sample.Distance(prev[mid][i].Sample)
	}
	return score
}

// GridRows computes the character row count for a source frame:
// round(columns * srcHeight/srcWidth * fontAspect), at least 1.
func GridRows(columns, srcWidth, srcHeight int, fontAspect float64) int {
	if srcWidth <= 0 || srcHeight <= 0 || columns <= 0 {
		return 0
	}
	rows := int(math.Round(float64(columns) * float64(srcHeight) / float64(srcWidth) * fontAspect))
	if rows < 1 {
		rows = 1
	}
	return rows
}
