package timedtext

import (
	"math"

	"github.com/matzehuels/framepen/pkg/encode"
)

type coalesceState int

const (
	stateEmpty coalesceState = iota
	stateBuffered
)

// Coalescer merges runs of near-identical frames into single blocks.
//
// Each frame is compared with the last kept frame by [encode.Similarity].
// When the threshold is positive and the score is below threshold*100 the
// frame is a duplicate: the buffered block grows by the frame's duration and
// the kept frame stays the same. Otherwise the buffered block is flushed and
// the new frame is buffered and kept. A threshold of 0 keeps every frame.
//
// A flushed block never runs past the start of the block that replaces it.
// Durations are rounded while start times are truncated, so at rates such as
// 29.97 fps the nominal end can overshoot the next start by a millisecond
// per merged frame; the overshoot is cut off at flush time.
//
// Pens are registered only when a frame is kept, so colors that appear
// solely in duplicates never reach the document head.
type Coalescer struct {
	limit int
	reg   *PenRegistry

	state  coalesceState
	kept   encode.Grid
	buffer Block
	blocks []Block
}

// NewCoalescer creates a coalescer that registers pens in reg.
func NewCoalescer(threshold int, reg *PenRegistry) *Coalescer {
	limit := 0
	switch {
	case threshold <= 0:
	case threshold > math.MaxInt/100:
		limit = math.MaxInt
	default:
		limit = threshold * 100
	}
	return &Coalescer{limit: limit, reg: reg}
}

// Push feeds the next sampled frame and reports whether it was kept.
func (c *Coalescer) Push(startMs, durationMs int64, f encode.Frame) bool {
	if c.state == stateBuffered && c.limit > 0 && encode.Similarity(c.kept, f.Grid) < c.limit {
		c.buffer.DurationMs += durationMs
		return false
	}
	if c.state == stateBuffered {
		if gap := startMs - c.buffer.StartMs; gap > 0 && c.buffer.DurationMs > gap {
			c.buffer.DurationMs = gap
		}
	}
	c.Flush()
	c.buffer = Block{
		StartMs:    startMs,
		DurationMs: durationMs,
		Body:       RenderBody(f.Rows, c.reg),
	}
	c.kept = f.Grid
	c.state = stateBuffered
	return true
}

// Flush emits the buffered block, if any.
func (c *Coalescer) Flush() {
	if c.state != stateBuffered {
		return
	}
	c.blocks = append(c.blocks, c.buffer)
	c.buffer = Block{}
	c.state = stateEmpty
}

// Buffered reports whether a block is waiting to be flushed.
func (c *Coalescer) Buffered() bool { return c.state == stateBuffered }

// Blocks returns the flushed blocks in order.
func (c *Coalescer) Blocks() []Block { return c.blocks }
