package timedtext

import (
	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
)

// Builder drives the registry, coalescer and timeline for one conversion.
type Builder struct {
	timeline Timeline
	reg      *PenRegistry
	co       *Coalescer

	last     int
	frames   int
	kept     int
	finished bool
}

// NewBuilder starts an empty document.
func NewBuilder(tl Timeline, threshold int) *Builder {
	reg := NewPenRegistry()
	return &Builder{
		timeline: tl,
		reg:      reg,
		co:       NewCoalescer(threshold, reg),
		last:     -1,
	}
}

// Add feeds the encoded frame decoded at index. Indexes must be sampled by
// the timeline and strictly increasing.
func (b *Builder) Add(index int, f encode.Frame) error {
	if b.finished {
		return errors.Invariant("frame %d added after the document was finished", index)
	}
	if index <= b.last {
		return errors.Invariant("frame %d arrived after frame %d", index, b.last)
	}
	if !b.timeline.Sampled(index) {
		return errors.Invariant("frame %d is not on the sampling step %d", index, b.timeline.Step())
	}
	b.last = index
	b.frames++
	if b.co.Push(b.timeline.StartMs(index), b.timeline.NominalMs(), f) {
		b.kept++
	}
	return nil
}

// Frames returns the number of frames added.
func (b *Builder) Frames() int { return b.frames }

// Kept returns the number of frames that started a new block.
func (b *Builder) Kept() int { return b.kept }

// PenCount returns the number of registered pens.
func (b *Builder) PenCount() int { return b.reg.Len() }

// BlockCount returns the number of blocks, including a buffered one.
func (b *Builder) BlockCount() int {
	n := len(b.co.Blocks())
	if b.co.Buffered() {
		n++
	}
	return n
}

// Finish flushes the last block and returns the document. The builder
// accepts no frames afterwards.
func (b *Builder) Finish() Document {
	b.co.Flush()
	b.finished = true
	return Document{
		Pens:   b.reg.Pens(),
		Blocks: append([]Block(nil), b.co.Blocks()...),
	}
}
