// Package timedtext assembles encoded frames into a YouTube timed-text
// (srv3, format 3) document.
//
// The types here are the sequential half of a conversion. A [Builder]
// receives encoded frames strictly in source order, assigns pen ids through
// a [PenRegistry], merges near-identical consecutive frames in a [Coalescer]
// and times them with a [Timeline]. The finished [Document] is then rendered
// by [Serialize]. None of these types are safe for concurrent mutation.
package timedtext

import (
	"regexp"
	"strconv"

	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
)

// Pen is a registered foreground color.
type Pen struct {
	ID    int    `json:"id"`
	Color string `json:"color"`
}

// Block is one timed paragraph of the document. Body holds the encoded rows,
// each terminated by a line break.
type Block struct {
	StartMs    int64  `json:"start_ms"`
	DurationMs int64  `json:"duration_ms"`
	Body       string `json:"body"`
}

// EndMs returns the end of the block's display interval.
func (b Block) EndMs() int64 { return b.StartMs + b.DurationMs }

// Document is a complete timed-text track.
type Document struct {
	Pens   []Pen   `json:"pens"`
	Blocks []Block `json:"blocks"`
}

// DurationMs returns the summed duration of all blocks.
func (d Document) DurationMs() int64 {
	var total int64
	for _, b := range d.Blocks {
		total += b.DurationMs
	}
	return total
}

var penRef = regexp.MustCompile(`<s p="(\d+)">`)

// Validate checks a document read from outside the pipeline: pen ids must be
// dense from 0 in order with unique #RRGGBB colors, blocks must be
// chronological with positive durations, and bodies may only reference
// registered pens.
func (d Document) Validate() error {
	seen := make(map[string]int, len(d.Pens))
	for i, p := range d.Pens {
		if p.ID != i {
			return errors.New(errors.ErrCodeInvalidDocument, "pen %d has id %d, want %d", i, p.ID, i)
		}
		if _, err := encode.ParseHex(p.Color); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidDocument, err, "pen %d", p.ID)
		}
		if prev, ok := seen[p.Color]; ok {
			return errors.New(errors.ErrCodeInvalidDocument, "pens %d and %d share color %s", prev, p.ID, p.Color)
		}
		seen[p.Color] = p.ID
	}

	var end int64
	for i, b := range d.Blocks {
		if b.StartMs < end {
			return errors.New(errors.ErrCodeInvalidDocument, "block %d starts at %d ms, before the previous block ends at %d ms", i, b.StartMs, end)
		}
		if b.DurationMs <= 0 {
			return errors.New(errors.ErrCodeInvalidDocument, "block %d has non-positive duration %d", i, b.DurationMs)
		}
		end = b.EndMs()
		for _, m := range penRef.FindAllStringSubmatch(b.Body, -1) {
			id, err := strconv.Atoi(m[1])
			if err != nil || id >= len(d.Pens) {
				return errors.New(errors.ErrCodeInvalidDocument, "block %d references unknown pen %s", i, m[1])
			}
		}
	}
	return nil
}
