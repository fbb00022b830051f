// Package frame defines the decoded video frames consumed by the encoder and
// the sequential sources that produce them.
//
// A [Source] is a single exclusively-owned cursor: frames are pulled in
// presentation order with [Source.Next] until it returns [io.EOF]. Concrete
// sources live in subpackages ([github.com/matzehuels/framepen/pkg/frame/ffmpeg]
// for video files, [github.com/matzehuels/framepen/pkg/frame/imageseq] for
// directories of still images); [SliceSource] serves tests and callers that
// already hold decoded pixels.
package frame

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
)

// Order is the byte order of the three channels of a packed pixel.
type Order int

const (
	// RGB stores red first. This is what ffmpeg's rgb24 pixel format produces.
	RGB Order = iota
	// BGR stores blue first, the OpenCV convention.
	BGR
)

// String returns the lowercase channel order name.
func (o Order) String() string {
	if o == BGR {
		return "bgr"
	}
	return "rgb"
}

// Raw is an immutable rectangular buffer of 3-channel 8-bit pixels.
//
// Pix holds Width*Height*3 bytes, row-major with no padding. Raw implements
// [image.Image] so it can be handed directly to image filters.
type Raw struct {
	Width  int
	Height int
	Order  Order
	Pix    []byte
}

// NewRaw allocates a zeroed frame of the given size.
func NewRaw(width, height int, order Order) Raw {
	return Raw{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]byte, width*height*3),
	}
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (r Raw) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("frame has empty dimensions %dx%d", r.Width, r.Height)
	}
	if want := r.Width * r.Height * 3; len(r.Pix) != want {
		return fmt.Errorf("frame buffer holds %d bytes, want %d for %dx%d", len(r.Pix), want, r.Width, r.Height)
	}
	return nil
}

// RGBAt returns the pixel at (x, y) in red, green, blue order regardless of
// the storage order.
func (r Raw) RGBAt(x, y int) (uint8, uint8, uint8) {
	i := (y*r.Width + x) * 3
	if r.Order == BGR {
		return r.Pix[i+2], r.Pix[i+1], r.Pix[i]
	}
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// Set writes the pixel at (x, y) given in red, green, blue order.
func (r Raw) Set(x, y int, red, green, blue uint8) {
	i := (y*r.Width + x) * 3
	if r.Order == BGR {
		red, blue = blue, red
	}
	r.Pix[i], r.Pix[i+1], r.Pix[i+2] = red, green, blue
}

// ColorModel implements image.Image.
func (r Raw) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (r Raw) Bounds() image.Rectangle { return image.Rect(0, 0, r.Width, r.Height) }

// At implements image.Image.
func (r Raw) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.NRGBA{}
	}
	red, green, blue := r.RGBAt(x, y)
	return color.NRGBA{R: red, G: green, B: blue, A: 0xff}
}

// NRGBA copies the frame into an opaque *image.NRGBA, the fast path for most
// image filters.
func (r Raw) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(r.Bounds())
	for y := 0; y < r.Height; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < r.Width; x++ {
			red, green, blue := r.RGBAt(x, y)
			p := row[x*4 : x*4+4]
			p[0], p[1], p[2], p[3] = red, green, blue, 0xff
		}
	}
	return out
}

// FromImage packs any image into an RGB frame.
func FromImage(img image.Image) Raw {
	b := img.Bounds()
	out := NewRaw(b.Dx(), b.Dy(), RGB)
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < out.Height; y++ {
			row := nrgba.Pix[(y+b.Min.Y-nrgba.Rect.Min.Y)*nrgba.Stride:]
			for x := 0; x < out.Width; x++ {
				p := row[(x+b.Min.X-nrgba.Rect.Min.X)*4:]
				out.Set(x, y, p[0], p[1], p[2])
			}
		}
		return out
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			out.Set(x, y, c.R, c.G, c.B)
		}
	}
	return out
}

// Info describes a source. It is queried once before processing starts.
type Info struct {
	// FPS is the nominal source frame rate.
	FPS float64
	// TotalFrames is the expected frame count. Containers often only
	// estimate it; zero means unknown.
	TotalFrames int
	// Width and Height are the frame dimensions, zero when unknown.
	Width  int
	Height int
}

// Source yields decoded frames in presentation order.
//
// Next returns io.EOF once the stream is exhausted. A Source is not safe for
// concurrent use.
type Source interface {
	Info() Info
	Next(ctx context.Context) (Raw, error)
	Close() error
}

// SliceSource replays an in-memory list of frames.
type SliceSource struct {
	info   Info
	frames []Raw
	pos    int
}

// NewSliceSource creates a source over frames at the given nominal rate.
func NewSliceSource(fps float64, frames ...Raw) *SliceSource {
	info := Info{FPS: fps, TotalFrames: len(frames)}
	if len(frames) > 0 {
		info.Width, info.Height = frames[0].Width, frames[0].Height
	}
	return &SliceSource{info: info, frames: frames}
}

// Info implements Source.
func (s *SliceSource) Info() Info { return s.info }

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Raw, error) {
	if err := ctx.Err(); err != nil {
		return Raw{}, err
	}
	if s.pos >= len(s.frames) {
		return Raw{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Close implements Source.
func (s *SliceSource) Close() error { return nil }

var _ Source = (*SliceSource)(nil)
