package encode

import (
	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
)

// Config holds the immutable per-run settings of an [Encoder].
type Config struct {
	// Columns is the grid width in characters.
	Columns int
	// FontAspect corrects for character cells being taller than wide.
	FontAspect float64
	// Style selects block or gradient glyphs.
	Style Style
	// Mode selects the color treatment.
	Mode Mode
	// Levels is the number of quantization levels per channel.
	Levels int
	// Ramp is the gradient glyph ramp, dark to light. Preset names are
	// resolved with [ResolveRamp]. Ignored by the block style.
	Ramp string
	// Gamma is the gradient luminance exponent. 0 selects [DefaultGamma].
	Gamma float64
	// Sharpen applies the 3×3 sharpening kernel after resizing. It has no
	// effect on the block style, which averages whole tiles.
	Sharpen bool
	// MergeGlyphs lets a span cover cells with differing glyphs as long as
	// their color matches. By default a span breaks on either change.
	MergeGlyphs bool
}

// Encoder transforms frames into grids and encoded rows. It is safe for
// concurrent use.
type Encoder struct {
	cfg    Config
	glyphs GlyphMapper
}

// Frame is the encoded form of one source frame.
type Frame struct {
	Grid Grid
	Rows []Row
}

// NewEncoder validates cfg and builds an encoder.
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := errors.ValidateColumns(cfg.Columns); err != nil {
		return nil, err
	}
	if err := errors.ValidateLevels(cfg.Levels); err != nil {
		return nil, err
	}
	if err := errors.ValidateFontAspect(cfg.FontAspect); err != nil {
		return nil, err
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeColor
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid color mode")
	}
	cfg.Mode = mode

	e := &Encoder{cfg: cfg}
	switch cfg.Style {
	case StyleBlock:
		e.glyphs = BlockMapper{}
	case StyleGradient, "":
		e.cfg.Style = StyleGradient
		ramp := ResolveRamp(cfg.Ramp)
		if cfg.Ramp == "" {
			ramp = RampDense
		}
		m, err := NewGradientMapper(ramp, cfg.Gamma)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid glyph ramp")
		}
		e.glyphs = m
	default:
		return nil, errors.New(errors.ErrCodeInvalidStyle, "unknown style %q", cfg.Style)
	}
	return e, nil
}

// Config returns the encoder's effective configuration.
func (e *Encoder) Config() Config { return e.cfg }

// Rows returns the grid height for a source of the given size.
func (e *Encoder) Rows(srcWidth, srcHeight int) int {
	return GridRows(e.cfg.Columns, srcWidth, srcHeight, e.cfg.FontAspect)
}

// Transform downsamples f into a grid of glyphs and quantized colors.
func (e *Encoder) Transform(f frame.Raw) (Grid, error) {
	if err := f.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodingInvariant, err, "invalid frame")
	}
	cols := e.cfg.Columns
	rows := e.Rows(f.Width, f.Height)

	var samples [][]RGB
	if e.cfg.Style == StyleBlock {
		samples = TileAverage(f, cols, rows)
	} else {
		samples = Resample(f, cols, rows, e.cfg.Sharpen)
	}

	grid := make(Grid, len(samples))
	for y, line := range samples {
		cells := make([]Cell, len(line))
		for x, c := range line {
			s := e.cfg.Mode.Apply(c)
			cells[x] = Cell{
				Glyph:  e.glyphs.Glyph(s),
				Color:  QuantizeRGB(s, e.cfg.Levels),
				Sample: s,
			}
		}
		grid[y] = cells
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if grid.Columns() != cols || grid.Rows() != rows {
		return nil, errors.Invariant("grid is %dx%d, want %dx%d", grid.Columns(), grid.Rows(), cols, rows)
	}
	return grid, nil
}

// Encode transforms f and run-length encodes every row.
func (e *Encoder) Encode(f frame.Raw) (Frame, error) {
	grid, err := e.Transform(f)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Grid: grid, Rows: EncodeGrid(grid, e.cfg.MergeGlyphs)}, nil
}
