// Package pipeline provides the core conversion pipeline for framepen.
//
// This package implements the complete decode → encode → assemble pipeline
// used by every command. By centralizing this logic, the CLI and the
// progress server see the same validation, defaults and caching behavior.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Decode: Read frames in order from a [frame.Source] (ffmpeg or an
//     image directory), skipping frames that fall between sampling steps
//  2. Encode: Turn each kept frame into a colored glyph grid and span rows.
//     Frames are encoded in bounded batches by a worker pool
//  3. Assemble: Register pens, merge near-duplicate frames and lay the
//     result out on the timeline as a [timedtext.Document]
//
// Encoding is the only parallel stage. Results are re-ordered by frame index
// before assembly, so the output never depends on worker scheduling.
//
// # Usage
//
// Create a Runner and convert a file:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.DefaultOptions()
//	opts.Columns = 80
//	result, err := runner.ConvertFile(ctx, "clip.mp4", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ytt := result.Artifacts["ytt"]
//
// Or convert any frame source directly:
//
//	doc, stats, err := pipeline.Convert(ctx, src, opts)
//
// [frame.Source]: github.com/matzehuels/framepen/pkg/frame.Source
// [timedtext.Document]: github.com/matzehuels/framepen/pkg/timedtext.Document
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/framepen/pkg/cache"
	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Progress Server
// =============================================================================

const (
	// DefaultColumns is the default character grid width.
	DefaultColumns = 50

	// DefaultTargetFPS is the default output frame rate.
	DefaultTargetFPS = 10.0

	// DefaultThreshold is the default duplicate-detection threshold.
	DefaultThreshold = 5

	// DefaultLevels is the default number of quantization levels per channel.
	DefaultLevels = 16

	// DefaultFontAspect corrects for character cells being taller than wide.
	DefaultFontAspect = 0.43

	// DefaultWorkers is the default number of concurrent frame encoders.
	DefaultWorkers = 4

	// DefaultBatchSize is the number of decoded frames read per batch.
	DefaultBatchSize = 10

	// DefaultImageFPS is the frame rate assumed for image directories.
	DefaultImageFPS = 10.0

	// DefaultRamp names the default gradient glyph ramp.
	DefaultRamp = "dense"
)

// DefaultStyle is the default glyph style.
const DefaultStyle = encode.StyleGradient

// DefaultMode is the default color mode.
const DefaultMode = encode.ModeColor

// Format constants for output artifacts.
const (
	FormatYTT  = "ytt"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatYTT:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a conversion.
//
// TargetFPS and Threshold treat zero as meaningful (source frame rate and
// merging disabled), so their defaults are not filled in by
// ValidateAndSetDefaults. Start from [DefaultOptions] to get them.
type Options struct {
	// Encode options
	Columns     int     `json:"columns,omitempty"`
	Levels      int     `json:"levels,omitempty"`
	Style       string  `json:"style,omitempty"`
	Mode        string  `json:"mode,omitempty"`
	Ramp        string  `json:"ramp,omitempty"`
	Gamma       float64 `json:"gamma,omitempty"`
	FontAspect  float64 `json:"font_aspect,omitempty"`
	Sharpen     bool    `json:"sharpen,omitempty"`
	MergeGlyphs bool    `json:"merge_glyphs,omitempty"`

	// Timeline options
	TargetFPS float64 `json:"target_fps"`
	Threshold int     `json:"threshold"`
	ImageFPS  float64 `json:"image_fps,omitempty"` // frame rate of image directories

	// Execution options
	Workers   int      `json:"workers,omitempty"`
	BatchSize int      `json:"batch_size,omitempty"`
	Formats   []string `json:"formats,omitempty"`
	Refresh   bool     `json:"refresh,omitempty"`
	FFmpeg    string   `json:"ffmpeg,omitempty"`
	FFprobe   string   `json:"ffprobe,omitempty"`

	// Runtime options (not serialized)
	RunID      string         `json:"-"`
	Logger     *log.Logger    `json:"-"`
	OnProgress func(Progress) `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{
		Columns:    DefaultColumns,
		Levels:     DefaultLevels,
		Style:      string(DefaultStyle),
		Mode:       string(DefaultMode),
		Ramp:       DefaultRamp,
		Gamma:      encode.DefaultGamma,
		FontAspect: DefaultFontAspect,
		Sharpen:    true,
		TargetFPS:  DefaultTargetFPS,
		Threshold:  DefaultThreshold,
		ImageFPS:   DefaultImageFPS,
		Workers:    DefaultWorkers,
		BatchSize:  DefaultBatchSize,
		Formats:    []string{FormatYTT},
	}
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs and progress events.
	RunID string

	// Document is the assembled timed-text document.
	Document timedtext.Document

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains counts and timing information.
	Stats Stats

	// CacheHit reports whether the document came from the cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	FramesDecoded int
	FramesSampled int
	FramesKept    int
	Blocks        int
	Pens          int
	Columns       int
	Rows          int
	Step          int
	EffectiveFPS  float64
	DurationMs    int64
	EncodeTime    time.Duration
	RenderTime    time.Duration
}

// Progress is reported after every batch.
type Progress struct {
	RunID           string `json:"run_id"`
	FramesProcessed int    `json:"frames_processed"`
	TotalFrames     int    `json:"total_frames"` // 0 when unknown
	PenCount        int    `json:"pen_count"`
	Blocks          int    `json:"blocks"`
	Done            bool   `json:"done,omitempty"`
}

// Fraction returns how much of the stream has been processed, in [0, 1].
// It returns 0 when the total is unknown.
func (p Progress) Fraction() float64 {
	if p.TotalFrames <= 0 {
		return 0
	}
	f := float64(p.FramesProcessed) / float64(p.TotalFrames)
	if f > 1 {
		return 1
	}
	return f
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: ytt, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks every field and applies defaults for the full
// pipeline. This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForEncode(); err != nil {
		return err
	}
	if err := o.ValidateForTimeline(); err != nil {
		return err
	}
	if err := o.ValidateForRun(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetEncodeDefaults sets default values for frame encoding.
func (o *Options) SetEncodeDefaults() {
	if o.Columns == 0 {
		o.Columns = DefaultColumns
	}
	if o.Levels == 0 {
		o.Levels = DefaultLevels
	}
	if o.Style == "" {
		o.Style = string(DefaultStyle)
	}
	if o.Mode == "" {
		o.Mode = string(DefaultMode)
	}
	if o.Ramp == "" {
		o.Ramp = DefaultRamp
	}
	if o.Gamma == 0 {
		o.Gamma = encode.DefaultGamma
	}
	if o.FontAspect == 0 {
		o.FontAspect = DefaultFontAspect
	}
}

// ValidateForEncode validates and sets defaults for frame encoding.
func (o *Options) ValidateForEncode() error {
	o.SetEncodeDefaults()
	if err := errors.ValidateColumns(o.Columns); err != nil {
		return err
	}
	if err := errors.ValidateLevels(o.Levels); err != nil {
		return err
	}
	if err := errors.ValidateFontAspect(o.FontAspect); err != nil {
		return err
	}
	if err := errors.ValidateGamma(o.Gamma); err != nil {
		return err
	}
	style, err := encode.ParseStyle(o.Style)
	if err != nil {
		return err
	}
	o.Style = string(style)
	mode, err := encode.ParseMode(o.Mode)
	if err != nil {
		return err
	}
	o.Mode = string(mode)
	return errors.ValidateRamp(encode.ResolveRamp(o.Ramp))
}

// ValidateForTimeline checks the sampling and merging settings.
func (o *Options) ValidateForTimeline() error {
	if o.ImageFPS == 0 {
		o.ImageFPS = DefaultImageFPS
	}
	if err := errors.ValidateFPS("target fps", o.TargetFPS); err != nil {
		return err
	}
	if err := errors.ValidateFPS("image fps", o.ImageFPS); err != nil {
		return err
	}
	return errors.ValidateThreshold(o.Threshold)
}

// SetRunDefaults sets default values for execution.
func (o *Options) SetRunDefaults() {
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatYTT}
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRun validates and sets defaults for execution.
func (o *Options) ValidateForRun() error {
	o.SetRunDefaults()
	if err := errors.ValidatePositive("workers", o.Workers); err != nil {
		return err
	}
	if err := errors.ValidatePositive("batch size", o.BatchSize); err != nil {
		return err
	}
	return ValidateFormats(o.Formats)
}

// EncoderConfig returns the per-frame encoder settings.
func (o *Options) EncoderConfig() encode.Config {
	return encode.Config{
		Columns:     o.Columns,
		FontAspect:  o.FontAspect,
		Style:       encode.Style(o.Style),
		Mode:        encode.Mode(o.Mode),
		Levels:      o.Levels,
		Ramp:        o.Ramp,
		Gamma:       o.Gamma,
		Sharpen:     o.Sharpen,
		MergeGlyphs: o.MergeGlyphs,
	}
}

// DocumentKeyOpts returns cache key options for a converted document.
// sourceFPS is the rate the source was decoded at.
func (o *Options) DocumentKeyOpts(sourceFPS float64) cache.DocumentKeyOpts {
	return cache.DocumentKeyOpts{
		Columns:     o.Columns,
		TargetFPS:   o.TargetFPS,
		SourceFPS:   sourceFPS,
		Threshold:   o.Threshold,
		Levels:      o.Levels,
		Style:       o.Style,
		Mode:        o.Mode,
		Ramp:        o.Ramp,
		Gamma:       o.Gamma,
		FontAspect:  o.FontAspect,
		Sharpen:     o.Sharpen,
		MergeGlyphs: o.MergeGlyphs,
	}
}

// String summarizes the options that shape the output.
func (o *Options) String() string {
	return fmt.Sprintf("%d cols, %s/%s, %d levels, %g fps, threshold %d",
		o.Columns, o.Style, o.Mode, o.Levels, o.TargetFPS, o.Threshold)
}
