package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/framepen/pkg/cache"
	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
	"github.com/matzehuels/framepen/pkg/frame/ffmpeg"
	"github.com/matzehuels/framepen/pkg/frame/imageseq"
	docio "github.com/matzehuels/framepen/pkg/io"
	"github.com/matzehuels/framepen/pkg/observability"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// ConvertFile converts a video file or an image directory and renders the
// requested formats.
//
// The document is looked up in the cache first, keyed by the input's path,
// size and modification time plus every option that shapes the output.
// opts.Refresh skips the lookup but still stores the new document.
func (r *Runner) ConvertFile(ctx context.Context, path string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts.Logger = opts.Logger.With("run", shortID(opts.RunID))

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "stat %s", path)
	}

	sourceFPS := 0.0
	if st.IsDir() {
		sourceFPS = opts.ImageFPS
	}
	key := r.Keyer.DocumentKey(r.Keyer.SourceKey(abs, st.Size(), st.ModTime()), opts.DocumentKeyOpts(sourceFPS))

	result := &Result{RunID: opts.RunID}
	if entry, ok := r.lookup(ctx, key, opts); ok {
		result.Document = entry.Document
		result.CacheHit = true
		result.Stats = entry.Stats
		result.Stats.EncodeTime = 0
		opts.Logger.Info("using cached document",
			"frames", entry.Stats.FramesDecoded,
			"blocks", len(entry.Document.Blocks),
			"pens", len(entry.Document.Pens))
	} else {
		src, err := OpenSource(ctx, abs, opts)
		if err != nil {
			return nil, err
		}
		doc, stats, err := convert(ctx, filepath.Base(abs), src, opts)
		closeErr := src.Close()
		if err != nil {
			return nil, fmt.Errorf("convert: %w", err)
		}
		if closeErr != nil {
			opts.Logger.Warn("closing source failed", "error", closeErr)
		}
		result.Document = doc
		result.Stats = stats
		r.store(ctx, key, cacheEntry{Document: doc, Stats: stats}, opts)
	}

	renderStart := time.Now()
	artifacts, err := Render(result.Document, opts.Formats)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Debug("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// Convert converts an already open source without caching. The source is
// not closed.
func (r *Runner) Convert(ctx context.Context, src frame.Source, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	doc, stats, err := convert(ctx, "stream", src, opts)
	if err != nil {
		return nil, err
	}
	artifacts, err := Render(doc, opts.Formats)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return &Result{RunID: opts.RunID, Document: doc, Artifacts: artifacts, Stats: stats}, nil
}

// cacheEntry is what a converted source is cached as. Stats are kept so a
// cache hit reports the same frame counts as the run that produced it.
type cacheEntry struct {
	Document timedtext.Document `json:"document"`
	Stats    Stats              `json:"stats"`
}

func (r *Runner) lookup(ctx context.Context, key string, opts Options) (cacheEntry, bool) {
	if opts.Refresh {
		return cacheEntry{}, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		opts.Logger.Warn("cache lookup failed", "error", err)
		return cacheEntry{}, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "document")
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := cache.Unmarshal(data, &entry); err != nil {
		opts.Logger.Debug("discarding unreadable cache entry", "error", err)
		return cacheEntry{}, false
	}
	// A conversion always yields at least one block.
	if len(entry.Document.Blocks) == 0 {
		opts.Logger.Debug("discarding empty cache entry")
		return cacheEntry{}, false
	}
	if err := entry.Document.Validate(); err != nil {
		opts.Logger.Debug("discarding invalid cache entry", "error", err)
		return cacheEntry{}, false
	}
	observability.Cache().OnCacheHit(ctx, "document")
	return entry, true
}

func (r *Runner) store(ctx context.Context, key string, entry cacheEntry, opts Options) {
	data, err := cache.Marshal(entry)
	if err != nil {
		opts.Logger.Warn("encoding document for cache failed", "error", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLDocument); err != nil {
		opts.Logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "document", len(data))
}

// Render produces the requested output formats for a document.
func Render(doc timedtext.Document, formats []string) (map[string][]byte, error) {
	if err := ValidateFormats(formats); err != nil {
		return nil, err
	}
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		switch format {
		case FormatYTT:
			artifacts[format] = timedtext.Serialize(doc)
		case FormatJSON:
			data, err := docio.MarshalJSON(doc)
			if err != nil {
				return nil, err
			}
			artifacts[format] = data
		}
	}
	return artifacts, nil
}

// OpenSource opens path as a frame source. Directories are read as image
// sequences at opts.ImageFPS; anything else is decoded with ffmpeg.
func OpenSource(ctx context.Context, path string, opts Options) (frame.Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "stat %s", path)
	}
	if st.IsDir() {
		fps := opts.ImageFPS
		if fps == 0 {
			fps = DefaultImageFPS
		}
		return imageseq.Open(path, fps)
	}
	return ffmpeg.Open(ctx, path, ffmpeg.Options{FFmpeg: opts.FFmpeg, FFprobe: opts.FFprobe})
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
