package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
	"github.com/matzehuels/framepen/pkg/observability"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

// Convert reads every frame from src and assembles the timed-text document.
//
// Frames are read sequentially in batches of opts.BatchSize decoded frames.
// Frames between sampling steps are dropped before encoding, the rest are
// encoded by up to opts.Workers goroutines and merged in index order. A
// failure or cancellation discards the partial document; the returned error
// carries the stream position reached (see [errors.Position]).
//
// Convert does not close src.
func Convert(ctx context.Context, src frame.Source, opts Options) (timedtext.Document, Stats, error) {
	return convert(ctx, "stream", src, opts)
}

func convert(ctx context.Context, name string, src frame.Source, opts Options) (doc timedtext.Document, stats Stats, err error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return timedtext.Document{}, Stats{}, err
	}
	logger := opts.Logger
	info := src.Info()

	enc, err := encode.NewEncoder(opts.EncoderConfig())
	if err != nil {
		return timedtext.Document{}, Stats{}, err
	}
	tl, err := timedtext.NewTimeline(info.FPS, opts.TargetFPS)
	if err != nil {
		return timedtext.Document{}, Stats{}, err
	}
	b := timedtext.NewBuilder(tl, opts.Threshold)

	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnConvertStart(ctx, name, info.TotalFrames)
	defer func() {
		stats.EncodeTime = time.Since(start)
		hooks.OnConvertComplete(ctx, name, observability.ConvertStats{
			FramesDecoded: stats.FramesDecoded,
			FramesSampled: stats.FramesSampled,
			Blocks:        stats.Blocks,
			Pens:          stats.Pens,
			Duration:      stats.EncodeTime,
		}, err)
	}()

	stats.Columns = opts.Columns
	stats.Step = tl.Step()
	stats.EffectiveFPS = tl.EffectiveFPS()

	logger.Debug("starting conversion",
		"source", name,
		"fps", info.FPS,
		"frames", info.TotalFrames,
		"step", tl.Step(),
		"options", opts.String())

	decoded := 0
	jobs := make([]job, 0, opts.BatchSize)
	for eof := false; !eof; {
		batchStart := time.Now()
		jobs = jobs[:0]
		for n := 0; n < opts.BatchSize; n++ {
			if err := ctx.Err(); err != nil {
				return timedtext.Document{}, stats, errors.AtFrame(err, decoded, tl.StartMs(decoded))
			}
			raw, err := src.Next(ctx)
			if stderrors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return timedtext.Document{}, stats, errors.AtFrame(err, decoded, tl.StartMs(decoded))
			}
			if tl.Sampled(decoded) {
				jobs = append(jobs, job{index: decoded, raw: raw})
			}
			decoded++
		}
		stats.FramesDecoded = decoded
		if len(jobs) == 0 {
			continue
		}

		frames, err := encodeBatch(ctx, enc, tl, jobs, opts.Workers)
		if err != nil {
			return timedtext.Document{}, stats, err
		}
		for i, j := range jobs {
			if err := b.Add(j.index, frames[i]); err != nil {
				return timedtext.Document{}, stats, errors.AtFrame(err, j.index, tl.StartMs(j.index))
			}
			if stats.Rows == 0 {
				stats.Rows = frames[i].Grid.Rows()
			}
		}
		stats.FramesSampled = b.Frames()
		stats.Pens = b.PenCount()
		stats.Blocks = b.BlockCount()

		hooks.OnBatch(ctx, len(jobs), time.Since(batchStart))
		logger.Debug("encoded batch",
			"through", decoded,
			"frames", len(jobs),
			"pens", stats.Pens,
			"blocks", stats.Blocks)
		opts.report(Progress{
			RunID:           opts.RunID,
			FramesProcessed: decoded,
			TotalFrames:     info.TotalFrames,
			PenCount:        stats.Pens,
			Blocks:          stats.Blocks,
		})
	}

	if b.Frames() == 0 {
		return timedtext.Document{}, stats, errors.New(errors.ErrCodeSourceExhausted, "%s yielded no decodable frames", name)
	}

	doc = b.Finish()
	stats.FramesKept = b.Kept()
	stats.Blocks = len(doc.Blocks)
	stats.Pens = len(doc.Pens)
	stats.DurationMs = doc.DurationMs()

	opts.report(Progress{
		RunID:           opts.RunID,
		FramesProcessed: decoded,
		TotalFrames:     info.TotalFrames,
		PenCount:        stats.Pens,
		Blocks:          stats.Blocks,
		Done:            true,
	})
	logger.Info("converted frames",
		"frames", stats.FramesDecoded,
		"sampled", stats.FramesSampled,
		"blocks", stats.Blocks,
		"pens", stats.Pens,
		"duration", time.Since(start))
	return doc, stats, nil
}

func (o *Options) report(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}
