// Package pkg provides the core libraries for framepen, which turns video into
// YouTube timed-text (srv3, format 3) subtitles that replay the footage as
// colored character art.
//
// # Overview
//
// Each decoded frame is scaled to a character grid, each cell becomes a glyph
// in a quantized color, and runs of equal color become pen-styled spans. Frames
// are timed on the sampled timeline, near-duplicates are merged into one
// longer paragraph, and the result is serialized as a single document.
//
// # Architecture
//
//	video file / image directory
//	         ↓
//	    [frame] sources (ffmpeg, imageseq)
//	         ↓
//	    [encode] (grid, quantize, glyphs, spans)
//	         ↓
//	    [timedtext] (timeline, pens, coalescing, serialization)
//	         ↓
//	    srv3 document / JSON export
//
// [pipeline] orchestrates these stages with a bounded worker pool and a
// document cache ([cache]); [progress] streams run progress over a websocket.
//
// # Quick Start
//
//	opts := pipeline.DefaultOptions()
//	opts.Columns = 80
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
//	res, err := runner.ConvertFile(ctx, "clip.mp4", opts)
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("clip.ytt", res.Artifacts[pipeline.FormatYTT], 0o644)
//
// # Main Packages
//
// [frame] - The Source interface and raw frame type, with an ffmpeg-backed
// decoder ([frame/ffmpeg]) and an image directory reader ([frame/imageseq]).
//
// [encode] - Per-frame encoding: grid sizing, color quantization, glyph
// styles and span grouping.
//
// [timedtext] - Timeline sampling, the pen registry, duplicate coalescing and
// the format 3 serializer.
//
// [io] - JSON import and export of documents.
//
// [errors] - Coded errors with stream positions and input validation.
//
// [observability] - Hooks for pipeline, cache and HTTP events.
//
// [frame]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/frame
// [frame/ffmpeg]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/frame/ffmpeg
// [frame/imageseq]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/frame/imageseq
// [encode]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/encode
// [timedtext]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/timedtext
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/cache
// [progress]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/progress
// [io]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/io
// [errors]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/framepen/pkg/observability
package pkg
