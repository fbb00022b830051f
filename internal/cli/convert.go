package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/pipeline"
	"github.com/matzehuels/framepen/pkg/progress"
)

// convertFlags holds the command-line flags that are not pipeline options.
type convertFlags struct {
	output       string // output file (single format) or base path
	formats      string // comma-separated output formats
	config       string // config file path
	noCache      bool   // disable the document cache
	redisURL     string // shared redis cache
	progressAddr string // address of the progress server
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var flags convertFlags
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "convert <video|directory>",
		Short: "Convert a video or image sequence to timed text",
		Long: `Convert a video file (decoded with ffmpeg) or a directory of images into a
YouTube timed-text (srv3) document that replays the footage as colored
character art.

Settings are read from the config file first; flags override them.`,
		Example: `  framepen convert clip.mp4
  framepen convert clip.mp4 -c 80 --fps 15 --style block -o clip.srv3
  framepen convert frames/ --image-fps 24 --format ytt,json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			cfg.apply(cmd.Flags().Changed, &opts, &flags)
			if cfgPath != "" {
				loggerFromContext(cmd.Context()).Debug("loaded config", "path", cfgPath)
			}
			opts.Formats = parseFormats(flags.formats)
			return c.runConvert(cmd.Context(), args[0], opts, flags)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Columns, "columns", "c", opts.Columns, "character columns per row")
	f.Float64Var(&opts.TargetFPS, "fps", opts.TargetFPS, "output frame rate (0 keeps the source rate)")
	f.IntVarP(&opts.Threshold, "threshold", "t", opts.Threshold, "duplicate-frame threshold (0 disables merging)")
	f.IntVar(&opts.Levels, "levels", opts.Levels, "color levels per channel (1-256)")
	f.StringVar(&opts.Style, "style", opts.Style, "glyph style: gradient, block")
	f.StringVar(&opts.Mode, "mode", opts.Mode, "color mode: color, grayscale, pure-bw")
	f.StringVar(&opts.Ramp, "ramp", opts.Ramp, "gradient glyph ramp: dense, classic, or a literal dark-to-light string")
	f.Float64Var(&opts.Gamma, "gamma", opts.Gamma, "luminance gamma for the gradient ramp")
	f.Float64Var(&opts.FontAspect, "font-aspect", opts.FontAspect, "character width/height ratio")
	f.BoolVar(&opts.Sharpen, "sharpen", opts.Sharpen, "sharpen before picking gradient glyphs")
	f.BoolVar(&opts.MergeGlyphs, "merge-glyphs", opts.MergeGlyphs, "split spans on color only")
	f.IntVar(&opts.Workers, "workers", opts.Workers, "concurrent frame encoders")
	f.IntVar(&opts.BatchSize, "batch", opts.BatchSize, "frames read per batch")
	f.Float64Var(&opts.ImageFPS, "image-fps", opts.ImageFPS, "frame rate of image directories")
	f.StringVar(&opts.FFmpeg, "ffmpeg", "", "ffmpeg binary (default: ffmpeg on PATH)")
	f.StringVar(&opts.FFprobe, "ffprobe", "", "ffprobe binary (default: ffprobe on PATH)")
	f.BoolVar(&opts.Refresh, "refresh", false, "ignore a cached document and convert again")

	f.StringVarP(&flags.output, "output", "o", "", "output file (single format) or base path (multiple)")
	f.StringVarP(&flags.formats, "format", "f", pipeline.FormatYTT, "output format(s): ytt, json (comma-separated)")
	f.StringVar(&flags.config, "config", "", "config file (default $XDG_CONFIG_HOME/framepen/config.toml)")
	f.BoolVar(&flags.noCache, "no-cache", false, "disable the document cache")
	f.StringVar(&flags.redisURL, "redis-url", "", "use a shared redis cache (redis://host:6379/0)")
	f.StringVar(&flags.progressAddr, "progress-addr", "", "serve progress over HTTP/websocket on this address")

	return cmd
}

func (c *CLI) runConvert(ctx context.Context, input string, opts pipeline.Options, flags convertFlags) error {
	logger := loggerFromContext(ctx)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	outputs := make(map[string]string, len(opts.Formats))
	for _, format := range opts.Formats {
		path := outputPath(flags.output, input, format, len(opts.Formats))
		if err := errors.ValidateOutputPath(path); err != nil {
			return err
		}
		outputs[format] = path
	}

	runner, err := c.newRunner(ctx, cacheOpts{disabled: flags.noCache, redisURL: flags.redisURL})
	if err != nil {
		return err
	}
	defer runner.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var publish func(pipeline.Progress)
	if flags.progressAddr != "" {
		srv := progress.New(logger)
		publish = srv.Publish
		go func() {
			if err := srv.Run(ctx, flags.progressAddr); err != nil {
				logger.Warn("progress server stopped", "error", err)
			}
		}()
	}

	sw := newStopwatch(logger)
	opts.Logger = logger
	var result *pipeline.Result
	err = runWithProgress(ctx, cancel, filepath.Base(input), os.Stderr, logger, publish, func(onProgress func(pipeline.Progress)) error {
		opts.OnProgress = onProgress
		var err error
		result, err = runner.ConvertFile(ctx, input, opts)
		return err
	})
	if err != nil {
		if pos, ok := errors.Position(err); ok {
			logger.Error("conversion aborted", "frame", pos.FrameIndex, "at_ms", pos.ElapsedMs)
		}
		return err
	}
	logger.Debug("conversion finished", "run", result.RunID, "cache_hit", result.CacheHit)
	if result.CacheHit {
		sw.done(fmt.Sprintf("Loaded cached document for %d frames", result.Stats.FramesDecoded))
	} else {
		sw.done(fmt.Sprintf("Converted %d frames", result.Stats.FramesDecoded))
	}

	// Nothing is written until every artifact is complete.
	formats := slices.Sorted(maps.Keys(result.Artifacts))
	printSuccess("Converted %s", input)
	for _, format := range formats {
		data := result.Artifacts[format]
		path := outputs[format]
		if err := writeFileAtomic(path, data); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path, len(data))
	}
	printStats(result.Stats.FramesDecoded, result.Stats.Blocks, result.Stats.Pens, result.CacheHit)
	if slices.Contains(opts.Formats, pipeline.FormatJSON) {
		printNextStep("Re-render the JSON export", fmt.Sprintf("%s render %s", appName, outputs[pipeline.FormatJSON]))
	}
	return nil
}
