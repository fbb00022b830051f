package cli

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/pipeline"
)

// fileConfig mirrors config.toml. Unset keys stay nil so that they neither
// override the built-in defaults nor an explicit flag.
type fileConfig struct {
	Columns     *int     `toml:"columns"`
	FPS         *float64 `toml:"fps"`
	Threshold   *int     `toml:"threshold"`
	Levels      *int     `toml:"levels"`
	Style       *string  `toml:"style"`
	Mode        *string  `toml:"mode"`
	Ramp        *string  `toml:"ramp"`
	Gamma       *float64 `toml:"gamma"`
	FontAspect  *float64 `toml:"font_aspect"`
	Sharpen     *bool    `toml:"sharpen"`
	MergeGlyphs *bool    `toml:"merge_glyphs"`
	Workers     *int     `toml:"workers"`
	Batch       *int     `toml:"batch"`
	ImageFPS    *float64 `toml:"image_fps"`
	FFmpeg      *string  `toml:"ffmpeg"`
	FFprobe     *string  `toml:"ffprobe"`
	Format      *string  `toml:"format"`

	Cache cacheConfig `toml:"cache"`
}

type cacheConfig struct {
	Disabled *bool   `toml:"disabled"`
	RedisURL *string `toml:"redis_url"`
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing default file is not an error; a missing explicit
// one is.
func loadConfig(path string) (fileConfig, string, error) {
	explicit := path != ""
	if !explicit {
		p, err := configPath()
		if err != nil {
			return fileConfig{}, "", nil
		}
		path = p
	}

	var cfg fileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			return fileConfig{}, "", nil
		}
		return fileConfig{}, path, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, path, errors.New(errors.ErrCodeInvalidConfig, "unknown key %q in %s", undecoded[0].String(), path)
	}
	return cfg, path, nil
}

// setUnlessChanged copies a config value into dst unless the flag name was
// given on the command line.
func setUnlessChanged[T any](changed func(string) bool, name string, v *T, dst *T) {
	if v != nil && !changed(name) {
		*dst = *v
	}
}

// apply merges the file values under the command-line flags.
func (f fileConfig) apply(changed func(string) bool, opts *pipeline.Options, flags *convertFlags) {
	setUnlessChanged(changed, "columns", f.Columns, &opts.Columns)
	setUnlessChanged(changed, "fps", f.FPS, &opts.TargetFPS)
	setUnlessChanged(changed, "threshold", f.Threshold, &opts.Threshold)
	setUnlessChanged(changed, "levels", f.Levels, &opts.Levels)
	setUnlessChanged(changed, "style", f.Style, &opts.Style)
	setUnlessChanged(changed, "mode", f.Mode, &opts.Mode)
	setUnlessChanged(changed, "ramp", f.Ramp, &opts.Ramp)
	setUnlessChanged(changed, "gamma", f.Gamma, &opts.Gamma)
	setUnlessChanged(changed, "font-aspect", f.FontAspect, &opts.FontAspect)
	setUnlessChanged(changed, "sharpen", f.Sharpen, &opts.Sharpen)
	setUnlessChanged(changed, "merge-glyphs", f.MergeGlyphs, &opts.MergeGlyphs)
	setUnlessChanged(changed, "workers", f.Workers, &opts.Workers)
	setUnlessChanged(changed, "batch", f.Batch, &opts.BatchSize)
	setUnlessChanged(changed, "image-fps", f.ImageFPS, &opts.ImageFPS)
	setUnlessChanged(changed, "ffmpeg", f.FFmpeg, &opts.FFmpeg)
	setUnlessChanged(changed, "ffprobe", f.FFprobe, &opts.FFprobe)
	if flags != nil {
		setUnlessChanged(changed, "format", f.Format, &flags.formats)
		setUnlessChanged(changed, "no-cache", f.Cache.Disabled, &flags.noCache)
		setUnlessChanged(changed, "redis-url", f.Cache.RedisURL, &flags.redisURL)
	}
}

// effectiveConfig renders opts back into config file form.
func effectiveConfig(opts pipeline.Options, formats string, cache cacheOpts) fileConfig {
	return fileConfig{
		Columns:     &opts.Columns,
		FPS:         &opts.TargetFPS,
		Threshold:   &opts.Threshold,
		Levels:      &opts.Levels,
		Style:       &opts.Style,
		Mode:        &opts.Mode,
		Ramp:        &opts.Ramp,
		Gamma:       &opts.Gamma,
		FontAspect:  &opts.FontAspect,
		Sharpen:     &opts.Sharpen,
		MergeGlyphs: &opts.MergeGlyphs,
		Workers:     &opts.Workers,
		Batch:       &opts.BatchSize,
		ImageFPS:    &opts.ImageFPS,
		FFmpeg:      nonEmpty(opts.FFmpeg),
		FFprobe:     nonEmpty(opts.FFprobe),
		Format:      &formats,
		Cache: cacheConfig{
			Disabled: &cache.disabled,
			RedisURL: nonEmpty(cache.redisURL),
		},
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// configCommand creates the config inspection command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
	}
	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configPathCommand())
	return cmd
}

func (c *CLI) configShowCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(path)
			if err != nil {
				return err
			}
			opts := pipeline.DefaultOptions()
			flags := convertFlags{formats: pipeline.FormatYTT}
			never := func(string) bool { return false }
			cfg.apply(never, &opts, &flags)
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			out := effectiveConfig(opts, flags.formats, cacheOpts{disabled: flags.noCache, redisURL: flags.redisURL})
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(out)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "config file (default $XDG_CONFIG_HOME/framepen/config.toml)")
	return cmd
}

func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := configPath()
			if err != nil {
				return fmt.Errorf("get config path: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			if _, err := os.Stat(p); stderrors.Is(err, fs.ErrNotExist) {
				printDetail("(not created yet)")
			}
			return nil
		},
	}
}
