package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
	"github.com/matzehuels/framepen/pkg/frame/ffmpeg"
	"github.com/matzehuels/framepen/pkg/frame/imageseq"
	"github.com/matzehuels/framepen/pkg/pipeline"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

type probeOpts struct {
	columns    int
	fps        float64
	fontAspect float64
	imageFPS   float64
	ffprobe    string
}

// probeCommand creates the probe command.
func (c *CLI) probeCommand() *cobra.Command {
	opts := probeOpts{
		columns:    pipeline.DefaultColumns,
		fps:        pipeline.DefaultTargetFPS,
		fontAspect: pipeline.DefaultFontAspect,
		imageFPS:   pipeline.DefaultImageFPS,
	}
	cmd := &cobra.Command{
		Use:   "probe <video|directory>",
		Short: "Show a source's frame rate, size and projected grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().IntVarP(&opts.columns, "columns", "c", opts.columns, "character columns per row")
	cmd.Flags().Float64Var(&opts.fps, "fps", opts.fps, "output frame rate (0 keeps the source rate)")
	cmd.Flags().Float64Var(&opts.fontAspect, "font-aspect", opts.fontAspect, "character width/height ratio")
	cmd.Flags().Float64Var(&opts.imageFPS, "image-fps", opts.imageFPS, "frame rate of image directories")
	cmd.Flags().StringVar(&opts.ffprobe, "ffprobe", "", "ffprobe binary (default: ffprobe on PATH)")
	return cmd
}

func runProbe(ctx context.Context, input string, opts probeOpts) error {
	spinner := newSpinnerWithContext(ctx, "Probing "+input+"...")
	spinner.Start()
	info, err := probeSource(ctx, input, opts, spinner.SetMessage)
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return ctx.Err()
		}
		spinner.StopWithError("Probe failed")
		return err
	}
	spinner.StopWithSuccess("Probed " + filepath.Base(input))

	tl, err := timedtext.NewTimeline(info.FPS, opts.fps)
	if err != nil {
		return err
	}
	rows := encode.GridRows(opts.columns, info.Width, info.Height, opts.fontAspect)

	fmt.Println(StyleTitle.Render(input))
	printKeyValue("size", fmt.Sprintf("%d×%d", info.Width, info.Height))
	printKeyValue("frame rate", fmt.Sprintf("%.3f fps", info.FPS))
	if info.TotalFrames > 0 {
		printKeyValue("frames", humanize.Comma(int64(info.TotalFrames)))
		printKeyValue("duration", fmt.Sprintf("%.2fs", float64(info.TotalFrames)/info.FPS))
		printKeyValue("sampled", humanize.Comma(int64(tl.SampledCount(info.TotalFrames))))
	} else {
		printWarning("frame count unknown")
	}
	printKeyValue("grid", fmt.Sprintf("%d×%d cells", opts.columns, rows))
	printKeyValue("sampling", fmt.Sprintf("every %d frame(s) → %.3f fps, %d ms each", tl.Step(), tl.EffectiveFPS(), tl.NominalMs()))
	return nil
}

// probeSource reads the source's metadata. status receives a new spinner
// message when the probe takes a slower path.
func probeSource(ctx context.Context, input string, opts probeOpts, status func(string)) (frame.Info, error) {
	st, err := os.Stat(input)
	if err != nil {
		return frame.Info{}, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "stat %s", input)
	}
	if st.IsDir() {
		status("Reading image headers in " + input + "...")
		src, err := imageseq.Open(input, opts.imageFPS)
		if err != nil {
			return frame.Info{}, err
		}
		defer src.Close()
		return src.Info(), nil
	}
	return ffmpeg.Probe(ctx, opts.ffprobe, input)
}
