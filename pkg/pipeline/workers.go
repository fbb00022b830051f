package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

// job is a sampled frame waiting to be encoded.
type job struct {
	index int
	raw   frame.Raw
}

// encodeBatch encodes jobs concurrently with at most workers goroutines.
// Results are stored by position, so the returned slice is in job order no
// matter which worker finishes first.
func encodeBatch(ctx context.Context, enc *encode.Encoder, tl timedtext.Timeline, jobs []job, workers int) ([]encode.Frame, error) {
	out := make([]encode.Frame, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := enc.Encode(j.raw)
			if err != nil {
				return errors.AtFrame(err, j.index, tl.StartMs(j.index))
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
