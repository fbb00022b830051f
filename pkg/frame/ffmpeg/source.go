package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
)

// Options configures the ffmpeg source.
type Options struct {
	// FFmpeg is the decoder binary. Defaults to "ffmpeg".
	FFmpeg string
	// FFprobe is the inspection binary. Defaults to "ffprobe".
	FFprobe string
}

// Source reads rgb24 frames from an ffmpeg process.
type Source struct {
	info  frame.Info
	r     *bufio.Reader
	rc    io.Closer
	wait  func() error
	kill  func()
	index int

	closeOnce sync.Once
	closeErr  error
}

var _ frame.Source = (*Source)(nil)

// Open probes path and starts decoding it. ffmpeg rotates frames upright
// while decoding; the probed Info already reports the rotated size.
func Open(ctx context.Context, path string, opts Options) (*Source, error) {
	info, err := Probe(ctx, opts.FFprobe, path)
	if err != nil {
		return nil, err
	}

	bin := strings.TrimSpace(opts.FFmpeg)
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, "-v", "error", "-nostdin", "-i", path,
		"-map", "0:v:0", "-f", "rawvideo", "-pix_fmt", "rgb24", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: 4096}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "ffmpeg pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "start %s", bin)
	}

	s := newSource(info, stdout)
	s.wait = func() error {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			return errors.Wrap(errors.ErrCodeSourceUnavailable, err, "ffmpeg: %s", strings.TrimSpace(stderr.String()))
		}
		return nil
	}
	s.kill = func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	return s, nil
}

func newSource(info frame.Info, r io.ReadCloser) *Source {
	return &Source{
		info: info,
		r:    bufio.NewReaderSize(r, info.Width*info.Height*3),
		rc:   r,
		wait: func() error { return nil },
		kill: func() {},
	}
}

// Info implements frame.Source.
func (s *Source) Info() frame.Info { return s.info }

// Next implements frame.Source. A frame cut short by the end of the stream is
// reported as a SOURCE_EXHAUSTED error.
func (s *Source) Next(ctx context.Context) (frame.Raw, error) {
	if err := ctx.Err(); err != nil {
		return frame.Raw{}, err
	}
	f := frame.NewRaw(s.info.Width, s.info.Height, frame.RGB)
	n, err := io.ReadFull(s.r, f.Pix)
	switch {
	case err == nil:
		s.index++
		return f, nil
	case stderrors.Is(err, io.EOF):
		if werr := s.shutdown(false); werr != nil {
			return frame.Raw{}, werr
		}
		return frame.Raw{}, io.EOF
	case stderrors.Is(err, io.ErrUnexpectedEOF):
		return frame.Raw{}, errors.Wrap(errors.ErrCodeSourceExhausted, err,
			"frame %d truncated after %d of %d bytes", s.index, n, len(f.Pix))
	default:
		return frame.Raw{}, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "read frame %d", s.index)
	}
}

// Close stops the decoder and reaps it.
func (s *Source) Close() error {
	return s.shutdown(true)
}

// shutdown reaps the decoder once. A killed decoder's exit status is not an
// error.
func (s *Source) shutdown(kill bool) error {
	s.closeOnce.Do(func() {
		if kill {
			s.kill()
		}
		_ = s.rc.Close()
		if err := s.wait(); !kill {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// limitedWriter keeps the first max bytes written to it.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
