// Package imageseq reads a directory of still images as a frame source.
//
// Files are ordered lexically by name, so zero-padded sequences such as
// frame_0001.png sort correctly. PNG, JPEG, GIF, BMP, TIFF and WebP are
// decoded. Every frame takes the size of the first one; images of other
// sizes are scaled to fit.
package imageseq

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
)

// Extensions lists the recognized file extensions.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Source yields the images of a directory in name order.
type Source struct {
	files []string
	info  frame.Info
	next  int
}

var _ frame.Source = (*Source)(nil)

// Open lists dir and reads the size of its first image. fps is the playback
// rate assigned to the sequence.
func Open(dir string, fps float64) (*Source, error) {
	if err := errors.ValidateFPS("image fps", fps); err != nil {
		return nil, err
	}
	if fps == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "image fps must be positive")
	}
	files, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeSourceExhausted, "no image frames in %s", dir)
	}

	cfg, err := decodeConfig(files[0])
	if err != nil {
		return nil, err
	}
	return &Source{
		files: files,
		info:  frame.Info{FPS: fps, TotalFrames: len(files), Width: cfg.Width, Height: cfg.Height},
	}, nil
}

// List returns the image files of dir sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "read %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "open %s", path)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "decode %s", path)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, errors.New(errors.ErrCodeSourceUnavailable, "%s has empty size", path)
	}
	return cfg, nil
}

// Info implements frame.Source.
func (s *Source) Info() frame.Info { return s.info }

// Next implements frame.Source.
func (s *Source) Next(ctx context.Context) (frame.Raw, error) {
	if err := ctx.Err(); err != nil {
		return frame.Raw{}, err
	}
	if s.next >= len(s.files) {
		return frame.Raw{}, io.EOF
	}
	path := s.files[s.next]
	s.next++

	img, err := decode(path)
	if err != nil {
		return frame.Raw{}, err
	}
	if b := img.Bounds(); b.Dx() != s.info.Width || b.Dy() != s.info.Height {
		dst := image.NewNRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	return frame.FromImage(img), nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "open %s", path)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "decode %s", path)
	}
	return img, nil
}

// Close implements frame.Source.
func (s *Source) Close() error { return nil }
