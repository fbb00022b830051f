package imageseq

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/framepen/pkg/errors"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestSourceOrderAndScaling(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_002.png"), 8, 4, color.NRGBA{0, 255, 0, 255})
	writePNG(t, filepath.Join(dir, "frame_001.png"), 4, 2, color.NRGBA{255, 0, 0, 255})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir, 12)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	info := s.Info()
	if info.FPS != 12 || info.TotalFrames != 2 || info.Width != 4 || info.Height != 2 {
		t.Errorf("Info = %+v", info)
	}

	ctx := context.Background()
	first, err := s.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r, g, _ := first.RGBAt(0, 0); r != 255 || g != 0 {
		t.Errorf("first frame is not red: %d %d", r, g)
	}

	second, err := s.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Width != 4 || second.Height != 2 {
		t.Errorf("second frame is %dx%d, want 4x2", second.Width, second.Height)
	}
	if _, g, _ := second.RGBAt(1, 1); g != 255 {
		t.Errorf("second frame is not green: g=%d", g)
	}

	if _, err := s.Next(ctx); !stderrors.Is(err, io.EOF) {
		t.Errorf("Next at end = %v, want io.EOF", err)
	}
}

func TestOpenEmptyDir(t *testing.T) {
	if _, err := Open(t.TempDir(), 10); !errors.Is(err, errors.ErrCodeSourceExhausted) {
		t.Errorf("empty dir error = %v, want SOURCE_EXHAUSTED", err)
	}
}

func TestOpenInvalid(t *testing.T) {
	if _, err := Open(t.TempDir(), 0); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("zero fps error = %v", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing"), 10); !errors.Is(err, errors.ErrCodeSourceUnavailable) {
		t.Errorf("missing dir error = %v", err)
	}
}

func TestCorruptImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2, color.White)
	if err := os.WriteFile(filepath.Join(dir, "b.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, errors.ErrCodeSourceUnavailable) {
		t.Errorf("corrupt frame error = %v", err)
	}
}
