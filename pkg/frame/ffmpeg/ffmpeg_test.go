package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"testing"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
)

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30/1":       30,
		"30000/1001": 30000.0 / 1001,
		"25":         25,
		"0/0":        0,
		"":           0,
		"abc":        0,
		"24/0":       0,
	}
	for in, want := range tests {
		if got := ParseRate(in); got != want {
			t.Errorf("ParseRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResultInfo(t *testing.T) {
	raw := `{
		"streams": [
			{"index": 0, "codec_type": "audio"},
			{"index": 1, "codec_type": "video", "codec_name": "h264", "width": 640, "height": 360,
			 "r_frame_rate": "30000/1001", "nb_frames": "300"}
		],
		"format": {"duration": "10.01"}
	}`
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatal(err)
	}
	info, err := res.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Width != 640 || info.Height != 360 || info.TotalFrames != 300 {
		t.Errorf("Info = %+v", info)
	}
	if info.FPS < 29.97 || info.FPS > 29.98 {
		t.Errorf("FPS = %v", info.FPS)
	}
}

func TestResultInfoRotation(t *testing.T) {
	tests := []struct {
		name       string
		stream     string
		rotation   int
		wantWidth  int
		wantHeight int
	}{
		{"none", `{}`, 0, 1920, 1080},
		{"display matrix -90", `{"side_data_list": [{"side_data_type": "Display Matrix", "rotation": -90}]}`, 270, 1080, 1920},
		{"display matrix 90", `{"side_data_list": [{"side_data_type": "Display Matrix", "rotation": 90}]}`, 90, 1080, 1920},
		{"display matrix 180", `{"side_data_list": [{"side_data_type": "Display Matrix", "rotation": -180}]}`, 180, 1920, 1080},
		{"rotate tag", `{"tags": {"rotate": "90"}}`, 90, 1080, 1920},
		{"rotate tag 270", `{"tags": {"rotate": "270"}}`, 270, 1080, 1920},
		{"matrix wins over tag", `{"tags": {"rotate": "90"}, "side_data_list": [{"side_data_type": "Display Matrix", "rotation": 0}]}`, 0, 1920, 1080},
		{"other side data", `{"side_data_list": [{"side_data_type": "Stereo 3D"}], "tags": {"rotate": "-90"}}`, 270, 1080, 1920},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Stream
			if err := json.Unmarshal([]byte(tt.stream), &s); err != nil {
				t.Fatal(err)
			}
			s.CodecType, s.Width, s.Height, s.RFrameRate = "video", 1920, 1080, "30/1"
			if got := s.Rotation(); got != tt.rotation {
				t.Errorf("Rotation() = %d, want %d", got, tt.rotation)
			}
			info, err := Result{Streams: []Stream{s}}.Info()
			if err != nil {
				t.Fatal(err)
			}
			if info.Width != tt.wantWidth || info.Height != tt.wantHeight {
				t.Errorf("Info size = %dx%d, want %dx%d", info.Width, info.Height, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestResultInfoFallbacks(t *testing.T) {
	res := Result{
		Streams: []Stream{{CodecType: "video", Width: 4, Height: 2, RFrameRate: "0/0", AvgFrameRate: "25/1"}},
		Format:  Format{Duration: "2.0"},
	}
	info, err := res.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.FPS != 25 || info.TotalFrames != 50 {
		t.Errorf("Info = %+v, want 25 fps and 50 frames", info)
	}
}

func TestResultInfoErrors(t *testing.T) {
	tests := map[string]Result{
		"no video": {Streams: []Stream{{CodecType: "audio"}}},
		"no size":  {Streams: []Stream{{CodecType: "video", RFrameRate: "30/1"}}},
		"no fps":   {Streams: []Stream{{CodecType: "video", Width: 2, Height: 2}}},
	}
	for name, res := range tests {
		if _, err := res.Info(); !errors.Is(err, errors.ErrCodeSourceUnavailable) {
			t.Errorf("%s: error = %v, want SOURCE_UNAVAILABLE", name, err)
		}
	}
}

func TestSourceReadsFrames(t *testing.T) {
	info := frame.Info{FPS: 10, TotalFrames: 2, Width: 2, Height: 1}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	s := newSource(info, io.NopCloser(bytes.NewReader(data)))
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		f, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		r, g, b := f.RGBAt(1, 0)
		base := uint8(i*6 + 4)
		if r != base || g != base+1 || b != base+2 {
			t.Errorf("frame %d pixel 1 = %d %d %d", i, r, g, b)
		}
	}
	if _, err := s.Next(ctx); !stderrors.Is(err, io.EOF) {
		t.Errorf("Next after last frame = %v, want io.EOF", err)
	}
}

func TestSourceTruncatedFrame(t *testing.T) {
	info := frame.Info{FPS: 10, Width: 2, Height: 2}
	s := newSource(info, io.NopCloser(bytes.NewReader(make([]byte, 12+5))))
	ctx := context.Background()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, errors.ErrCodeSourceExhausted) {
		t.Errorf("truncated frame error = %v, want SOURCE_EXHAUSTED", err)
	}
}

func TestSourceCancelled(t *testing.T) {
	s := newSource(frame.Info{FPS: 1, Width: 1, Height: 1}, io.NopCloser(bytes.NewReader(make([]byte, 3))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Next on cancelled context = %v", err)
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, max: 4}
	w.Write([]byte("abc"))
	n, err := w.Write([]byte("defg"))
	if n != 4 || err != nil {
		t.Errorf("Write = %d, %v", n, err)
	}
	if buf.String() != "abcd" {
		t.Errorf("kept %q, want abcd", buf.String())
	}
}
