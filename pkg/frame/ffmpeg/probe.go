// Package ffmpeg decodes video files into frames by piping ffmpeg's rawvideo
// output.
//
// Two binaries are used:
//   - ffprobe inspects the first video stream: size, frame rate, frame count
//   - ffmpeg decodes that stream to packed rgb24 on stdout
//
// Both are looked up on PATH unless [Options] names them explicitly.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/frame"
)

// Result is the subset of ffprobe JSON output used to describe a video.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`

	Tags         map[string]string `json:"tags"`
	SideDataList []SideData        `json:"side_data_list"`
}

// SideData is a stream side data entry. Only display matrices carry a
// rotation.
type SideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Rotation returns the display rotation in degrees, normalized to 0, 90, 180
// or 270. The display matrix takes precedence over the legacy rotate tag.
func (s Stream) Rotation() int {
	deg := 0.0
	found := false
	for _, sd := range s.SideDataList {
		if strings.EqualFold(sd.SideDataType, "Display Matrix") {
			deg, found = sd.Rotation, true
			break
		}
	}
	if !found {
		deg = parseFloat(s.Tags["rotate"])
	}
	quarter := int(math.Round(deg/90)) % 4
	if quarter < 0 {
		quarter += 4
	}
	return quarter * 90
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Probe runs ffprobe against path and returns the video description.
func Probe(ctx context.Context, binary, path string) (frame.Info, error) {
	res, err := inspect(ctx, binary, path)
	if err != nil {
		return frame.Info{}, err
	}
	return res.Info()
}

func inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New(errors.ErrCodeInvalidPath, "ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner",
		"-select_streams", "v:0", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		msg := ""
		if ee, ok := err.(*exec.ExitError); ok {
			msg = strings.TrimSpace(string(ee.Stderr))
		}
		return Result{}, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "ffprobe %s: %s", path, msg)
	}

	var res Result
	if err := json.Unmarshal(output, &res); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeSourceUnavailable, err, "ffprobe parse")
	}
	return res, nil
}

// Video returns the first video stream.
func (r Result) Video() (Stream, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s, true
		}
	}
	return Stream{}, false
}

// Info extracts the frame source description. The frame count falls back to
// duration × fps when the container does not record it.
func (r Result) Info() (frame.Info, error) {
	v, ok := r.Video()
	if !ok {
		return frame.Info{}, errors.New(errors.ErrCodeSourceUnavailable, "no video stream found")
	}
	if v.Width <= 0 || v.Height <= 0 {
		return frame.Info{}, errors.New(errors.ErrCodeSourceUnavailable, "video stream has invalid size %dx%d", v.Width, v.Height)
	}
	fps := ParseRate(v.RFrameRate)
	if fps <= 0 {
		fps = ParseRate(v.AvgFrameRate)
	}
	if fps <= 0 {
		return frame.Info{}, errors.New(errors.ErrCodeSourceUnavailable, "video stream has no frame rate")
	}

	total, err := strconv.Atoi(strings.TrimSpace(v.NBFrames))
	if err != nil || total <= 0 {
		dur := parseFloat(v.Duration)
		if dur <= 0 {
			dur = parseFloat(r.Format.Duration)
		}
		total = int(math.Round(dur * fps))
	}
	// ffmpeg applies the display rotation while decoding, so quarter turns
	// arrive with width and height swapped.
	width, height := v.Width, v.Height
	if r := v.Rotation(); r == 90 || r == 270 {
		width, height = height, width
	}
	return frame.Info{FPS: fps, TotalFrames: total, Width: width, Height: height}, nil
}

// ParseRate parses an ffprobe rational such as "30000/1001" or a plain
// decimal. It returns 0 for anything unusable.
func ParseRate(s string) float64 {
	s = strings.TrimSpace(s)
	num, den, found := strings.Cut(s, "/")
	n := parseFloat(num)
	if !found {
		if n > 0 {
			return n
		}
		return 0
	}
	d := parseFloat(den)
	if n <= 0 || d <= 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// String formats a stream for logs.
func (s Stream) String() string {
	return fmt.Sprintf("%s %dx%d @ %s", s.CodecName, s.Width, s.Height, s.RFrameRate)
}
