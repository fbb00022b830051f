package timedtext

import (
	"math"

	"github.com/matzehuels/framepen/pkg/errors"
)

// Timeline maps decoded frame indexes to milliseconds. Every decoded frame
// advances time by 1000/sourceFPS whether or not it is sampled; one frame in
// every Step is sampled.
type Timeline struct {
	sourceFPS float64
	step      int
	nominalMs int64
}

// NewTimeline builds the timeline of a source played at sourceFPS and
// sampled down to targetFPS. A targetFPS of 0 samples every frame.
func NewTimeline(sourceFPS, targetFPS float64) (Timeline, error) {
	if err := errors.ValidateFPS("source fps", sourceFPS); err != nil {
		return Timeline{}, err
	}
	if sourceFPS == 0 {
		return Timeline{}, errors.New(errors.ErrCodeInvalidConfig, "source fps must be positive")
	}
	if err := errors.ValidateFPS("target fps", targetFPS); err != nil {
		return Timeline{}, err
	}

	step := 1
	if targetFPS > 0 {
		if s := int(math.Floor(sourceFPS / targetFPS)); s > 1 {
			step = s
		}
	}
	return Timeline{
		sourceFPS: sourceFPS,
		step:      step,
		nominalMs: int64(math.Round(1000 / sourceFPS * float64(step))),
	}, nil
}

// SourceFPS returns the source frame rate.
func (t Timeline) SourceFPS() float64 { return t.sourceFPS }

// Step returns the sampling stride in decoded frames.
func (t Timeline) Step() int { return t.step }

// EffectiveFPS returns the rate of sampled frames.
func (t Timeline) EffectiveFPS() float64 { return t.sourceFPS / float64(t.step) }

// Sampled reports whether the decoded frame at index is kept for encoding.
func (t Timeline) Sampled(index int) bool { return index%t.step == 0 }

// StartMs returns the truncated presentation time of a decoded frame. It is
// computed from the index rather than accumulated, so rounding never drifts.
func (t Timeline) StartMs(index int) int64 {
	return int64(math.Floor(float64(index)*1000/t.sourceFPS + 1e-9))
}

// NominalMs returns the display duration of one sampled frame.
func (t Timeline) NominalMs() int64 { return t.nominalMs }

// SampledCount returns how many of total decoded frames are sampled.
func (t Timeline) SampledCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + t.step - 1) / t.step
}
