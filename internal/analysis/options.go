// SPDX-License-Identifier: MIT
package analysis

import (
	"beatmap/internal/fft"
	"beatmap/internal/onset"
	"beatmap/pkg/bitint"
	"fmt"
	"math"
)

// Defaults for a single analysis pass.
const (
	DefaultFrameSize         = 1024
	DefaultSensitivity       = 1.5
	DefaultThresholdTimeSpan = 0.1
)

// Options configures one analysis pass.
type Options struct {
	FrameSize         int                 // Samples per frame, a power of two.
	Sensitivity       float64             // Threshold multiplier over the local mean flux.
	ThresholdTimeSpan float64             // Seconds averaged into the threshold.
	Rectify           bool                // Count only spectral increases.
	ApplyWindow       bool                // Hamming-window frames before transforming.
	Normalization     onset.Normalization // Rescaling applied after detection.
	Convention        fft.Convention      // Transform scaling and sign.

	// Progress, when set, is called after each frame with the number of
	// frames processed so far.
	Progress func(frames int)
}

// DefaultOptions returns the standard pass configuration.
func DefaultOptions() Options {
	return Options{
		FrameSize:         DefaultFrameSize,
		Sensitivity:       DefaultSensitivity,
		ThresholdTimeSpan: DefaultThresholdTimeSpan,
		Rectify:           true,
		ApplyWindow:       true,
		Normalization:     onset.None,
		Convention:        fft.NoScaling,
	}
}

// Validate reports the first unusable option. Values are never clamped.
func (o Options) Validate() error {
	if !bitint.IsTransformLength(o.FrameSize) {
		return fmt.Errorf("%w: frame size %d must be a power of two >= 2",
			fft.ErrInvalidSize, o.FrameSize)
	}
	if !positiveFinite(o.Sensitivity) {
		return fmt.Errorf("analysis: sensitivity must be positive and finite, got %g", o.Sensitivity)
	}
	if !positiveFinite(o.ThresholdTimeSpan) {
		return fmt.Errorf("analysis: threshold time span must be positive and finite, got %g", o.ThresholdTimeSpan)
	}
	if o.Convention.B != 1 && o.Convention.B != -1 {
		return fmt.Errorf("analysis: transform sign must be 1 or -1, got %d", o.Convention.B)
	}
	switch o.Normalization {
	case onset.None, onset.MaxScale, onset.MinMaxRescale:
	default:
		return fmt.Errorf("analysis: unknown normalization %d", o.Normalization)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
