// SPDX-License-Identifier: MIT

// Package onset accumulates spectral flux over an analysis pass and picks
// onset peaks from it with an adaptive threshold.
//
// A Detector moves through three states. It starts Idle, becomes
// Accumulating on the first frame, and is Finalized by Detect. A fresh
// Detector (or Reset) is needed before analyzing an unrelated source,
// since the previous-spectrum state carries across frames.
package onset

import (
	"beatmap/internal/fft"
	"beatmap/internal/flux"
	"beatmap/pkg/bitint"
	"errors"
	"fmt"
)

// MinTimeBetweenPeaks is the minimum gap, in seconds, between two
// accepted onsets. It sets the immunity period used during peak cleanup.
const MinTimeBetweenPeaks = 0.01

var (
	// ErrFinalized is returned when frames are fed after Detect.
	ErrFinalized = errors.New("onset: detector already finalized")
	// ErrFrameLength is returned for frames that do not match the frame size.
	ErrFrameLength = errors.New("onset: frame length does not match frame size")
)

// State is the lifecycle stage of a Detector.
type State int

const (
	Idle State = iota
	Accumulating
	Finalized
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Option customizes a Detector.
type Option func(*options)

type options struct {
	rectify     bool
	applyWindow bool
	convention  fft.Convention
}

// WithRectify toggles half-wave rectification of the flux (default on).
func WithRectify(rectify bool) Option {
	return func(o *options) { o.rectify = rectify }
}

// WithWindow toggles the Hamming window before each transform (default on).
func WithWindow(apply bool) Option {
	return func(o *options) { o.applyWindow = apply }
}

// WithConvention selects the transform convention (default fft.NoScaling).
func WithConvention(c fft.Convention) Option {
	return func(o *options) { o.convention = c }
}

// Detector turns a sequence of frames into an onset series.
// It is not safe for concurrent use.
type Detector struct {
	sampleRate int
	frameSize  int
	analyzer   *flux.Analyzer

	state  State
	fluxes []float64
	onsets []float64
}

// NewDetector returns an Idle detector for frames of frameSize samples
// taken from audio at sampleRate Hz.
func NewDetector(sampleRate, frameSize int, opts ...Option) (*Detector, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("onset: sample rate must be positive, got %d", sampleRate)
	}
	if !bitint.IsTransformLength(frameSize) {
		return nil, fmt.Errorf("%w: frame size %d (nearest valid %d)",
			fft.ErrInvalidSize, frameSize, bitint.NextPowerOfTwo(frameSize))
	}

	o := options{rectify: true, applyWindow: true, convention: fft.NoScaling}
	for _, opt := range opts {
		opt(&o)
	}

	analyzer, err := flux.New(fft.NewEngine(o.convention), frameSize, o.rectify, o.applyWindow)
	if err != nil {
		return nil, err
	}

	return &Detector{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		analyzer:   analyzer,
		state:      Idle,
	}, nil
}

// AddFrame feeds one frame. A nil frame means the source is exhausted and
// returns false; any other frame is analyzed, its flux appended, and true
// is returned to ask for more.
func (d *Detector) AddFrame(samples []float64) (bool, error) {
	if d.state == Finalized {
		return false, ErrFinalized
	}
	if samples == nil {
		return false, nil
	}
	if len(samples) != d.frameSize {
		return false, fmt.Errorf("%w: got %d, want %d", ErrFrameLength, len(samples), d.frameSize)
	}

	value, err := d.analyzer.Process(samples)
	if err != nil {
		return false, err
	}
	d.fluxes = append(d.fluxes, value)
	d.state = Accumulating
	return true, nil
}

// Detect finalizes the pass and computes the onset series from the
// accumulated flux: an adaptive threshold of sensitivity times the local
// mean over thresholdTimeSpan seconds, followed by peak cleanup. It may be
// called again with different parameters; each call recomputes the
// series and discards any normalization. With no frames the result is
// empty.
func (d *Detector) Detect(sensitivity, thresholdTimeSpan float64) []float64 {
	d.state = Finalized

	if len(d.fluxes) == 0 {
		d.onsets = []float64{}
		return d.onsets
	}

	threshold := Threshold(d.fluxes, d.ThresholdHalfWidth(thresholdTimeSpan), sensitivity)
	d.onsets = PickPeaks(d.fluxes, threshold, d.ImmunityPeriod())
	return d.onsets
}

// Normalize rescales the onset series in place. It is a no-op before
// Detect or when the series is empty.
func (d *Detector) Normalize(mode Normalization) {
	Normalize(d.onsets, mode)
}

// Reset discards all accumulated state and returns the detector to Idle.
func (d *Detector) Reset() {
	d.analyzer.Reset()
	d.fluxes = nil
	d.onsets = nil
	d.state = Idle
}

// State returns the lifecycle state.
func (d *Detector) State() State {
	return d.state
}

// Flux returns the flux series, one value per frame fed so far.
func (d *Detector) Flux() []float64 {
	return d.fluxes
}

// Onsets returns the series from the last Detect call, or nil.
func (d *Detector) Onsets() []float64 {
	return d.onsets
}

// Frames returns the number of frames accumulated.
func (d *Detector) Frames() int {
	return len(d.fluxes)
}

// TimePerFrame returns the duration of one frame in seconds; onset i sits
// at i*TimePerFrame().
func (d *Detector) TimePerFrame() float64 {
	return float64(d.frameSize) / float64(d.sampleRate)
}

// ThresholdHalfWidth returns the number of neighbouring frames on each
// side averaged into the threshold for a window of span seconds. A window
// wider than the accumulated series is capped at its length.
func (d *Detector) ThresholdHalfWidth(span float64) int {
	return HalfWidth(span, d.TimePerFrame(), len(d.fluxes))
}

// ImmunityPeriod returns the number of frames after an accepted peak in
// which further peaks are suppressed.
func (d *Detector) ImmunityPeriod() int {
	return ImmunityPeriod(d.frameSize, d.sampleRate)
}
