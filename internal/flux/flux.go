// SPDX-License-Identifier: MIT

// Package flux turns consecutive power spectra into a scalar spectral
// flux value per frame.
package flux

import (
	"beatmap/internal/fft"
	"beatmap/pkg/bitint"
	"fmt"
)

// Analyzer tracks the current and previous power spectrum of a stream of
// frames. It is not safe for concurrent use.
type Analyzer struct {
	engine      *fft.Engine
	frameSize   int
	rectify     bool // Sum only positive bin differences.
	applyWindow bool // Hamming-window each frame before transforming.

	current  []float64
	previous []float64
}

// New returns an analyzer for frames of frameSize samples. The previous
// spectrum starts out as all zeros.
func New(engine *fft.Engine, frameSize int, rectify, applyWindow bool) (*Analyzer, error) {
	if engine == nil {
		return nil, fmt.Errorf("flux: engine cannot be nil")
	}
	if !bitint.IsTransformLength(frameSize) {
		return nil, fmt.Errorf("%w: frame size %d", fft.ErrInvalidSize, frameSize)
	}

	bins := frameSize/2 + 1
	return &Analyzer{
		engine:      engine,
		frameSize:   frameSize,
		rectify:     rectify,
		applyWindow: applyWindow,
		current:     make([]float64, bins),
		previous:    make([]float64, bins),
	}, nil
}

// Process transforms one frame, shifts the current spectrum into the
// previous slot, and returns the summed bin-wise difference between them.
func (a *Analyzer) Process(samples []float64) (float64, error) {
	if len(samples) != a.frameSize {
		return 0, fmt.Errorf("flux: frame has %d samples, want %d", len(samples), a.frameSize)
	}
	if _, _, err := a.engine.RealTransform(samples, a.applyWindow); err != nil {
		return 0, err
	}

	a.current, a.previous = a.previous, a.current
	a.current = a.engine.PowerSpectrum(a.current)

	return Compare(a.current, a.previous, a.rectify), nil
}

// Spectrum returns the most recent power spectrum. The slice is reused
// by the next call to Process.
func (a *Analyzer) Spectrum() []float64 {
	return a.current
}

// Reset zeroes both spectra so the next frame is compared against silence.
func (a *Analyzer) Reset() {
	clear(a.current)
	clear(a.previous)
}

// Bins returns the spectrum length, frameSize/2+1.
func (a *Analyzer) Bins() int {
	return len(a.current)
}

// Compare sums current[i]-previous[i] over all bins. With rectify set,
// negative differences are dropped (half-wave rectification).
func Compare(current, previous []float64, rectify bool) float64 {
	var flux float64
	for i := range current {
		d := current[i] - previous[i]
		if !rectify || d > 0 {
			flux += d
		}
	}
	return flux
}
