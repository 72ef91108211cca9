// SPDX-License-Identifier: MIT

// Package fft implements the radix-2 transform engine behind onset
// detection: an in-place table-driven complex FFT over interleaved
// real/imaginary pairs, a packed real transform with optional Hamming
// windowing, and the per-bin spectrum used by the flux analyzer.
//
// An Engine holds mutable state (twiddle tables, window coefficients,
// working buffers) and must not be shared between goroutines.
package fft

import (
	"beatmap/pkg/bitint"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// ErrInvalidSize is returned when a transform is requested on a buffer
// whose length is not a power of two (or is too short to hold a pair).
var ErrInvalidSize = errors.New("fft: buffer length must be a power of two")

// Convention selects the scaling (A) and phase sign (B) of the forward
// and inverse transforms. For n complex points the forward transform is
// scaled by n^((A-1)/2) and the inverse by n^(-(A+1)/2); the forward
// exponent uses +B and the inverse -B.
type Convention struct {
	A int
	B int
}

// Common conventions.
var (
	NoScaling        = Convention{A: 0, B: 1}
	DataProcessing   = Convention{A: -1, B: 1}
	SignalProcessing = Convention{A: 1, B: -1}
)

// String implements fmt.Stringer.
func (c Convention) String() string {
	return fmt.Sprintf("(%d,%d)", c.A, c.B)
}

// workspace holds buffers reused between RealTransform calls.
type workspace struct {
	buffer []float64 // Interleaved complex working buffer (N reals).
	window []float64 // Hamming coefficients for len(buffer).
	real   []float64 // Unpacked real parts, N/2+1.
	imag   []float64 // Unpacked imaginary parts, N/2+1.
}

// Engine computes forward and inverse transforms for a fixed convention.
type Engine struct {
	convention Convention
	twiddles   twiddleCache
	workspace  workspace
}

// NewEngine returns an engine using convention c.
func NewEngine(c Convention) *Engine {
	return &Engine{convention: c}
}

// Configure sets the convention constants. It must not be called while a
// pass is in progress.
func (e *Engine) Configure(a, b int) {
	e.convention = Convention{A: a, B: b}
}

// Convention returns the active convention.
func (e *Engine) Convention() Convention {
	return e.convention
}

// RealTransform copies samples into the working buffer, optionally
// applies a Hamming window, and runs a forward complex transform over the
// N/2 interleaved pairs. The result is unpacked into N/2+1 bins: bin 0
// takes the real part of the first output pair, the Nyquist bin takes its
// imaginary part, and both are purely real.
//
// The returned slices belong to the engine and are overwritten by the
// next call.
func (e *Engine) RealTransform(samples []float64, applyWindow bool) (real, imag []float64, err error) {
	n := len(samples)
	if !bitint.IsTransformLength(n) {
		return nil, nil, fmt.Errorf("%w: got %d samples", ErrInvalidSize, n)
	}
	e.ensureWorkspace(n)

	ws := &e.workspace
	copy(ws.buffer, samples)
	if applyWindow {
		for i, w := range ws.window {
			ws.buffer[i] *= w
		}
	}

	if err := e.ComplexTransform(ws.buffer, true); err != nil {
		return nil, nil, err
	}

	half := n / 2
	ws.real[0] = ws.buffer[0]
	ws.imag[0] = 0
	for i := 2; i < n-1; i += 2 {
		ws.real[i/2] = ws.buffer[i]
		ws.imag[i/2] = ws.buffer[i+1]
	}
	ws.real[half] = ws.buffer[1]
	ws.imag[half] = 0

	return ws.real, ws.imag, nil
}

// PowerSpectrum fills dst with one magnitude per bin of the most recent
// RealTransform and returns it. dst is reallocated when its length does
// not match. The per-bin value is sqrt(re² · im²).
func (e *Engine) PowerSpectrum(dst []float64) []float64 {
	re, im := e.workspace.real, e.workspace.imag
	if len(dst) != len(re) {
		dst = make([]float64, len(re))
	}
	for i := range re {
		dst[i] = math.Sqrt((re[i] * re[i]) * (im[i] * im[i]))
	}
	return dst
}

// ComplexTransform computes the forward or inverse transform of data in
// place. data holds alternating real and imaginary parts, so its length
// must be a power of two and at least 2.
func (e *Engine) ComplexTransform(data []float64, forward bool) error {
	if !bitint.IsTransformLength(len(data)) {
		return fmt.Errorf("%w: got length %d", ErrInvalidSize, len(data))
	}

	n := len(data) / 2
	if n > 1 {
		reverse(data, n)
	}
	e.twiddles.ensure(n)

	sign := float64(e.convention.B)
	if !forward {
		sign = -sign
	}

	cos, sin := e.twiddles.cos, e.twiddles.sin
	mmax, tptr := 1, 0
	for n > mmax {
		istep := 2 * mmax
		for m := 0; m < istep; m += 2 {
			wr := cos[tptr]
			wi := sign * sin[tptr]
			tptr++
			for k := m; k < 2*n; k += 2 * istep {
				j := k + istep
				tempr := wr*data[j] - wi*data[j+1]
				tempi := wi*data[j] + wr*data[j+1]
				data[j] = data[k] - tempr
				data[j+1] = data[k+1] - tempi
				data[k] += tempr
				data[k+1] += tempi
			}
		}
		mmax = istep
	}

	e.scale(data, n, forward)
	return nil
}

// scale applies the convention's normalization. A == 1 leaves the forward
// transform unscaled and A == -1 leaves the inverse unscaled.
func (e *Engine) scale(data []float64, n int, forward bool) {
	a := float64(e.convention.A)
	if forward && e.convention.A == 1 || !forward && e.convention.A == -1 {
		return
	}

	exp := -(a + 1) / 2
	if forward {
		exp = (a - 1) / 2
	}
	s := math.Pow(float64(n), exp)
	for i := range data {
		data[i] *= s
	}
}

// ensureWorkspace sizes the real-transform buffers for n samples and
// recomputes the window coefficients when n changes.
func (e *Engine) ensureWorkspace(n int) {
	ws := &e.workspace
	if len(ws.buffer) == n {
		return
	}
	ws.buffer = make([]float64, n)
	ws.window = make([]float64, n)
	for i := range ws.window {
		ws.window[i] = 1.0
	}
	window.Hamming(ws.window)
	ws.real = make([]float64, n/2+1)
	ws.imag = make([]float64, n/2+1)
}

// reverse applies the bit-reversal permutation to n interleaved complex
// values (Knuth, TAOCP 7.2.1.1 exercise 5). k counts forward in steps of
// four doubles, j counts with its bits reversed; each step swaps pair j+1
// with k+n/2, and when j > k also swaps j with k and j+n/2+1 with
// k+n/2+1. n must be a power of two >= 2.
func reverse(data []float64, n int) {
	j, k := 0, 0
	top := n / 2
	for {
		data[j+2], data[k+n] = data[k+n], data[j+2]
		data[j+3], data[k+n+1] = data[k+n+1], data[j+3]
		if j > k {
			data[j], data[k] = data[k], data[j]
			data[j+1], data[k+1] = data[k+1], data[j+1]
			data[j+n+2], data[k+n+2] = data[k+n+2], data[j+n+2]
			data[j+n+3], data[k+n+3] = data[k+n+3], data[j+n+3]
		}

		k += 4
		if k >= n {
			break
		}

		h := top
		for j >= h {
			j -= h
			h /= 2
		}
		j += h
	}
}
