// SPDX-License-Identifier: MIT
package fft

import "math"

// twiddleCache holds the butterfly coefficients for one transform size,
// keyed by the number of complex points.
type twiddleCache struct {
	size int
	cos  []float64
	sin  []float64
}

// ensure makes the tables valid for n complex points, rebuilding them
// only when n differs from the cached size. It reports whether a rebuild
// happened.
func (c *twiddleCache) ensure(n int) bool {
	if c.cos != nil && c.size == n {
		return false
	}
	c.build(n)
	return true
}

// build fills the tables pass by pass with the trigonometric recurrence
// w <- w + w·(wpr + i·wpi), where wpr = -2sin²(θ/2) and wpi = sin(θ) for
// θ = π/mmax. Pass mmax contributes mmax entries, n-1 in total.
func (c *twiddleCache) build(n int) {
	c.size = n
	c.cos = make([]float64, n)
	c.sin = make([]float64, n)

	mmax, pos := 1, 0
	for n > mmax {
		istep := 2 * mmax
		theta := math.Pi / float64(mmax)
		wr, wi := 1.0, 0.0
		wpi := math.Sin(theta)
		wpr := math.Sin(theta / 2)
		wpr = -2 * wpr * wpr

		for m := 0; m < istep; m += 2 {
			c.cos[pos] = wr
			c.sin[pos] = wi
			pos++
			t := wr
			wr = wr*wpr - wi*wpi + wr
			wi = wi*wpr + t*wpi + wi
		}
		mmax = istep
	}
}
