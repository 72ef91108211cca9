// SPDX-License-Identifier: MIT
package onset

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HalfWidth converts a threshold window of span seconds into a half-width
// in frames: round(span / (2*frameDuration)), capped at limit. Spans that
// are not positive, including NaN, give zero.
func HalfWidth(span, frameDuration float64, limit int) int {
	if !(frameDuration > 0) || !(span > 0) || limit <= 0 {
		return 0
	}
	w := math.Round(span / (2 * frameDuration))
	if w >= float64(limit) {
		return limit
	}
	return int(w)
}

// ImmunityPeriod returns floor(frameSize / sampleRate / MinTimeBetweenPeaks).
func ImmunityPeriod(frameSize, sampleRate int) int {
	return int(math.Floor(float64(frameSize) / float64(sampleRate) / MinTimeBetweenPeaks))
}

// Threshold returns, for every index, the mean of values over
// [i-halfWidth, i+halfWidth] clamped to the series, times sensitivity.
func Threshold(values []float64, halfWidth int, sensitivity float64) []float64 {
	threshold := make([]float64, len(values))
	for i := range values {
		start := max(i-halfWidth, 0)
		end := min(i+halfWidth+1, len(values))
		threshold[i] = stat.Mean(values[start:end], nil) * sensitivity
	}
	return threshold
}

// PickPeaks returns max(0, values[i]-threshold[i]) after cleanup. Index 0
// is always zero. Scanning left to right, a value smaller than its right
// neighbour is dropped; a surviving positive value suppresses every value
// in the following immunity-1 positions.
//
// A true maximum that is immediately followed by a larger value inside the
// immunity window loses to its neighbour, so results depend on scan order.
func PickPeaks(values, threshold []float64, immunity int) []float64 {
	peaks := make([]float64, len(values))
	for i, v := range values {
		peaks[i] = max(0, v-threshold[i])
	}
	if len(peaks) == 0 {
		return peaks
	}

	peaks[0] = 0
	for i := 1; i < len(peaks)-1; i++ {
		if peaks[i] < peaks[i+1] {
			peaks[i] = 0
			continue
		}
		if peaks[i] > 0 {
			for j := i + 1; j < i+immunity && j < len(peaks); j++ {
				peaks[j] = 0
			}
		}
	}
	return peaks
}
