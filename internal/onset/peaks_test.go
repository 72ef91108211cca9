// SPDX-License-Identifier: MIT
package onset

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func equalSeries(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHalfWidth(t *testing.T) {
	const frame = 1024.0 / 44100
	tests := []struct {
		span, frameDuration float64
		limit               int
		want                int
	}{
		{0.1, frame, 100, 2},
		{0.1, 512.0 / 44100, 100, 4}, // 4.31 rounds down
		{0.25, frame, 100, 5},        // 5.38 rounds down
		{0.12, frame, 100, 3},        // 2.58 rounds up
		{0, frame, 100, 0},
		{0.1, 0, 100, 0},
		{0.1, frame, 0, 0},
		{1, frame, 10, 10},
		{1e300, frame, 50, 50},
		{math.Inf(1), frame, 50, 50},
		{math.Inf(-1), frame, 50, 0},
		{math.NaN(), frame, 50, 0},
		{0.1, math.NaN(), 50, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%g/%g/%d", tt.span, tt.frameDuration, tt.limit), func(t *testing.T) {
			if got := HalfWidth(tt.span, tt.frameDuration, tt.limit); got != tt.want {
				t.Errorf("HalfWidth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImmunityPeriod(t *testing.T) {
	tests := []struct {
		frameSize, sampleRate, want int
	}{
		{1024, 44100, 2},
		{4096, 44100, 9},
		{512, 44100, 1},
		{256, 44100, 0},
		{2048, 48000, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%d", tt.frameSize, tt.sampleRate), func(t *testing.T) {
			if got := ImmunityPeriod(tt.frameSize, tt.sampleRate); got != tt.want {
				t.Errorf("ImmunityPeriod() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	got := Threshold([]float64{1, 2, 3, 4, 5}, 1, 2)
	want := []float64{3, 4, 6, 8, 9}
	if !equalSeries(got, want) {
		t.Errorf("Threshold() = %v, want %v", got, want)
	}

	// A zero half-width averages each value with itself only.
	got = Threshold([]float64{1, 2, 3}, 0, 1.5)
	want = []float64{1.5, 3, 4.5}
	if !equalSeries(got, want) {
		t.Errorf("Threshold(halfWidth=0) = %v, want %v", got, want)
	}

	// A window wider than the series covers all of it.
	got = Threshold([]float64{2, 4}, 10, 1)
	want = []float64{3, 3}
	if !equalSeries(got, want) {
		t.Errorf("Threshold(wide) = %v, want %v", got, want)
	}
}

func TestPickPeaks(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		threshold []float64
		immunity  int
		want      []float64
	}{
		{
			name:      "cleanup and immunity",
			values:    []float64{5, 1, 9, 3, 0, 7, 8, 2},
			threshold: make([]float64, 8),
			immunity:  3,
			want:      []float64{0, 0, 9, 0, 0, 0, 8, 0},
		},
		{
			name:      "below threshold clamps to zero",
			values:    []float64{0, 1, 4, 1, 0},
			threshold: []float64{2, 2, 2, 2, 2},
			immunity:  1,
			want:      []float64{0, 0, 2, 0, 0},
		},
		{
			// The local maximum at 1 loses to its larger right neighbour.
			name:      "ascending neighbour wins",
			values:    []float64{0, 5, 6, 0},
			threshold: make([]float64, 4),
			immunity:  3,
			want:      []float64{0, 0, 6, 0},
		},
		{
			name:      "index zero never peaks",
			values:    []float64{10, 0, 0},
			threshold: make([]float64, 3),
			immunity:  2,
			want:      []float64{0, 0, 0},
		},
		{
			name:      "immunity window clipped at end",
			values:    []float64{0, 3, 2, 1},
			threshold: make([]float64, 4),
			immunity:  10,
			want:      []float64{0, 3, 0, 0},
		},
		{
			name:      "empty",
			values:    []float64{},
			threshold: []float64{},
			immunity:  2,
			want:      []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PickPeaks(tt.values, tt.threshold, tt.immunity); !equalSeries(got, tt.want) {
				t.Errorf("PickPeaks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPickPeaksSpacing(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for _, immunity := range []int{0, 1, 2, 5, 9} {
		t.Run(fmt.Sprintf("immunity=%d", immunity), func(t *testing.T) {
			values := make([]float64, 2000)
			for i := range values {
				values[i] = rng.Float64()
			}
			peaks := PickPeaks(values, Threshold(values, 2, 1.1), immunity)

			if peaks[0] != 0 {
				t.Fatalf("peak at index 0: %g", peaks[0])
			}
			last := -1
			for i, v := range peaks {
				if v < 0 {
					t.Fatalf("negative onset %g at %d", v, i)
				}
				if v == 0 {
					continue
				}
				if last >= 0 && i-last < immunity {
					t.Fatalf("peaks at %d and %d are closer than %d", last, i, immunity)
				}
				last = i
			}
		})
	}
}
