// Package utils holds signal generators and fakes shared by tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport records everything sent through it instead of transmitting.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
	Err    error // Returned from Send when set.
}

// Send stores the message for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Messages returns a snapshot of the recorded messages.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Sent...)
}

// GenerateComplexWave returns a 440Hz tone with two harmonics, peaking at 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency Hz with amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateSilence returns seconds of zero samples at sampleRate.
func GenerateSilence(seconds float64, sampleRate int) []float64 {
	return make([]float64, int(seconds*float64(sampleRate)))
}

// GenerateImpulseTrain returns seconds of silence with a unit impulse at
// every multiple of period seconds, starting at t=0.
func GenerateImpulseTrain(seconds, period float64, sampleRate int) []float64 {
	buffer := GenerateSilence(seconds, sampleRate)
	for k := 0; ; k++ {
		idx := int(math.Round(float64(k) * period * float64(sampleRate)))
		if idx >= len(buffer) {
			break
		}
		buffer[idx] = 1
	}
	return buffer
}

// Interleave zips left and right channels into one stereo buffer. The
// shorter channel bounds the output length.
func Interleave(left, right []float64) []float64 {
	n := min(len(left), len(right))
	out := make([]float64, 2*n)
	for i := range n {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out
}

// FindPeakIndex returns the index of the largest value within
// [start, end], clamped to the slice bounds.
func FindPeakIndex(values []float64, start, end int) int {
	if len(values) == 0 {
		return 0
	}

	if start < 0 {
		start = 0
	}

	if end >= len(values) {
		end = len(values) - 1
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}

	return peak
}

// NonZeroIndices returns the positions of all nonzero entries.
func NonZeroIndices(values []float64) []int {
	var idx []int
	for i, v := range values {
		if v != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}
