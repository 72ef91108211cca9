// SPDX-License-Identifier: MIT
package audio

import "iter"

// SliceSource serves frames from interleaved samples held in memory.
type SliceSource struct {
	format   Format
	samples  []float64
	consumed bool
}

// NewSliceSource wraps interleaved samples in [-1, 1]. It fails with
// ErrUnsupportedFormat for more than two channels.
func NewSliceSource(interleaved []float64, sampleRate, channels int) (*SliceSource, error) {
	format := Format{SampleRate: sampleRate, Channels: channels}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &SliceSource{format: format, samples: interleaved}, nil
}

// Format implements Source.
func (s *SliceSource) Format() Format {
	return s.format
}

// Frames implements Source.
func (s *SliceSource) Frames(frameSize int) iter.Seq2[[]float64, error] {
	if frameSize <= 0 {
		return invalidFrameSeq(frameSize)
	}
	if s.consumed {
		return consumedSeq()
	}
	s.consumed = true

	return func(yield func([]float64, error) bool) {
		f := newFramer(frameSize, s.format.Channels)
		step := len(f.chunk)
		for start := 0; start < len(s.samples); start += step {
			n := copy(f.chunk, s.samples[start:min(start+step, len(s.samples))])
			if !yield(f.emit(n), nil) {
				return
			}
		}
	}
}

// Close implements Source.
func (s *SliceSource) Close() error {
	return nil
}

var _ Source = (*SliceSource)(nil)
