// SPDX-License-Identifier: MIT
/*
Package audio adapts decoded PCM into the fixed-size mono frames consumed
by onset detection:
- WAV decoding through go-audio/wav
- In-memory sources for generated or pre-decoded signals
- Stereo to mono downmix by per-pair averaging
- Click-track rendering for auditioning detected onsets

Frames are delivered as a lazy, finite, single-use sequence. The final
partial frame is zero-padded to full length. Frame slices are reused
between iterations, so consumers must copy a frame they want to keep.
*/
package audio

import (
	"errors"
	"fmt"
	"iter"
)

// MaxChannels is the largest channel count a source accepts.
const MaxChannels = 2

var (
	// ErrUnsupportedFormat reports audio with a channel count or encoding
	// the adapter cannot downmix.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
	// ErrSourceUnavailable reports a source that cannot be opened or read.
	ErrSourceUnavailable = errors.New("audio: source unavailable")
	// ErrSourceConsumed is yielded when a source's frames are requested twice.
	ErrSourceConsumed = errors.New("audio: source already consumed")
)

// Format describes the PCM stream behind a source.
type Format struct {
	SampleRate int // Samples per second per channel.
	Channels   int // 1 (mono) or 2 (stereo).
	BitDepth   int // Bits per sample of the encoded data, 0 if not applicable.
}

// Validate checks sample rate and channel count.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > MaxChannels {
		return fmt.Errorf("%w: %d channels (max %d)", ErrUnsupportedFormat, f.Channels, MaxChannels)
	}
	return nil
}

// Source supplies mono frames from a decoded audio stream.
type Source interface {
	// Format returns the stream format.
	Format() Format
	// Frames returns the stream as mono frames of frameSize samples. The
	// sequence ends when the source is exhausted and cannot be restarted;
	// a read failure is yielded once with a non-nil error.
	Frames(frameSize int) iter.Seq2[[]float64, error]
	// Close releases the underlying resources.
	Close() error
}

// framer assembles interleaved chunks into padded mono frames.
type framer struct {
	channels int
	chunk    []float64 // Interleaved samples for one frame.
	frame    []float64 // Mono output, reused per frame.
}

func newFramer(frameSize, channels int) *framer {
	return &framer{
		channels: channels,
		chunk:    make([]float64, frameSize*channels),
		frame:    make([]float64, frameSize),
	}
}

// emit downmixes the first n interleaved samples of f.chunk and zero-pads
// the rest of the frame.
func (f *framer) emit(n int) []float64 {
	mono := Downmix(f.frame, f.chunk[:n], f.channels)
	clear(f.frame[len(mono):])
	return f.frame
}

// consumedSeq yields ErrSourceConsumed once.
func consumedSeq() iter.Seq2[[]float64, error] {
	return func(yield func([]float64, error) bool) {
		yield(nil, ErrSourceConsumed)
	}
}

// invalidFrameSeq yields a frame-size error once.
func invalidFrameSeq(frameSize int) iter.Seq2[[]float64, error] {
	return func(yield func([]float64, error) bool) {
		yield(nil, fmt.Errorf("audio: frame size must be positive, got %d", frameSize))
	}
}
