// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// WAV format tags accepted by the decoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVSource decodes integer PCM from a WAV file.
type WAVSource struct {
	name     string
	file     *os.File
	decoder  *wav.Decoder
	format   Format
	consumed bool
}

// OpenWAV opens path and reads its header. Files that are missing or not
// valid WAV fail with ErrSourceUnavailable; more than two channels or a
// non-PCM encoding fail with ErrUnsupportedFormat.
func OpenWAV(path string) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		if decoder.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, decoder.Err())
		}
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrSourceUnavailable, path)
	}

	if tag := decoder.WavAudioFormat; tag != wavFormatPCM && tag != wavFormatExtensible {
		file.Close()
		return nil, fmt.Errorf("%w: WAV encoding tag %d is not integer PCM", ErrUnsupportedFormat, tag)
	}
	if decoder.WavAudioFormat == wavFormatExtensible {
		sub, err := extensibleSubFormat(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: %s: reading extensible format: %w", ErrSourceUnavailable, path, err)
		}
		if sub != wavFormatPCM {
			file.Close()
			return nil, fmt.Errorf("%w: WAV extensible subformat %d is not integer PCM", ErrUnsupportedFormat, sub)
		}
		if err := decoder.Rewind(); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, err)
		}
	}

	format := Format{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}
	if err := format.Validate(); err != nil {
		file.Close()
		return nil, err
	}

	return &WAVSource{
		name:    filepath.Base(path),
		file:    file,
		decoder: decoder,
		format:  format,
	}, nil
}

// extensibleSubFormat reads the format code from the first two bytes of
// the SubFormat GUID in a WAVE_FORMAT_EXTENSIBLE fmt chunk. It moves r.
func extensibleSubFormat(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil {
		return 0, err
	}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return 0, err
		}
		if chunk.ID != riff.FmtID {
			if _, err := io.CopyN(io.Discard, chunk.R, int64(chunk.Size)); err != nil {
				return 0, err
			}
			continue
		}

		// 16 byte base header, cbSize, valid bits, channel mask, GUID.
		body := make([]byte, chunk.Size)
		if _, err := io.ReadFull(chunk.R, body); err != nil {
			return 0, err
		}
		if len(body) < 26 {
			return 0, fmt.Errorf("fmt chunk of %d bytes has no subformat", len(body))
		}
		return binary.LittleEndian.Uint16(body[24:26]), nil
	}
}

// Name returns the base name of the opened file.
func (s *WAVSource) Name() string {
	return s.name
}

// Format implements Source.
func (s *WAVSource) Format() Format {
	return s.format
}

// Frames implements Source. Samples are scaled to [-1, 1) by bit depth;
// 8-bit WAV data is unsigned and is re-centred first.
func (s *WAVSource) Frames(frameSize int) iter.Seq2[[]float64, error] {
	if frameSize <= 0 {
		return invalidFrameSeq(frameSize)
	}
	if s.consumed {
		return consumedSeq()
	}
	s.consumed = true

	return func(yield func([]float64, error) bool) {
		f := newFramer(frameSize, s.format.Channels)
		buf := &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: s.format.Channels,
				SampleRate:  s.format.SampleRate,
			},
			Data:           make([]int, len(f.chunk)),
			SourceBitDepth: s.format.BitDepth,
		}

		offset := 0
		if s.format.BitDepth == 8 {
			offset = 128
		}
		scale := 1 / float64(int(1)<<(s.format.BitDepth-1))

		for {
			n, err := s.decoder.PCMBuffer(buf)
			if err != nil && !errors.Is(err, io.EOF) {
				yield(nil, fmt.Errorf("%w: reading %s: %w", ErrSourceUnavailable, s.name, err))
				return
			}
			if n == 0 {
				return
			}

			for i, v := range buf.Data[:n] {
				f.chunk[i] = float64(v-offset) * scale
			}
			if !yield(f.emit(n), nil) {
				return
			}
			if n < len(buf.Data) {
				return
			}
		}
	}
}

// Close implements Source.
func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var _ Source = (*WAVSource)(nil)
