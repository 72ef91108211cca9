// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Click shape used when auditioning onsets.
const (
	ClickFrequency = 1000.0 // Hz
	ClickDuration  = 0.02   // Seconds
	clickDecay     = 200.0  // Exponential decay rate, 1/s
	clickBitDepth  = 16
)

// WriteClickTrack renders a mono 16-bit WAV with one decaying click per
// nonzero entry of onsets. Entry i starts at sample i*frameSize; click
// amplitude is the entry's strength relative to the strongest onset. The
// track is len(onsets)*frameSize samples long.
func WriteClickTrack(w io.WriteSeeker, onsets []float64, frameSize, sampleRate int) error {
	if frameSize <= 0 || sampleRate <= 0 {
		return fmt.Errorf("audio: click track needs positive frame size and sample rate, got %d and %d",
			frameSize, sampleRate)
	}

	peak := 0.0
	for _, v := range onsets {
		peak = max(peak, v)
	}

	click := renderClick(sampleRate)
	span := (len(click) + frameSize - 1) / frameSize // Frames a click can reach into.
	fullScale := float64(int(1)<<(clickBitDepth-1) - 1)

	encoder := wav.NewEncoder(w, sampleRate, clickBitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, frameSize),
		SourceBitDepth: clickBitDepth,
	}
	mix := make([]float64, frameSize)

	if len(onsets) == 0 {
		// The header is only emitted on the first write.
		if err := encoder.Write(&audio.IntBuffer{Format: buf.Format, SourceBitDepth: clickBitDepth}); err != nil {
			return fmt.Errorf("audio: writing click track: %w", err)
		}
	}

	for frame := range onsets {
		clear(mix)
		for src := max(0, frame-span); src <= frame; src++ {
			if onsets[src] <= 0 || peak <= 0 {
				continue
			}
			gain := onsets[src] / peak
			offset := (frame - src) * frameSize // Position of this frame inside the click.
			for i := range mix {
				if j := offset + i; j < len(click) {
					mix[i] += gain * click[j]
				}
			}
		}

		for i, v := range mix {
			buf.Data[i] = int(math.Round(math.Max(-1, math.Min(1, v)) * fullScale))
		}
		if err := encoder.Write(buf); err != nil {
			return fmt.Errorf("audio: writing click track: %w", err)
		}
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("audio: finalizing click track: %w", err)
	}
	return nil
}

// WriteClickTrackFile creates path and writes the click track into it.
func WriteClickTrackFile(path string, onsets []float64, frameSize, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteClickTrack(file, onsets, frameSize, sampleRate); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func renderClick(sampleRate int) []float64 {
	n := int(ClickDuration*float64(sampleRate)) + 1
	click := make([]float64, n)
	for i := range click {
		t := float64(i) / float64(sampleRate)
		click[i] = math.Sin(2*math.Pi*ClickFrequency*t) * math.Exp(-clickDecay*t)
	}
	return click
}
