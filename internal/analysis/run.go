// SPDX-License-Identifier: MIT

// Package analysis runs complete onset-detection passes: it pulls frames
// from an audio source through an onset detector, honours cancellation
// between frames, and packages the series with their timing.
package analysis

import (
	"beatmap/internal/audio"
	applog "beatmap/internal/log"
	"beatmap/internal/onset"
	"context"
	"fmt"
	"time"
)

type named interface {
	Name() string
}

// Run analyzes src with opts. Each call builds a fresh detector, so the
// previous-spectrum state never carries between passes. A source error or
// a cancelled ctx aborts the pass without a partial result.
func Run(ctx context.Context, src audio.Source, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	format := src.Format()
	detector, err := onset.NewDetector(format.SampleRate, opts.FrameSize,
		onset.WithRectify(opts.Rectify),
		onset.WithWindow(opts.ApplyWindow),
		onset.WithConvention(opts.Convention),
	)
	if err != nil {
		return nil, err
	}

	name := ""
	if n, ok := src.(named); ok {
		name = n.Name()
	}

	applog.Infof("Analysis: Starting pass (Source: %q, %d Hz, %d ch, Frame: %d, Sensitivity: %.2f)",
		name, format.SampleRate, format.Channels, opts.FrameSize, opts.Sensitivity)
	start := time.Now()

	for frame, err := range src.Frames(opts.FrameSize) {
		if err != nil {
			return nil, fmt.Errorf("analysis: reading frame %d: %w", detector.Frames(), err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis: cancelled after %d frames: %w", detector.Frames(), err)
		}
		if _, err := detector.AddFrame(frame); err != nil {
			return nil, err
		}

		if applog.Enabled(applog.LevelDebug) {
			flux := detector.Flux()
			applog.Debugf("Analysis: Frame %d flux %.6f", len(flux)-1, flux[len(flux)-1])
		}
		if opts.Progress != nil {
			opts.Progress(detector.Frames())
		}
	}
	// The source is exhausted.
	if _, err := detector.AddFrame(nil); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis: cancelled after %d frames: %w", detector.Frames(), err)
	}

	detector.Detect(opts.Sensitivity, opts.ThresholdTimeSpan)
	detector.Normalize(opts.Normalization)

	result := &Result{
		Source:        name,
		Format:        format,
		FrameSize:     opts.FrameSize,
		TimePerFrame:  detector.TimePerFrame(),
		Sensitivity:   opts.Sensitivity,
		Normalization: opts.Normalization,
		Flux:          detector.Flux(),
		Onsets:        detector.Onsets(),
	}

	applog.Infof("Analysis: Finished %d frames (%.2fs of audio) in %s, %d onsets",
		result.Frames(), result.Duration(), time.Since(start).Round(time.Millisecond), len(result.Events()))
	return result, nil
}
