// SPDX-License-Identifier: MIT
package analysis

import (
	applog "beatmap/internal/log"
	"beatmap/internal/transport"
	"fmt"
)

// Publish sends a pass through t: a summary, the flux and onset series,
// and one event per detected onset, in that order.
func Publish(t transport.Transport, r *Result) error {
	if t == nil {
		return fmt.Errorf("analysis: transport is nil, cannot publish")
	}

	events := r.Events()
	summary := map[string]any{
		"type":          transport.TypeSummary,
		"source":        r.Source,
		"sampleRate":    r.Format.SampleRate,
		"channels":      r.Format.Channels,
		"frameSize":     r.FrameSize,
		"timePerFrame":  r.TimePerFrame,
		"frames":        r.Frames(),
		"duration":      r.Duration(),
		"normalization": r.Normalization.String(),
		"onsets":        len(events),
	}

	messages := []any{
		summary,
		transport.NewSeries("flux", r.TimePerFrame, r.Flux),
		transport.NewSeries("onsets", r.TimePerFrame, r.Onsets),
	}
	for _, e := range events {
		messages = append(messages, map[string]any{
			"type":     transport.TypeEvent,
			"name":     "onset",
			"index":    e.Index,
			"time":     e.Time,
			"strength": e.Strength,
		})
	}

	for i, m := range messages {
		if err := t.Send(m); err != nil {
			return fmt.Errorf("analysis: publishing message %d of %d: %w", i+1, len(messages), err)
		}
	}
	applog.Infof("Analysis: Published %d messages", len(messages))
	return nil
}
