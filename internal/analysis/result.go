// SPDX-License-Identifier: MIT
package analysis

import (
	"beatmap/internal/audio"
	"beatmap/internal/onset"
)

// Event is one detected onset.
type Event struct {
	Index    int     `json:"index" yaml:"index"`       // Frame index.
	Time     float64 `json:"time" yaml:"time"`         // Seconds from the start of the source.
	Strength float64 `json:"strength" yaml:"strength"` // Onset strength after normalization.
}

// Result is the outcome of one completed pass.
type Result struct {
	Source        string              // Source name, empty for unnamed sources.
	Format        audio.Format        // Format of the analyzed source.
	FrameSize     int                 // Samples per frame.
	TimePerFrame  float64             // Seconds per frame.
	Sensitivity   float64             // Threshold multiplier used.
	Normalization onset.Normalization // Rescaling applied to Onsets.
	Flux          []float64           // One spectral flux value per frame.
	Onsets        []float64           // One onset strength per frame, 0 when none.
}

// Frames returns the number of analyzed frames.
func (r *Result) Frames() int {
	return len(r.Flux)
}

// Duration returns the analyzed length in seconds, including padding of
// the final frame.
func (r *Result) Duration() float64 {
	return float64(r.Frames()) * r.TimePerFrame
}

// TimeAt returns the start time in seconds of frame i.
func (r *Result) TimeAt(i int) float64 {
	return float64(i) * r.TimePerFrame
}

// Events returns the nonzero onsets in frame order.
func (r *Result) Events() []Event {
	events := make([]Event, 0, len(r.Onsets)/8)
	for i, v := range r.Onsets {
		if v != 0 {
			events = append(events, Event{Index: i, Time: r.TimeAt(i), Strength: v})
		}
	}
	return events
}
