// Package transport delivers analysis results to external consumers such as
// visualizers, chart editors, or game clients.
package transport

import "errors"

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// Message types carried in the "type" field of every payload.
const (
	TypeSummary = "summary"
	TypeSeries  = "series"
	TypeEvent   = "event"
)

// Series is a whole per-frame series (onsets or flux) sent in one message.
// Value i belongs to the frame starting at i*TimePerFrame seconds.
type Series struct {
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	TimePerFrame float64   `json:"timePerFrame"`
	Values       []float64 `json:"values"`
}

// NewSeries returns a Series message named name.
func NewSeries(name string, timePerFrame float64, values []float64) Series {
	return Series{Type: TypeSeries, Name: name, TimePerFrame: timePerFrame, Values: values}
}

// Fanout sends every message to each of its transports in order.
type Fanout []Transport

// Send delivers data to all transports and returns the first error after
// trying every one.
func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all transports.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
