// SPDX-License-Identifier: MIT
package onset

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// QuietestOnset replaces the series minimum under MinMaxRescale so the
// weakest frame keeps a small nonzero weight.
const QuietestOnset = 0.01

// Normalization selects how an onset series is rescaled after detection.
type Normalization int

const (
	None          Normalization = iota // Leave strengths as detected.
	MaxScale                           // Divide by the series maximum.
	MinMaxRescale                      // Map [min, max] to [0.01, 1].
)

// String implements fmt.Stringer.
func (n Normalization) String() string {
	switch n {
	case None:
		return "none"
	case MaxScale:
		return "max"
	case MinMaxRescale:
		return "minmax"
	default:
		return "unknown"
	}
}

// ParseNormalization converts a name (case-insensitive) to a Normalization.
// The numeric forms "0" and "1" select MaxScale and MinMaxRescale.
func ParseNormalization(name string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "max", "max-scale", "0":
		return MaxScale, nil
	case "minmax", "min-max", "min-max-rescale", "1":
		return MinMaxRescale, nil
	default:
		return None, fmt.Errorf("unknown normalization mode: '%s'", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (n Normalization) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Normalization) UnmarshalText(text []byte) error {
	parsed, err := ParseNormalization(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Normalize rescales values in place. Empty input is left untouched, as is
// a MaxScale series whose maximum is zero.
func Normalize(values []float64, mode Normalization) {
	if len(values) == 0 {
		return
	}

	switch mode {
	case MaxScale:
		hi := floats.Max(values)
		if hi == 0 {
			return
		}
		for i := range values {
			values[i] /= hi
		}

	case MinMaxRescale:
		lo, hi := floats.Min(values), floats.Max(values)
		span := hi - lo
		for i, v := range values {
			if v == lo {
				values[i] = QuietestOnset
			} else {
				values[i] = (v - lo) / span
			}
		}
	}
}
