// SPDX-License-Identifier: MIT

// Package export writes analysis results as JSON, YAML, or CSV for chart
// editors and offline inspection.
package export

import (
	"beatmap/internal/analysis"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for unrecognized output format names.
var ErrUnknownFormat = errors.New("export: unknown format")

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
)

// ParseFormat accepts a format name or a file extension, case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFor picks the format for path from its extension, falling back
// to fallback when the extension is not recognized.
func FormatFor(path string, fallback Format) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return fallback
}

// Document is the serialized form of a pass.
type Document struct {
	Source        string           `json:"source,omitempty" yaml:"source,omitempty"`
	SampleRate    int              `json:"sampleRate" yaml:"sampleRate"`
	Channels      int              `json:"channels" yaml:"channels"`
	FrameSize     int              `json:"frameSize" yaml:"frameSize"`
	TimePerFrame  float64          `json:"timePerFrame" yaml:"timePerFrame"`
	Frames        int              `json:"frames" yaml:"frames"`
	Duration      float64          `json:"duration" yaml:"duration"`
	Sensitivity   float64          `json:"sensitivity" yaml:"sensitivity"`
	Normalization string           `json:"normalization" yaml:"normalization"`
	Events        []analysis.Event `json:"events" yaml:"events"`
	Flux          []float64        `json:"flux,omitempty" yaml:"flux,omitempty"`
	Onsets        []float64        `json:"onsets,omitempty" yaml:"onsets,omitempty"`
}

// NewDocument builds a Document from r. The full per-frame series are
// included only when includeSeries is set.
func NewDocument(r *analysis.Result, includeSeries bool) Document {
	doc := Document{
		Source:        r.Source,
		SampleRate:    r.Format.SampleRate,
		Channels:      r.Format.Channels,
		FrameSize:     r.FrameSize,
		TimePerFrame:  r.TimePerFrame,
		Frames:        r.Frames(),
		Duration:      r.Duration(),
		Sensitivity:   r.Sensitivity,
		Normalization: r.Normalization.String(),
		Events:        r.Events(),
	}
	if includeSeries {
		doc.Flux = r.Flux
		doc.Onsets = r.Onsets
	}
	return doc
}

// Write encodes r to w. CSV always holds one row per frame; JSON and YAML
// hold the event list plus, with includeSeries, both series.
func Write(w io.Writer, r *analysis.Result, format Format, includeSeries bool) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(r, includeSeries))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(r, includeSeries)); err != nil {
			return err
		}
		return enc.Close()
	case CSV:
		return writeCSV(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile creates path and writes r into it.
func WriteFile(path string, r *analysis.Result, format Format, includeSeries bool) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(file, r, format, includeSeries); err != nil {
		file.Close()
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	return file.Close()
}

func writeCSV(w io.Writer, r *analysis.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "time", "flux", "onset"}); err != nil {
		return err
	}

	for i := range r.Flux {
		onset := 0.0
		if i < len(r.Onsets) {
			onset = r.Onsets[i]
		}
		record := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(r.TimeAt(i), 'f', 6, 64),
			strconv.FormatFloat(r.Flux[i], 'g', -1, 64),
			strconv.FormatFloat(onset, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
