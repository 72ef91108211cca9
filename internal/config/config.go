package config

import (
	"beatmap/internal/analysis"
	"beatmap/internal/export"
	"beatmap/internal/fft"
	"beatmap/internal/onset"
)

// Configuration constants that define the boundaries and defaults for an
// analysis run.
const (
	DefaultLogLevel          = "info"
	DefaultFrameSize         = analysis.DefaultFrameSize
	DefaultSensitivity       = analysis.DefaultSensitivity
	DefaultThresholdTimeSpan = analysis.DefaultThresholdTimeSpan
	DefaultNormalization     = "none"
	DefaultFormat            = ""       // Inferred from the output path, else JSON
	DefaultUDPTargetAddress  = "127.0.0.1:9090"
	DefaultUDPSeries         = "onsets"
	DefaultWSAddress         = "127.0.0.1:8080"

	// Frame size limits, both powers of two.
	MinFrameSize = 64
	MaxFrameSize = 16384

	// DefaultFileName is searched for when no config path is given.
	DefaultFileName = "beatmap.yaml"
)

// Config holds all runtime configuration. It is built from defaults, a
// YAML file, ENV_* variables, and finally explicit command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Output    OutputConfig    `yaml:"output"`
	Transport TransportConfig `yaml:"transport"`

	// Command line only.
	Input   string `yaml:"-"` // Audio file to analyze.
	TUIMode bool   `yaml:"-"` // Browse results interactively.
}

// AnalysisConfig holds onset detection settings.
type AnalysisConfig struct {
	FrameSize         int     `yaml:"frame_size"`          // Samples per frame (power of two).
	Sensitivity       float64 `yaml:"sensitivity"`         // Threshold multiplier.
	ThresholdTimeSpan float64 `yaml:"threshold_time_span"` // Seconds averaged into the threshold.
	Rectify           bool    `yaml:"rectify"`             // Count only spectral increases.
	Window            bool    `yaml:"window"`              // Apply a Hamming window per frame.
	Normalization     string  `yaml:"normalization"`       // "none", "max", or "minmax".
	ConventionA       int     `yaml:"convention_a"`        // Transform scaling constant.
	ConventionB       int     `yaml:"convention_b"`        // Transform sign, 1 or -1.
}

// OutputConfig holds settings for written results.
type OutputConfig struct {
	Path          string `yaml:"path"`           // Result file; empty writes to stdout.
	Format        string `yaml:"format"`         // "json", "yaml", "csv", or empty to infer.
	IncludeSeries bool   `yaml:"include_series"` // Include full flux and onset series.
	ClickTrack    string `yaml:"click_track"`    // Optional WAV path for an audition click track.
}

// TransportConfig holds settings for publishing results over the network.
type TransportConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send series over UDP.
	UDPTargetAddress string `yaml:"udp_target_address"` // "host:port" for UDP packets.
	UDPSeries        string `yaml:"udp_series"`         // Series sent over UDP; empty sends all.
	WSEnabled        bool   `yaml:"ws_enabled"`         // Serve results over WebSocket.
	WSAddress        string `yaml:"ws_address"`         // Listen address for the WebSocket server.
}

// NewConfig returns a Config holding the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Analysis: AnalysisConfig{
			FrameSize:         DefaultFrameSize,
			Sensitivity:       DefaultSensitivity,
			ThresholdTimeSpan: DefaultThresholdTimeSpan,
			Rectify:           true,
			Window:            true,
			Normalization:     DefaultNormalization,
			ConventionA:       fft.NoScaling.A,
			ConventionB:       fft.NoScaling.B,
		},
		Output: OutputConfig{
			Format: DefaultFormat,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSeries:        DefaultUDPSeries,
			WSAddress:        DefaultWSAddress,
		},
	}
}

// AnalysisOptions converts the analysis settings into pass options.
func (c *Config) AnalysisOptions() (analysis.Options, error) {
	mode, err := onset.ParseNormalization(c.Analysis.Normalization)
	if err != nil {
		return analysis.Options{}, err
	}

	return analysis.Options{
		FrameSize:         c.Analysis.FrameSize,
		Sensitivity:       c.Analysis.Sensitivity,
		ThresholdTimeSpan: c.Analysis.ThresholdTimeSpan,
		Rectify:           c.Analysis.Rectify,
		ApplyWindow:       c.Analysis.Window,
		Normalization:     mode,
		Convention:        fft.Convention{A: c.Analysis.ConventionA, B: c.Analysis.ConventionB},
	}, nil
}

// OutputFormat resolves the output format. An explicit format wins; an
// empty one is inferred from the output path.
func (c *Config) OutputFormat() (export.Format, error) {
	if c.Output.Format == "" {
		return export.FormatFor(c.Output.Path, export.JSON), nil
	}
	return export.ParseFormat(c.Output.Format)
}
