package cmd

import (
	"beatmap/internal/config"
	"beatmap/pkg/build"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagValues receives the raw flag values; only flags set explicitly on
// the command line are copied into the loaded configuration.
type flagValues struct {
	configPath    string
	frameSize     int
	sensitivity   float64
	thresholdSpan float64
	noRectify     bool
	noWindow      bool
	normalize     string
	conventionA   int
	conventionB   int
	output        string
	format        string
	series        bool
	clickTrack    string
	udp           string
	ws            string
	tui           bool
	verbose       bool
	logLevel      string
}

// ParseArgs parses args and returns the resolved configuration for the
// analyze command. It returns a nil config and nil error when a command
// such as --help or --version completed without requesting analysis.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		result *config.Config
		values flagValues
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Detect onsets in a WAV file",
		Long: "Analyze a mono or stereo WAV file with spectral flux onset detection and\n" +
			"write the detected onsets as JSON, YAML, or CSV.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadConfig(values.configPath)
			if err != nil {
				return err
			}
			applyFlags(cfg, cmd.Flags(), &values)
			cfg.Input = args[0]

			// Flags may repair an invalid file value, so validate once at the end.
			if err := cfg.Validate(); err != nil {
				return err
			}
			result = cfg
			return nil
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()

	// Configuration file
	flags.StringVarP(&values.configPath, "config", "c", "",
		"Path to a YAML config file (default: "+config.DefaultFileName+" if present)")

	// Detection
	flags.IntVarP(&values.frameSize, "frame-size", "f", config.DefaultFrameSize,
		"Samples per analysis frame (power of two)")
	flags.Float64VarP(&values.sensitivity, "sensitivity", "s", config.DefaultSensitivity,
		"Threshold multiplier over the local mean flux; higher finds fewer onsets")
	flags.Float64Var(&values.thresholdSpan, "threshold-span", config.DefaultThresholdTimeSpan,
		"Seconds of flux averaged into the adaptive threshold")
	flags.BoolVar(&values.noRectify, "no-rectify", false,
		"Count spectral decreases as well as increases")
	flags.BoolVar(&values.noWindow, "no-window", false,
		"Skip the Hamming window before each transform")
	flags.StringVarP(&values.normalize, "normalize", "n", config.DefaultNormalization,
		"Onset strength normalization: none, max, or minmax")
	flags.IntVar(&values.conventionA, "convention-a", 0,
		"Transform scaling constant A")
	flags.IntVar(&values.conventionB, "convention-b", 1,
		"Transform sign constant B (1 or -1)")

	// Output
	flags.StringVarP(&values.output, "output", "o", "",
		"Result file (default: stdout)")
	flags.StringVar(&values.format, "format", config.DefaultFormat,
		"Result format: json, yaml, or csv (default: from --output extension, else json)")
	flags.BoolVar(&values.series, "series", false,
		"Include the full flux and onset series in JSON/YAML output")
	flags.StringVar(&values.clickTrack, "click-track", "",
		"Also render a WAV click track of the onsets to this path")

	// Transport
	flags.StringVar(&values.udp, "udp", "",
		"Send the onset series as UDP packets to host:port")
	flags.StringVar(&values.ws, "ws", "",
		"Serve results to WebSocket clients on this address until interrupted")

	// Interface and logging
	flags.BoolVarP(&values.tui, "tui", "t", false,
		"Browse detected onsets in an interactive terminal UI")
	flags.BoolVarP(&values.verbose, "verbose", "v", false,
		"Show verbose output")
	flags.StringVar(&values.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, or error")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, fmt.Errorf("%w (run '%s --help' for usage)", err, buildInfo.Name)
	}
	return result, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, v *flagValues) {
	changed := flags.Changed

	if changed("frame-size") {
		cfg.Analysis.FrameSize = v.frameSize
	}
	if changed("sensitivity") {
		cfg.Analysis.Sensitivity = v.sensitivity
	}
	if changed("threshold-span") {
		cfg.Analysis.ThresholdTimeSpan = v.thresholdSpan
	}
	if changed("no-rectify") {
		cfg.Analysis.Rectify = !v.noRectify
	}
	if changed("no-window") {
		cfg.Analysis.Window = !v.noWindow
	}
	if changed("normalize") {
		cfg.Analysis.Normalization = v.normalize
	}
	if changed("convention-a") {
		cfg.Analysis.ConventionA = v.conventionA
	}
	if changed("convention-b") {
		cfg.Analysis.ConventionB = v.conventionB
	}

	if changed("output") {
		cfg.Output.Path = v.output
	}
	if changed("format") {
		cfg.Output.Format = v.format
	}
	if changed("series") {
		cfg.Output.IncludeSeries = v.series
	}
	if changed("click-track") {
		cfg.Output.ClickTrack = v.clickTrack
	}

	if changed("udp") {
		cfg.Transport.UDPEnabled = v.udp != ""
		cfg.Transport.UDPTargetAddress = v.udp
	}
	if changed("ws") {
		cfg.Transport.WSEnabled = v.ws != ""
		cfg.Transport.WSAddress = v.ws
	}

	if changed("tui") {
		cfg.TUIMode = v.tui
	}
	if changed("verbose") {
		cfg.Debug = v.verbose
	}
	if changed("log-level") {
		cfg.LogLevel = v.logLevel
	}
}
