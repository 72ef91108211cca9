package main

import (
	"beatmap/cmd"
	"beatmap/internal/analysis"
	"beatmap/internal/audio"
	"beatmap/internal/config"
	"beatmap/internal/export"
	applog "beatmap/internal/log"
	"beatmap/internal/transport"
	"beatmap/internal/transport/udp"
	"beatmap/internal/tui"
	"beatmap/pkg/build"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// progressEvery is the frame interval between debug progress lines.
const progressEvery = 512

// main is the entry point for the onset analysis tool.
// The program flow is divided into three phases:
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Configure logging
//
// 2. Analysis Phase:
//   - Open the audio source
//   - Run onset detection, cancellable by SIGINT/SIGTERM
//
// 3. Delivery Phase:
//   - Export results and render the click track
//   - Publish through the configured transports
//   - Browse results in the TUI or serve WebSocket clients until interrupted
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		applog.Warnf("Build: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
	if cfg == nil {
		return // Help or version was printed
	}

	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		applog.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	// The TUI owns the terminal.
	if cfg.TUIMode {
		applog.SetOutput(io.Discard)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	opts, err := cfg.AnalysisOptions()
	if err != nil {
		return err
	}
	format, err := cfg.OutputFormat()
	if err != nil {
		return err
	}

	// ==================== ANALYSIS PHASE ====================

	src, err := audio.OpenWAV(cfg.Input)
	if err != nil {
		return err
	}
	defer src.Close()

	opts.Progress = func(frames int) {
		if frames%progressEvery == 0 {
			applog.Debugf("Analysis: %d frames processed", frames)
		}
	}

	result, err := analysis.Run(ctx, src, opts)
	if err != nil {
		return err
	}

	// ==================== DELIVERY PHASE ====================

	if err := writeResult(cfg, result, format); err != nil {
		return err
	}

	if cfg.Output.ClickTrack != "" {
		if err := audio.WriteClickTrackFile(cfg.Output.ClickTrack, result.Onsets,
			result.FrameSize, result.Format.SampleRate); err != nil {
			return fmt.Errorf("click track: %w", err)
		}
		applog.Infof("Output: Click track written to %s", cfg.Output.ClickTrack)
	}

	transports, ws, err := openTransports(cfg)
	if err != nil {
		return err
	}
	defer transports.Close()

	if err := analysis.Publish(transports, result); err != nil {
		return err
	}

	if cfg.TUIMode {
		return tui.Run(result)
	}

	if ws != nil {
		applog.Infof("Transport: Serving results on ws://%s/ws, press Ctrl+C to stop", ws.Addr())
		<-ctx.Done()
	}
	return nil
}

// writeResult exports to the configured file, or to stdout unless the TUI
// is taking over the terminal.
func writeResult(cfg *config.Config, result *analysis.Result, format export.Format) error {
	if cfg.Output.Path != "" {
		if err := export.WriteFile(cfg.Output.Path, result, format, cfg.Output.IncludeSeries); err != nil {
			return err
		}
		applog.Infof("Output: %s results written to %s", format, cfg.Output.Path)
		return nil
	}

	if cfg.TUIMode {
		return nil
	}
	return export.Write(os.Stdout, result, format, cfg.Output.IncludeSeries)
}

// openTransports builds the fan-out for the configured transports. The
// logging transport is always present.
func openTransports(cfg *config.Config) (transport.Fanout, *transport.WebSocketTransport, error) {
	transports := transport.Fanout{transport.NewLoggingTransport()}
	var ws *transport.WebSocketTransport

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			transports.Close()
			return nil, nil, err
		}
		publisher, err := udp.NewUDPPublisher(sender, cfg.Transport.UDPSeries)
		if err != nil {
			sender.Close()
			transports.Close()
			return nil, nil, err
		}
		transports = append(transports, publisher)
	}

	if cfg.Transport.WSEnabled {
		var err error
		ws, err = transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		if err != nil {
			transports.Close()
			return nil, nil, fmt.Errorf("websocket: %w", err)
		}
		transports = append(transports, ws)
	}

	return transports, ws, nil
}
