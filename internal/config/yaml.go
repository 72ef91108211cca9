// SPDX-License-Identifier: MIT
package config

import (
	applog "beatmap/internal/log"
	"beatmap/pkg/bitint"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig loads configuration from a YAML file specified by path. If
// path is empty, it searches the default locations (DefaultFileName in the
// working directory, then the user config directory). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it
// applies environment variable overrides and validates the final
// configuration.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig is LoadConfig without the final validation, for callers
// that apply further overrides and validate afterwards.
func ReadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Environment variables win over the file.
	cfg.applyEnvOverrides()
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{DefaultFileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "beatmap", DefaultFileName))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate checks every setting and reports the first invalid one
// wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	a := c.Analysis
	if !bitint.IsPowerOfTwo(a.FrameSize) || a.FrameSize < MinFrameSize || a.FrameSize > MaxFrameSize {
		return fmt.Errorf("%w: analysis.frame_size %d must be a power of two in [%d, %d]",
			ErrInvalidConfig, a.FrameSize, MinFrameSize, MaxFrameSize)
	}
	if !(a.Sensitivity > 0) || math.IsInf(a.Sensitivity, 1) {
		return fmt.Errorf("%w: analysis.sensitivity must be positive and finite, got %g",
			ErrInvalidConfig, a.Sensitivity)
	}
	if !(a.ThresholdTimeSpan > 0) || math.IsInf(a.ThresholdTimeSpan, 1) {
		return fmt.Errorf("%w: analysis.threshold_time_span must be positive and finite, got %g",
			ErrInvalidConfig, a.ThresholdTimeSpan)
	}
	if a.ConventionB != 1 && a.ConventionB != -1 {
		return fmt.Errorf("%w: analysis.convention_b must be 1 or -1, got %d", ErrInvalidConfig, a.ConventionB)
	}
	if _, err := c.AnalysisOptions(); err != nil {
		return fmt.Errorf("%w: analysis.normalization: %w", ErrInvalidConfig, err)
	}

	if _, err := c.OutputFormat(); err != nil {
		return fmt.Errorf("%w: output.format: %w", ErrInvalidConfig, err)
	}

	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %w", ErrInvalidConfig, t.UDPTargetAddress, err)
		}
	}
	if t.WSEnabled {
		if _, _, err := net.SplitHostPort(t.WSAddress); err != nil {
			return fmt.Errorf("%w: transport.ws_address %q: %w", ErrInvalidConfig, t.WSAddress, err)
		}
	}

	return nil
}

// applyEnvOverrides applies the ENV_* variables to cfg. Unparseable values
// are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}

	// ENV_FRAME_SIZE
	if val, ok := os.LookupEnv("ENV_FRAME_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Analysis.FrameSize = iVal
			applog.Infof("Config: Overriding analysis.frame_size from env: %d", iVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_FRAME_SIZE=%q: %v", val, err)
		}
	}

	// ENV_SENSITIVITY
	if val, ok := os.LookupEnv("ENV_SENSITIVITY"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Analysis.Sensitivity = fVal
			applog.Infof("Config: Overriding analysis.sensitivity from env: %g", fVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_SENSITIVITY=%q: %v", val, err)
		}
	}

	// ENV_UDP_TARGET_ADDRESS enables UDP as well.
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}

	// ENV_WS_ADDRESS enables the WebSocket server as well.
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WSEnabled = true
		cfg.Transport.WSAddress = val
		applog.Infof("Config: Overriding transport.ws_address from env: %s", val)
	}
}
