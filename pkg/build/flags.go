// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded in the beatmap binary at
// link time. Values are injected with -ldflags, for example:
//
//	go build -ldflags "-X beatmap/pkg/build.buildVersion=0.3.0 -X beatmap/pkg/build.buildCommit=$(git rev-parse HEAD)"
//
// Flags missing at link time fall back to the module and VCS information
// recorded by the Go toolchain, so development builds still report
// something useful.
package build

import (
	"fmt"
	"runtime/debug"
)

// Defaults used when neither ldflags nor the toolchain provide a value.
const (
	DefaultName        = "beatmap"
	DefaultDescription = "Offline spectral-flux onset detection for rhythm-game charting"
	Unknown            = "unknown"
)

// Info holds the build information of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line printed by --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        Unknown,
		Commit:      Unknown,
		Version:     Unknown,
	}
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize resolves build information from ldflags, then from the
// toolchain's embedded build info. It returns an error when no version
// can be determined from either source.
func Initialize() error {
	info := Info{
		Name:        firstNonEmpty(buildName, DefaultName),
		Description: DefaultDescription,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}

	if bi, ok := readBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = firstNonEmpty(info.Commit, s.Value)
			case "vcs.time":
				info.Time = firstNonEmpty(info.Time, s.Value)
			}
		}
		if info.Version == "" && bi.Main.Version == "(devel)" {
			info.Version = "devel"
		}
	}

	if info.Version == "" {
		return fmt.Errorf("BuildVersion is required")
	}
	info.Time = firstNonEmpty(info.Time, Unknown)
	info.Commit = firstNonEmpty(info.Commit, Unknown)

	*buildFlags = info
	return nil
}

// GetBuildFlags returns the current build information. Before Initialize
// it holds the defaults.
func GetBuildFlags() *Info {
	return buildFlags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
