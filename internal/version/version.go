// Package version reports build metadata for the ncrlistings binary.
//
// Release builds set the variables below with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/ncrlistings/internal/version.Version=1.0.0 ..."
//
// Builds without ldflags fall back to the VCS stamp recorded by the Go
// toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info contains structured version information
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the version information of the running binary.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(&info, bi)
	}
	return info
}

// fromBuildInfo fills fields still at their defaults from the VCS settings.
func fromBuildInfo(info *Info, bi *debug.BuildInfo) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			if Dirty == "false" && s.Value == "true" {
				info.Dirty = true
			}
		}
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
}

// String returns a single-line version string
func (i Info) String() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// Full returns a multi-line description with all details.
func (i Info) Full() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ncrlistings %s\n", i.String())
	fmt.Fprintf(&sb, "  Commit:     %s\n", i.Commit)
	fmt.Fprintf(&sb, "  Built:      %s\n", i.BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", i.Platform)
	return sb.String()
}
