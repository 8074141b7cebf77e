package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)",
		Version, commit(), BuildTime, runtime.Version())
}

// commit falls back to the VCS revision stamped by the Go toolchain
// when no ldflags value was set
func commit() string {
	if Commit != "unknown" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return Commit
}
