package netcdf

import (
	"os"
	"runtime/debug"
)

// buildGitHash returns the VCS revision this binary was built from, for the
// git_hash provenance attribute on outputs. The GIT_HASH environment
// variable wins so container builds without VCS metadata can still stamp
// outputs. Falls back to "unknown".
func buildGitHash() string {
	if h := os.Getenv("GIT_HASH"); h != "" {
		return h
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
