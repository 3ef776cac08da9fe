// Package version reports the build the binary came from.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X .../version.Commit=... -X .../version.BuildTime=...".
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the version line printed by `compliance version`.
func String() string {
	commit, built, dirty := Commit, BuildTime, false
	if info, ok := debug.ReadBuildInfo(); ok {
		commit, built, dirty = fromBuildInfo(info, commit, built)
	}
	return format(commit, built, dirty)
}

// fromBuildInfo fills values left unset by ldflags from the VCS stamp the
// go tool embeds.
func fromBuildInfo(info *debug.BuildInfo, commit, built string) (string, string, bool) {
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" {
				commit = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return commit, built, dirty
}

func format(commit, built string, dirty bool) string {
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if dirty && commit != "unknown" {
		commit += "+dirty"
	}
	return fmt.Sprintf("compliance dev (commit: %s, built: %s)", commit, built)
}
