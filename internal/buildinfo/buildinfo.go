// Package buildinfo exposes version, commit, and build date set via ldflags.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// These variables are set at build time via -ldflags -X.
var (
	// Version is the semantic version or git describe output.
	Version = "dev"

	// Commit is the short git commit SHA.
	Commit = "unknown"

	// Date is the UTC build timestamp in RFC3339 format.
	Date = "unknown"
)

// Info holds structured build information suitable for JSON serialization.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// GetInfo returns the current build information. When the ldflags values are
// absent (a plain `go install`), the commit is recovered from the embedded
// VCS metadata where available.
func GetInfo() Info {
	info := Info{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	}
	if info.Commit != "unknown" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				info.Commit = s.Value[:7]
			}
		}
	}
	return info
}

// String returns a human-readable version string.
// Example: "colony v1.0.0 (commit: a1b2c3d, built: 2026-08-01T10:00:00Z)"
func (i Info) String() string {
	return fmt.Sprintf("colony v%s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}
