// Package version exposes build metadata stamped via -ldflags.
package version

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "none"
	// Date is the build date.
	Date = "unknown"
)

// String returns the full version line.
func String() string {
	return fmt.Sprintf("schedtrace %s (commit %s, built %s)", Version, Commit, Date)
}
