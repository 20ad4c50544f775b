// Package buildinfo carries the release metadata stamped into the binary with -ldflags.
package buildinfo

import "fmt"

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String renders the metadata for the startup banner and the health endpoint.
func String() string {
	return fmt.Sprintf("UserDesk %s (commit %s, built %s)", Version, Commit, BuildDate)
}
