// Package version carries build metadata stamped via -ldflags.
package version

import "fmt"

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// Commit is the short git hash of the build.
	Commit = "none"
	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)

// String formats the full build identity for --version output.
func String() string {
	return fmt.Sprintf("hearthd version %s (%s, built %s)", Version, Commit, BuildTime)
}
