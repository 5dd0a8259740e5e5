// Package version holds build-time version information, injected via ldflags.
package version

import "runtime"

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// GoVersion returns the Go runtime version the binary was compiled with.
func GoVersion() string {
	return runtime.Version()
}
