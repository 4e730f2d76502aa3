// Package version exposes the build metadata stamped into the velotyped
// binary at link time.
package version

import (
	"fmt"
	"runtime"
)

// The value of these vars are set through linker options.
var gitCommit = "Local build"
var buildDate = "Moments ago"

// Version returns the version string of this build.
func Version() string {
	return fmt.Sprintf("velotyped/%s. Built at: %s with %s", gitCommit, buildDate, runtime.Version())
}
