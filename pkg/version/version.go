package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current application version.
// This is a var (not const) so it can be overridden at build time via:
//
//	go build -ldflags "-X github.com/vanderheijden86/refgraph/pkg/version.Version=v1.2.3"
var Version = "v0.1.0"

// String returns the version line printed by --version. Builds installed
// with go install report their module version when Version was not set.
func String() string {
	v := Version
	if info, ok := debug.ReadBuildInfo(); ok && v == "" {
		v = info.Main.Version
	}
	if v == "" {
		v = "(devel)"
	}
	return fmt.Sprintf("refgraph %s (%s %s/%s)", v, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
