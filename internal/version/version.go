// Package version exposes the build identity of the prediction service.
// The variables are populated at build time via -ldflags -X.
package version

import "fmt"

var (
	// Version is the service version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the full build identity for banners and -version output.
func String() string {
	return fmt.Sprintf("%s (%s) built %s", Version, GitSHA, BuildTime)
}
