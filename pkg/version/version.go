package version

import (
	"fmt"
	"net/http"
	"runtime"
)

// This variables are injected at build time.

// BugitVersion hosts the version of the app.
var BugitVersion = "development"

// Commit is the commit hash of the build
var Commit string

// BuildDate is the date it was built
var BuildDate string

// GoVersion is the go version that was used to compile this
var GoVersion string

// UserAgent returns the User-Agent sent on every outbound request, for example
// "bugit/v1.2.0 (linux/amd64)".
func UserAgent() string {
	return fmt.Sprintf("bugit/%s (%s/%s)", BugitVersion, runtime.GOOS, runtime.GOARCH)
}

// SetUserAgent sets the User-Agent header on req.
func SetUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}
