// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/cablewatch/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/cablewatch/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/cablewatch/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/cablewatch
package version

import "runtime"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the line printed by cablewatch -version.
func String() string {
	return "cablewatch " + Version + " (commit " + Commit + ", built " + BuildTime + ", " + runtime.Version() + ")"
}
