// Package version holds build metadata injected at link time.
package version

import "runtime"

// Set via -ldflags at build time:
//
//	-X github.com/jackzampolin/docpond/version.GitRelease=v0.1.0
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version()
)
