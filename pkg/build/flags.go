// SPDX-License-Identifier: MIT
//
// Package build carries the metadata linked into the binary at compile time:
// name, build timestamp, Git commit and semantic version. The values are set
// with -ldflags, for example:
//
//	go build -ldflags "-X spectro/pkg/build.buildName=spectro -X spectro/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds run without them and report "unknown".
package build

import "fmt"

// Description is the one-line summary shown by the command line help.
const Description = "Real-time scrolling spectrogram of an audio input"

// Info is the build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the metadata for --version output.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:    "spectro",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the build metadata. Returns an error naming the first missing flag;
// the development defaults stay in place in that case.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}
