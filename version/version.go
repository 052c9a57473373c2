// Package version reports build information for the vidmask binary.
package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/vidmask/infer"
)

// Build information. These variables are set at build time via ldflags:
//
//	-X github.com/teranos/vidmask/version.Version=1.4.0
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash      string   `json:"commit_hash"`
	BuildTime       string   `json:"build_time"`
	Version         string   `json:"version"`
	GoVersion       string   `json:"go_version"`
	Platform        string   `json:"platform"`
	RuntimeRange    string   `json:"runtime_range"`    // vendor runtime versions this build accepts
	Runtimes        []string `json:"runtimes"`         // registered portable runtimes
	TextureRuntimes []string `json:"texture_runtimes"` // registered accelerated runtimes
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash:      CommitHash,
		BuildTime:       BuildTime,
		Version:         Version,
		GoVersion:       runtime.Version(),
		Platform:        fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		RuntimeRange:    infer.SupportedRange,
		Runtimes:        infer.Runtimes(),
		TextureRuntimes: infer.TextureRuntimes(),
	}
}

// Tagged reports whether Version is a release semver
func (i Info) Tagged() bool {
	_, err := semver.StrictNewVersion(i.Version)
	return err == nil
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.Tagged() {
		return fmt.Sprintf("vidmask %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	}
	return fmt.Sprintf("vidmask dev (commit %s, built %s)", i.CommitHash, i.BuildTime)
}

// Short returns a short version string with just the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
