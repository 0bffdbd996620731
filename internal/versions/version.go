// Package versions reports build information for the seedpost binary.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/Masterminds/semver/v3"
)

const unknownStr = "unknown"

// Version information set by build using -ldflags
var (
	// Version is the release version, "dev" for local builds
	Version = "dev"
	// Commit is the git commit hash of the build
	Commit = unknownStr
	// BuildDate is the date when the binary was built
	BuildDate = unknownStr
)

// VersionInfo represents the version information
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Release   bool   `json:"release"`
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	return versionInfo(Version, Commit, BuildDate, readVCS)
}

func readVCS() (revision, at string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			at = setting.Value
		}
	}
	return revision, at
}

func versionInfo(version, commit, buildDate string, vcs func() (string, string)) VersionInfo {
	info := VersionInfo{
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	// Only release builds carry a semantic version
	if v, err := semver.NewVersion(version); err == nil {
		info.Version = "v" + v.String()
		info.Release = v.Prerelease() == ""
	} else {
		revision, at := vcs()
		if info.Commit == unknownStr && revision != "" {
			info.Commit = revision
		}
		if info.BuildDate == unknownStr && at != "" {
			info.BuildDate = at
		}
		info.Version = fmt.Sprintf("build-%.*s", 8, info.Commit)
	}

	if t, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
	}
	return info
}
