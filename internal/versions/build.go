package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const unknownStr = "unknown"

// Build information set with -ldflags
var (
	// Version is the release version of store-test
	Version = "dev"
	// Commit is the git commit hash of the build
	//nolint:goconst // placeholder replaced at build time
	Commit = unknownStr
	// BuildDate is the date when the binary was built
	//nolint:goconst // placeholder replaced at build time
	BuildDate = unknownStr
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the build information of the running binary
func GetBuildInfo() BuildInfo {
	return buildInfoWithValues(Version, Commit, BuildDate, debug.ReadBuildInfo)
}

func buildInfoWithValues(
	version, commit, buildDate string,
	readBuildInfo func() (*debug.BuildInfo, bool),
) BuildInfo {
	if strings.HasPrefix(version, "dev") {
		if info, ok := readBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commit == unknownStr {
						commit = setting.Value
					}
				case "vcs.time":
					if buildDate == unknownStr {
						buildDate = setting.Value
					}
				}
			}
		}
	}

	if buildDate != unknownStr {
		if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
			buildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
		}
	}

	if version == "dev" {
		version = fmt.Sprintf("build-%.*s", 8, commit)
	}

	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent returns the User-Agent sent by the HTTP clients of the binary
func UserAgent() string {
	return "nonebot-store-test/" + GetBuildInfo().Version
}
