package versions

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// pep440Suffix matches the pre-release, post-release and dev segments that
// package index versions attach without a separator, e.g. "1.0.0rc1".
var pep440Suffix = regexp.MustCompile(`^(\d+(?:\.\d+)*)[-_.]?(a|b|rc|alpha|beta|post|dev)[-_.]?(\d*)$`)

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// Package index versions are normalized to semantic versions first. When either
// side still fails to parse it falls back to lexicographic string comparison.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(Normalize(newVersion))
	oldSemver, errOld := semver.NewVersion(Normalize(oldVersion))

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// Normalize rewrites a package index version into semver syntax where it can.
// Pre-releases become semver pre-releases ("1.0.0rc1" -> "1.0.0-rc.1").
// Post-releases are kept as build metadata, which semver ignores for ordering.
func Normalize(version string) string {
	v := strings.TrimSpace(strings.ToLower(version))
	m := pep440Suffix.FindStringSubmatch(v)
	if m == nil {
		return v
	}

	release, label, number := m[1], m[2], m[3]
	switch label {
	case "post":
		return release + "+post" + number
	case "a":
		label = "alpha"
	case "b":
		label = "beta"
	}
	if number != "" {
		return release + "-" + label + "." + number
	}
	return release + "-" + label
}
