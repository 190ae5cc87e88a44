package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		newVersion string
		oldVersion string
		expected   bool
	}{
		{name: "newer major version", newVersion: "2.0.0", oldVersion: "1.0.0", expected: true},
		{name: "newer minor version", newVersion: "1.2.0", oldVersion: "1.1.0", expected: true},
		{name: "newer patch version", newVersion: "1.0.2", oldVersion: "1.0.1", expected: true},
		{name: "older patch version", newVersion: "1.0.1", oldVersion: "1.0.2", expected: false},
		{name: "equal versions", newVersion: "1.0.0", oldVersion: "1.0.0", expected: false},
		{name: "two segment versions", newVersion: "0.10", oldVersion: "0.9", expected: true},
		{name: "release after release candidate", newVersion: "1.0.0", oldVersion: "1.0.0rc1", expected: true},
		{name: "release candidate before release", newVersion: "1.0.0rc1", oldVersion: "1.0.0", expected: false},
		{name: "beta after alpha", newVersion: "1.0.0b1", oldVersion: "1.0.0a2", expected: true},
		{name: "post release is not ordered", newVersion: "1.0.0.post1", oldVersion: "1.0.0", expected: false},
		{name: "non-version fallback newer", newVersion: "version-b", oldVersion: "version-a", expected: true},
		{name: "non-version fallback older", newVersion: "version-a", oldVersion: "version-b", expected: false},
		{name: "empty new version", newVersion: "", oldVersion: "1.0.0", expected: false},
		{name: "empty old version", newVersion: "1.0.0", oldVersion: "", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsNewerVersion(tt.newVersion, tt.oldVersion))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"1.0.0":       "1.0.0",
		"1.0.0rc1":    "1.0.0-rc.1",
		"1.0.0a1":     "1.0.0-alpha.1",
		"1.0.0.b2":    "1.0.0-beta.2",
		"2.1.dev3":    "2.1-dev.3",
		"1.0.0.post1": "1.0.0+post1",
		" 0.3.0 ":     "0.3.0",
		"latest":      "latest",
	}

	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}
