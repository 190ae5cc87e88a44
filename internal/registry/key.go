package registry

import (
	"fmt"
	"strings"
)

const (
	// KeySeparator joins the project link and module name of a Key
	KeySeparator = ":"

	// gitSourcePrefix marks project links that point at a VCS repository
	// instead of a package index project
	gitSourcePrefix = "git+http"
)

// Key identifies a plugin across runs as "project_link:module_name"
type Key string

// NewKey builds the key for the given project link and module name
func NewKey(projectLink, moduleName string) Key {
	return Key(projectLink + KeySeparator + moduleName)
}

// ParseKey splits a key into its project link and module name.
// The split happens on the last separator since git project links contain
// a scheme separator of their own.
func ParseKey(s string) (Key, error) {
	idx := strings.LastIndex(s, KeySeparator)
	if idx <= 0 || idx == len(s)-1 {
		return "", fmt.Errorf("invalid key %q: expected project_link%smodule_name", s, KeySeparator)
	}
	return Key(s), nil
}

// ProjectLink returns the package index project part of the key
func (k Key) ProjectLink() string {
	idx := strings.LastIndex(string(k), KeySeparator)
	if idx < 0 {
		return string(k)
	}
	return string(k)[:idx]
}

// ModuleName returns the import name part of the key
func (k Key) ModuleName() string {
	idx := strings.LastIndex(string(k), KeySeparator)
	if idx < 0 {
		return ""
	}
	return string(k)[idx+1:]
}

// IsGitSource reports whether the key refers to a plugin installed straight
// from a git repository. Such plugins cannot be tested by the pipeline.
func (k Key) IsGitSource() bool {
	return strings.HasPrefix(string(k), gitSourcePrefix)
}

// PathSafe returns the key with separators replaced so it can be used as a
// directory name
func (k Key) PathSafe() string {
	return strings.ReplaceAll(string(k), KeySeparator, "-")
}

// String returns the key as a string
func (k Key) String() string {
	return string(k)
}
