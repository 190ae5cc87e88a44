package git

import (
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone. Local paths are accepted.
	URL string

	// Branch, Tag and Commit are mutually exclusive. None of them means the
	// remote HEAD.
	Branch string
	Tag    string
	Commit string
}

// Ref returns the reference the clone is pinned to, or "HEAD"
func (c *CloneConfig) Ref() string {
	switch {
	case c.Commit != "":
		return c.Commit
	case c.Tag != "":
		return c.Tag
	case c.Branch != "":
		return c.Branch
	}
	return "HEAD"
}

// RepositoryInfo contains information about a cloned repository
type RepositoryInfo struct {
	Repository *git.Repository

	// Branch is the checked out branch name, empty for detached heads
	Branch string

	// CommitHash is the commit the worktree points at
	CommitHash string

	RemoteURL string

	// storerFilesystem and objectCache keep the in-memory object database
	// alive; Cleanup releases them explicitly.
	storerFilesystem billy.Filesystem
	objectCache      cache.Object
}
