package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestCommit is one commit of a repository built by CreateTestRepo
type TestCommit struct {
	Message string
	Files   map[string]string
	// Branch, when set, is created pointing at this commit
	Branch string
	// Tag, when set, is a lightweight tag pointing at this commit
	Tag string
}

// CreateTestRepo creates an on-disk repository under t.TempDir() with the
// given commits applied in order. It returns the repository path and the
// commit hashes.
func CreateTestRepo(t *testing.T, commits ...TestCommit) (string, []plumbing.Hash) {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}

	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	author := &object.Signature{
		Name:  "Test Author",
		Email: "test@example.com",
		When:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	hashes := make([]plumbing.Hash, 0, len(commits))
	for i, c := range commits {
		for filename, content := range c.Files {
			filePath := filepath.Join(repoDir, filename)
			if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
				t.Fatalf("Failed to create directory for %s: %v", filename, err)
			}
			if err := os.WriteFile(filePath, []byte(content), 0600); err != nil {
				t.Fatalf("Failed to write file %s: %v", filename, err)
			}
			if _, err := workTree.Add(filename); err != nil {
				t.Fatalf("Failed to add file %s: %v", filename, err)
			}
		}

		message := c.Message
		if message == "" {
			message = "commit"
		}
		author.When = author.When.Add(time.Duration(i) * time.Minute)
		hash, err := workTree.Commit(message, &git.CommitOptions{Author: author})
		if err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
		hashes = append(hashes, hash)

		if c.Branch != "" {
			ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(c.Branch), hash)
			if err := repo.Storer.SetReference(ref); err != nil {
				t.Fatalf("Failed to create branch %s: %v", c.Branch, err)
			}
		}
		if c.Tag != "" {
			if _, err := repo.CreateTag(c.Tag, hash, nil); err != nil {
				t.Fatalf("Failed to create tag %s: %v", c.Tag, err)
			}
		}
	}

	return repoDir, hashes
}
