// Package git fetches store listings straight from Git repositories.
//
// Repositories are cloned into in-memory filesystems (go-billy memfs) wrapped
// in LimitedFs, which caps the number of files and the total bytes a clone
// may write. Branch and tag clones are shallow; a commit clone fetches full
// history so the commit is reachable.
//
//	client := git.NewDefaultGitClient()
//	repoInfo, err := client.Clone(ctx, &git.CloneConfig{
//	    URL:    "https://github.com/nonebot/nonebot2.git",
//	    Branch: "master",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Cleanup(ctx, repoInfo)
//
//	content, err := client.GetFileContent(repoInfo, "assets/plugins.json")
package git
