package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/git"
)

// gitSourceHandler reads documents from Git repositories. Repositories are
// cloned once per repository and ref and kept until Close.
type gitSourceHandler struct {
	gitClient git.Client

	mu    sync.Mutex
	repos map[string]*git.RepositoryInfo
}

// NewGitSourceHandler creates a new Git source handler
func NewGitSourceHandler(gitClient git.Client) SourceHandler {
	return &gitSourceHandler{
		gitClient: gitClient,
		repos:     make(map[string]*git.RepositoryInfo),
	}
}

// Validate validates the Git source configuration
func (*gitSourceHandler) Validate(source *config.SourceConfig) error {
	if source == nil {
		return fmt.Errorf("source configuration cannot be nil")
	}
	if source.Git == nil {
		return fmt.Errorf("git configuration is required")
	}

	gitSource := source.Git
	if gitSource.Repository == "" {
		return fmt.Errorf("git repository URL cannot be empty")
	}
	if gitSource.Path == "" {
		return fmt.Errorf("git path cannot be empty")
	}

	specified := 0
	for _, ref := range []string{gitSource.Branch, gitSource.Tag, gitSource.Commit} {
		if ref != "" {
			specified++
		}
	}
	if specified > 1 {
		return fmt.Errorf("only one of branch, tag, or commit may be specified")
	}

	return nil
}

// FetchData reads the document at the configured path of the repository
func (h *gitSourceHandler) FetchData(ctx context.Context, source *config.SourceConfig) (*FetchResult, error) {
	if err := h.Validate(source); err != nil {
		return nil, fmt.Errorf("source validation failed: %w", err)
	}

	gitSource := source.Git
	repoInfo, err := h.repository(ctx, &git.CloneConfig{
		URL:    gitSource.Repository,
		Branch: gitSource.Branch,
		Tag:    gitSource.Tag,
		Commit: gitSource.Commit,
	})
	if err != nil {
		return nil, err
	}

	data, err := h.gitClient.GetFileContent(repoInfo, gitSource.Path)
	if err != nil {
		if errors.Is(err, git.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		return nil, fmt.Errorf("failed to get file %s from repository: %w", gitSource.Path, err)
	}

	return NewFetchResult(data, source.String()), nil
}

func (h *gitSourceHandler) repository(ctx context.Context, cloneConfig *git.CloneConfig) (*git.RepositoryInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cacheKey := cloneConfig.URL + "@" + cloneConfig.Ref()
	if repoInfo, ok := h.repos[cacheKey]; ok {
		return repoInfo, nil
	}

	startTime := time.Now()
	slog.Info("Starting git clone",
		"repository", cloneConfig.URL,
		"ref", cloneConfig.Ref())

	repoInfo, err := h.gitClient.Clone(ctx, cloneConfig)
	cloneDuration := time.Since(startTime)
	if err != nil {
		slog.Error("Git clone failed",
			"error", err,
			"repository", cloneConfig.URL,
			"duration", cloneDuration.String())
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	slog.Info("Git clone completed",
		"repository", cloneConfig.URL,
		"duration", cloneDuration.String(),
		"branch", repoInfo.Branch,
		"commit_sha", repoInfo.CommitHash)

	h.repos[cacheKey] = repoInfo
	return repoInfo, nil
}

// Close releases every cloned repository
func (h *gitSourceHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.repos) == 0 {
		return nil
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	var errs []error
	for cacheKey, repoInfo := range h.repos {
		if err := h.gitClient.Cleanup(ctx, repoInfo); err != nil {
			errs = append(errs, fmt.Errorf("failed to cleanup %s: %w", cacheKey, err))
		}
		delete(h.repos, cacheKey)
	}

	logMemoryStatsAfterCleanup(&memBefore)
	return errors.Join(errs...)
}

func logMemoryStatsAfterCleanup(memBefore *runtime.MemStats) {
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	allocAfterMB := memAfter.Alloc / (1024 * 1024)
	allocBeforeMB := memBefore.Alloc / (1024 * 1024)
	var deltaMB int64
	if allocAfterMB >= allocBeforeMB {
		// #nosec G115 -- Memory delta in MB will never exceed int64 max
		deltaMB = int64(allocAfterMB - allocBeforeMB)
	} else {
		// #nosec G115 -- Memory delta in MB will never exceed int64 max
		deltaMB = -int64(allocBeforeMB - allocAfterMB)
	}

	slog.Debug("Memory stats after repository cleanup",
		"alloc_mb", allocAfterMB,
		"delta_mb", deltaMB,
		"sys_mb", memAfter.Sys/(1024*1024),
		"heap_released_mb", memAfter.HeapReleased/(1024*1024))
}
