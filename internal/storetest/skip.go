package storetest

import (
	"context"
	"log/slog"

	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/versions"
)

//go:generate mockgen -destination=mocks/mock_oracle.go -package=mocks -source=skip.go VersionOracle

// VersionOracle resolves the latest published version of a project
type VersionOracle interface {
	LatestVersion(ctx context.Context, projectLink string) (string, error)
}

// Skip decision reasons
const (
	ReasonGitSource        = "git-source"
	ReasonForced           = "forced"
	ReasonNoPreviousRecord = "no-previous-record"
	ReasonVersionUnknown   = "version-unknown"
	ReasonUpToDate         = "up-to-date"
	ReasonVersionChanged   = "version-changed"
	ReasonVersionUpgraded  = "version-upgraded"
)

// Decision is the outcome of a skip evaluation
type Decision struct {
	Skip   bool
	Reason string
	// LatestVersion is the index version when one was looked up
	LatestVersion string
}

// SkipPolicy decides whether a plugin needs a fresh test
type SkipPolicy struct {
	oracle          VersionOracle
	previousResults *registry.OrderedMap[*registry.TestResult]
	previousPlugins *registry.OrderedMap[*registry.Plugin]
}

// NewSkipPolicy creates a policy judging against the previous run of snapshot
func NewSkipPolicy(oracle VersionOracle, snapshot *registry.Snapshot) *SkipPolicy {
	return &SkipPolicy{
		oracle:          oracle,
		previousResults: snapshot.PreviousResults,
		previousPlugins: snapshot.PreviousPlugins,
	}
}

// ShouldSkip evaluates the plugin identified by key
func (p *SkipPolicy) ShouldSkip(ctx context.Context, key registry.Key, force bool) Decision {
	if key.IsGitSource() {
		slog.Info("Plugin is installed from git and cannot be tested, skipping", "key", key)
		return Decision{Skip: true, Reason: ReasonGitSource}
	}

	if force {
		return Decision{Reason: ReasonForced}
	}

	previousResult, hasResult := p.previousResults.Get(key)
	previousPlugin, hasPlugin := p.previousPlugins.Get(key)
	if !hasResult || !hasPlugin {
		return Decision{Reason: ReasonNoPreviousRecord}
	}

	latest, err := p.oracle.LatestVersion(ctx, previousPlugin.ProjectLink)
	if err != nil {
		slog.Warn("Could not resolve latest version, testing anyway", "key", key, "error", err)
		return Decision{Reason: ReasonVersionUnknown}
	}

	if latest == previousResult.Version {
		slog.Info("Plugin is at its latest version, skipping", "key", key, "version", latest)
		return Decision{Skip: true, Reason: ReasonUpToDate, LatestVersion: latest}
	}

	reason := ReasonVersionChanged
	if versions.IsNewerVersion(latest, previousResult.Version) {
		reason = ReasonVersionUpgraded
	}
	slog.Debug("Plugin version changed",
		"key", key,
		"previous", previousResult.Version,
		"latest", latest,
		"reason", reason)
	return Decision{Reason: reason, LatestVersion: latest}
}

// SkipPluginTest reports whether the previous record marks the plugin as not
// testable
func (p *SkipPolicy) SkipPluginTest(key registry.Key) bool {
	previous, ok := p.previousPlugins.Get(key)
	return ok && previous.SkipTest
}
