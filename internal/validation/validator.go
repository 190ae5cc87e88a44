// Package validation turns a smoke test of a store plugin into a TestResult
// and an updated plugin record.
//
// Three checks make up a result:
//   - validation: the package is published on the index and its homepage
//     answers 200
//   - load: the plugin installs and imports (runner.Runner), or is marked
//     as not testable
//   - metadata: the plugin reports metadata of a valid shape
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nonebot/store-test/internal/cache"
	"github.com/nonebot/store-test/internal/httpclient"
	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/runner"
)

// SkippedOutput is the load output recorded for plugins that are not tested
const SkippedOutput = "plugin test skipped"

//go:generate mockgen -destination=mocks/mock_validator.go -package=mocks -source=validator.go Validator,PackageIndex

// Validator validates one store plugin
type Validator interface {
	// Validate always returns a plugin record alongside the result. The
	// error is reserved for failures that leave no usable result.
	Validate(ctx context.Context, req *Request) (*registry.TestResult, *registry.Plugin, error)
}

// PackageIndex answers questions about published packages
type PackageIndex interface {
	LatestVersion(ctx context.Context, projectLink string) (string, error)
	IsPublished(ctx context.Context, projectLink string) (bool, error)
}

// Request describes one validation
type Request struct {
	Plugin *registry.StorePlugin

	// Config is the .env.prod content the plugin is loaded with
	Config string

	// Data is a JSON metadata document used instead of running the plugin
	// when SkipTest is set
	Data *string

	SkipTest bool

	// Previous is the plugin record of the previous run, if any
	Previous *registry.Plugin

	// KnownPlugins maps store project links to module names
	KnownPlugins map[string]string
}

// Option configures a PluginValidator
type Option func(*PluginValidator)

// WithClock sets the time source of result timestamps
func WithClock(now func() time.Time) Option {
	return func(v *PluginValidator) {
		v.now = now
	}
}

// WithHomepageCache injects the homepage status cache shared with the run
func WithHomepageCache(memo *cache.Memo[int]) Option {
	return func(v *PluginValidator) {
		v.homepages = memo
	}
}

// WithoutHomepageCheck disables the homepage reachability check
func WithoutHomepageCheck() Option {
	return func(v *PluginValidator) {
		v.checkHomepage = false
	}
}

// WithoutPublishedCheck disables the package index check
func WithoutPublishedCheck() Option {
	return func(v *PluginValidator) {
		v.checkPublished = false
	}
}

// PluginValidator is the Validator used by store test runs
type PluginValidator struct {
	runner    runner.Runner
	index     PackageIndex
	http      httpclient.Client
	homepages *cache.Memo[int]
	now       func() time.Time

	checkHomepage  bool
	checkPublished bool
}

var _ Validator = (*PluginValidator)(nil)

// NewPluginValidator creates a validator
func NewPluginValidator(r runner.Runner, index PackageIndex, client httpclient.Client, opts ...Option) *PluginValidator {
	v := &PluginValidator{
		runner:         r,
		index:          index,
		http:           client,
		now:            time.Now,
		checkHomepage:  true,
		checkPublished: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.homepages == nil {
		v.homepages = cache.NewMemo[int]()
	}
	return v
}

// Validate runs the smoke test, unless disabled, and checks the outcome
func (v *PluginValidator) Validate(ctx context.Context, req *Request) (*registry.TestResult, *registry.Plugin, error) {
	if req == nil || req.Plugin == nil {
		return nil, nil, fmt.Errorf("plugin is required")
	}
	sp := req.Plugin
	key := sp.Key()

	var (
		loaded   bool
		output   string
		version  string
		metadata *registry.Metadata
		err      error
	)
	if req.SkipTest {
		loaded, output = true, SkippedOutput
		metadata, err = skippedMetadata(req)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
	} else {
		outcome, err := v.runner.Run(ctx, &runner.Request{
			ProjectLink:  sp.ProjectLink,
			ModuleName:   sp.ModuleName,
			Config:       req.Config,
			KnownPlugins: req.KnownPlugins,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to test %s: %w", key, err)
		}
		loaded, output, version, metadata = outcome.Passed, outcome.Output, outcome.Version, outcome.Metadata
	}

	if version == "" {
		if version, err = v.index.LatestVersion(ctx, sp.ProjectLink); err != nil {
			slog.Warn("Could not resolve plugin version", "key", key, "error", err)
			version = ""
		}
	}

	homepage := sp.Homepage
	if metadata != nil && metadata.Homepage != "" {
		homepage = metadata.Homepage
	}
	validationProblems := v.validate(ctx, sp.ProjectLink, homepage)
	metadataProblems := CheckMetadata(metadata)

	result := &registry.TestResult{
		Time:    v.now().Format(time.RFC3339),
		Version: version,
		Results: registry.Results{
			Validation: len(validationProblems) == 0,
			Load:       loaded,
			Metadata:   len(metadataProblems) == 0,
		},
		Inputs: registry.Inputs{Config: req.Config},
		Outputs: registry.Outputs{
			Validation: problems(validationProblems, metadataProblems),
			Load:       output,
			Metadata:   metadata,
		},
	}

	plugin := registry.NewPlugin(sp)
	plugin.ApplyMetadata(metadata)
	plugin.Valid = result.Results.Validation
	plugin.Version = version
	plugin.Time = result.Time
	plugin.SkipTest = req.SkipTest

	slog.Debug("Validated plugin", "key", key, "result", result.String())
	return result, plugin, nil
}

// validate runs the publication checks and returns the problems found
func (v *PluginValidator) validate(ctx context.Context, projectLink, homepage string) []string {
	var found []string

	if v.checkPublished {
		published, err := v.index.IsPublished(ctx, projectLink)
		if err != nil {
			slog.Warn("Package index lookup failed", "project", projectLink, "error", err)
			found = append(found, fmt.Sprintf("package index lookup failed: %v", err))
		} else if !published {
			found = append(found, fmt.Sprintf("package %s is not available on the package index", projectLink))
		}
	}

	if v.checkHomepage {
		if homepage == "" {
			found = append(found, "project homepage is missing")
		} else if status := v.homepageStatus(ctx, homepage); status != http.StatusOK {
			found = append(found, homepageProblem(homepage, status))
		}
	}

	return found
}

// homepageStatus returns the status code of homepage, 0 when it could not
// be reached. Both outcomes are cached for the run.
func (v *PluginValidator) homepageStatus(ctx context.Context, homepage string) int {
	status, _ := v.homepages.Get(ctx, homepage, func(ctx context.Context) (int, error) {
		status, err := v.http.Status(ctx, homepage)
		if err != nil {
			slog.Debug("Homepage unreachable", "url", homepage, "error", err)
			return 0, nil
		}
		return status, nil
	})
	return status
}

func homepageProblem(homepage string, status int) string {
	if status == 0 {
		return fmt.Sprintf("project homepage %s is unreachable", homepage)
	}
	return fmt.Sprintf("project homepage %s returns %d", homepage, status)
}

// CheckMetadata returns the problems with the shape of reported metadata
func CheckMetadata(metadata *registry.Metadata) []string {
	if metadata == nil {
		return []string{"plugin metadata not found"}
	}

	var found []string
	if !slices.Contains([]string{"", registry.PluginTypeApplication, registry.PluginTypeLibrary}, metadata.Type) {
		found = append(found, fmt.Sprintf("plugin type %q is not one of application, library", metadata.Type))
	}
	for i, adapter := range metadata.SupportedAdapters {
		if adapter == "" {
			found = append(found, fmt.Sprintf("supported adapter %d is empty", i))
		}
	}
	return found
}

// skippedMetadata picks the metadata of a plugin that is not tested: the
// Data override when given, else the previous record
func skippedMetadata(req *Request) (*registry.Metadata, error) {
	if req.Data != nil {
		if !gjson.Valid(*req.Data) {
			return nil, fmt.Errorf("metadata override is not valid JSON")
		}
		var metadata registry.Metadata
		if err := json.Unmarshal([]byte(*req.Data), &metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata override: %w", err)
		}
		return &metadata, nil
	}
	if req.Previous != nil {
		return req.Previous.Metadata(), nil
	}
	return nil, nil
}

// problems joins problem lists, nil when there are none
func problems(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return all
}
