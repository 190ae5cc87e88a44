package registry

import (
	"fmt"
	"strings"
	"time"
)

// StorePluginOption configures a StorePlugin for testing
type StorePluginOption func(*StorePlugin)

// PluginOption configures a Plugin for testing
type PluginOption func(*Plugin)

// TestResultOption configures a TestResult for testing
type TestResultOption func(*TestResult)

// NewTestStorePlugin creates a store plugin for testing with default values
// derived from the project link and applies any provided options
func NewTestStorePlugin(projectLink string, opts ...StorePluginOption) *StorePlugin {
	sp := &StorePlugin{
		Package: Package{
			ProjectLink: projectLink,
			ModuleName:  strings.ReplaceAll(projectLink, "-", "_"),
		},
		Common: Common{
			Name:     projectLink,
			Desc:     fmt.Sprintf("Test plugin description for %s", projectLink),
			Author:   "tester",
			Homepage: fmt.Sprintf("https://github.com/tester/%s", projectLink),
			Tags:     []Tag{},
		},
	}

	for _, opt := range opts {
		opt(sp)
	}

	return sp
}

// WithModuleName sets the module name
func WithModuleName(moduleName string) StorePluginOption {
	return func(sp *StorePlugin) {
		sp.ModuleName = moduleName
	}
}

// WithHomepage sets the homepage
func WithHomepage(homepage string) StorePluginOption {
	return func(sp *StorePlugin) {
		sp.Homepage = homepage
	}
}

// WithOfficial sets the official flag
func WithOfficial(official bool) StorePluginOption {
	return func(sp *StorePlugin) {
		sp.IsOfficial = official
	}
}

// WithTags sets the tags
func WithTags(tags ...Tag) StorePluginOption {
	return func(sp *StorePlugin) {
		sp.Tags = tags
	}
}

// WithSupportedAdapters sets the supported adapters
func WithSupportedAdapters(adapters ...string) StorePluginOption {
	return func(sp *StorePlugin) {
		sp.SupportedAdapters = adapters
	}
}

// NewTestPlugin creates a valid plugin record for the given store plugin
// and applies any provided options
func NewTestPlugin(sp *StorePlugin, opts ...PluginOption) *Plugin {
	plugin := NewPlugin(sp)
	plugin.Type = PluginTypeApplication
	plugin.Valid = true
	plugin.Version = "1.0.0"
	plugin.Time = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)

	for _, opt := range opts {
		opt(plugin)
	}

	return plugin
}

// WithPluginVersion sets the plugin version
func WithPluginVersion(version string) PluginOption {
	return func(p *Plugin) {
		p.Version = version
	}
}

// WithSkipTest sets the skip_test flag
func WithSkipTest(skip bool) PluginOption {
	return func(p *Plugin) {
		p.SkipTest = skip
	}
}

// WithValid sets the valid flag
func WithValid(valid bool) PluginOption {
	return func(p *Plugin) {
		p.Valid = valid
	}
}

// NewTestResult creates a passing test result for the given version and
// applies any provided options
func NewTestResult(version string, opts ...TestResultOption) *TestResult {
	result := &TestResult{
		Time:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Version: version,
		Results: Results{Validation: true, Load: true, Metadata: true},
		Outputs: Outputs{Load: "ok"},
	}

	for _, opt := range opts {
		opt(result)
	}

	return result
}

// WithPassed sets every check of the result to passed
func WithPassed(passed bool) TestResultOption {
	return func(r *TestResult) {
		r.Results = Results{Validation: passed, Load: passed, Metadata: passed}
	}
}

// WithConfig sets the config input of the result
func WithConfig(config string) TestResultOption {
	return func(r *TestResult) {
		r.Inputs.Config = config
	}
}

// WithResultTime sets the time of the result
func WithResultTime(t time.Time) TestResultOption {
	return func(r *TestResult) {
		r.Time = t.Format(time.RFC3339)
	}
}
