// Package runner installs a plugin into a throwaway Poetry project and tries
// to load it with the bot framework.
package runner

import (
	"context"

	"github.com/nonebot/store-test/internal/registry"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=runner.go Runner

// Runner executes the install-and-import smoke test of one plugin
type Runner interface {
	// Run tests the plugin. Install or import failures are reported through
	// Outcome.Passed; the error is returned only when the test could not be
	// carried out.
	Run(ctx context.Context, req *Request) (*Outcome, error)
}

// Request describes the plugin to test
type Request struct {
	ProjectLink string
	ModuleName  string

	// Config is written to .env.prod
	Config string

	// KnownPlugins maps project links of store plugins to module names.
	// Installed dependencies found here are required before the plugin loads.
	KnownPlugins map[string]string
}

// Key returns the plugin key of the request
func (r *Request) Key() registry.Key {
	return registry.NewKey(r.ProjectLink, r.ModuleName)
}

// Outcome is the result of a smoke test
type Outcome struct {
	// Passed is set when the plugin was installed and loaded
	Passed bool

	// Output is the ANSI-stripped, truncated test log
	Output string

	// Version is the installed version, empty when unknown
	Version string

	// Metadata is what the loaded plugin reported, nil when it has none
	Metadata *registry.Metadata

	// Dependencies are module names of store plugins the plugin depends on
	Dependencies []string
}
