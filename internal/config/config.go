// Package config provides configuration loading for the store test run.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nonebot/store-test/internal/telemetry"
)

const (
	// SourceTypeGit is the type for listings stored in Git repositories
	SourceTypeGit = "git"

	// SourceTypeURL is the type for listings fetched over HTTP
	SourceTypeURL = "url"

	// SourceTypeFile is the type for listings stored in local files
	SourceTypeFile = "file"
)

// EnvPrefix is the prefix of environment variables bound to CLI flags
const EnvPrefix = "STORE_TEST"

const (
	storeBaseURL   = "https://raw.githubusercontent.com/nonebot/nonebot2/master/assets"
	resultsBaseURL = "https://raw.githubusercontent.com/nonebot/registry/results"

	// DefaultOutputDirectory is where the new snapshot is written
	DefaultOutputDirectory = "public"

	// DefaultStatusFile is the run status file name inside the output directory
	DefaultStatusFile = "status.json"

	// DefaultRunnerWorkDir is the directory holding per-plugin test projects
	DefaultRunnerWorkDir = "plugin_test"

	// DefaultPoetryBinary is the poetry executable looked up in PATH
	DefaultPoetryBinary = "poetry"

	// DefaultRunnerTimeout bounds one plugin test
	DefaultRunnerTimeout = "15m"

	// DefaultOutputLimit is the maximum number of characters of test output kept
	DefaultOutputLimit = 50000

	// DefaultPyPIEndpoint is the package index JSON API root
	DefaultPyPIEndpoint = "https://pypi.org/pypi"

	// DefaultHTTPTimeout bounds one HTTP request
	DefaultHTTPTimeout = "30s"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Store holds the current upstream listings
	Store StoreConfig `yaml:"store"`

	// Previous holds the snapshot written by the previous run
	Previous PreviousConfig `yaml:"previous"`

	Output     OutputConfig     `yaml:"output"`
	Runner     RunnerConfig     `yaml:"runner"`
	PyPI       PyPIConfig       `yaml:"pypi"`
	Validation ValidationConfig `yaml:"validation"`
	HTTP       HTTPConfig       `yaml:"http"`

	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StoreConfig locates the four upstream store listings
type StoreConfig struct {
	Adapters SourceConfig `yaml:"adapters"`
	Bots     SourceConfig `yaml:"bots"`
	Drivers  SourceConfig `yaml:"drivers"`
	Plugins  SourceConfig `yaml:"plugins"`
}

// PreviousConfig locates the previous run's results and plugin list
type PreviousConfig struct {
	Results SourceConfig `yaml:"results"`
	Plugins SourceConfig `yaml:"plugins"`
}

// SourceConfig defines where one JSON document is read from.
// Exactly one of the type-specific configurations must be set.
type SourceConfig struct {
	Git  *GitConfig  `yaml:"git,omitempty"`
	URL  *URLConfig  `yaml:"url,omitempty"`
	File *FileConfig `yaml:"file,omitempty"`
}

// GitConfig defines Git source settings
type GitConfig struct {
	// Repository is the Git repository URL (HTTP/HTTPS/SSH)
	Repository string `yaml:"repository"`

	// Branch is the Git branch to use (mutually exclusive with Tag and Commit)
	Branch string `yaml:"branch,omitempty"`

	// Tag is the Git tag to use (mutually exclusive with Branch and Commit)
	Tag string `yaml:"tag,omitempty"`

	// Commit is the Git commit SHA to use (mutually exclusive with Branch and Tag)
	Commit string `yaml:"commit,omitempty"`

	// Path is the path to the JSON file within the repository
	Path string `yaml:"path"`
}

// URLConfig defines an HTTP source
type URLConfig struct {
	Address string `yaml:"address"`
}

// FileConfig defines local file source configuration
type FileConfig struct {
	// Path can be absolute or relative to the working directory
	Path string `yaml:"path"`
}

// OutputConfig defines where the new snapshot is written
type OutputConfig struct {
	Directory  string `yaml:"directory"`
	StatusFile string `yaml:"statusFile,omitempty"`
}

// RunnerConfig defines how plugin test projects are created and run
type RunnerConfig struct {
	WorkDir     string `yaml:"workDir,omitempty"`
	Poetry      string `yaml:"poetry,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
	OutputLimit int    `yaml:"outputLimit,omitempty"`
}

// PyPIConfig defines the package index used for version lookups
type PyPIConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
}

// ValidationConfig toggles the publication checks of a plugin
type ValidationConfig struct {
	SkipHomepageCheck  bool `yaml:"skipHomepageCheck,omitempty"`
	SkipPublishedCheck bool `yaml:"skipPublishedCheck,omitempty"`
}

// HTTPConfig defines HTTP transport settings
type HTTPConfig struct {
	Timeout string `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from the given options. Without a config
// path the defaults are returned.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := &Config{}
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func defaultURL(src *SourceConfig, address string) {
	if src.Git == nil && src.URL == nil && src.File == nil {
		src.URL = &URLConfig{Address: address}
	}
}

func (c *Config) applyDefaults() {
	defaultURL(&c.Store.Adapters, storeBaseURL+"/adapters.json")
	defaultURL(&c.Store.Bots, storeBaseURL+"/bots.json")
	defaultURL(&c.Store.Drivers, storeBaseURL+"/drivers.json")
	defaultURL(&c.Store.Plugins, storeBaseURL+"/plugins.json")
	defaultURL(&c.Previous.Results, resultsBaseURL+"/results.json")
	defaultURL(&c.Previous.Plugins, resultsBaseURL+"/plugins.json")

	if c.Output.Directory == "" {
		c.Output.Directory = DefaultOutputDirectory
	}
	if c.Output.StatusFile == "" {
		c.Output.StatusFile = DefaultStatusFile
	}
	if c.Runner.WorkDir == "" {
		c.Runner.WorkDir = DefaultRunnerWorkDir
	}
	if c.Runner.Poetry == "" {
		c.Runner.Poetry = DefaultPoetryBinary
	}
	if c.Runner.Timeout == "" {
		c.Runner.Timeout = DefaultRunnerTimeout
	}
	if c.Runner.OutputLimit == 0 {
		c.Runner.OutputLimit = DefaultOutputLimit
	}
	if c.PyPI.Endpoint == "" {
		c.PyPI.Endpoint = DefaultPyPIEndpoint
	}
	if c.HTTP.Timeout == "" {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	sources := []struct {
		name string
		src  *SourceConfig
	}{
		{"store.adapters", &c.Store.Adapters},
		{"store.bots", &c.Store.Bots},
		{"store.drivers", &c.Store.Drivers},
		{"store.plugins", &c.Store.Plugins},
		{"previous.results", &c.Previous.Results},
		{"previous.plugins", &c.Previous.Plugins},
	}
	for _, s := range sources {
		if err := s.src.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	if _, err := time.ParseDuration(c.Runner.Timeout); err != nil {
		return fmt.Errorf("runner.timeout must be a valid duration (e.g., '15m'): %w", err)
	}
	if c.Runner.OutputLimit < 0 {
		return fmt.Errorf("runner.outputLimit must not be negative, got %d", c.Runner.OutputLimit)
	}
	if _, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
		return fmt.Errorf("http.timeout must be a valid duration (e.g., '30s'): %w", err)
	}
	if err := validateAddress(c.PyPI.Endpoint); err != nil {
		return fmt.Errorf("pypi.endpoint: %w", err)
	}
	if filepath.Base(c.Output.StatusFile) != c.Output.StatusFile {
		return fmt.Errorf("output.statusFile must be a file name, got %q", c.Output.StatusFile)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// Validate ensures exactly one source type is configured and that it is complete
func (s *SourceConfig) Validate() error {
	configCount := 0
	if s.Git != nil {
		configCount++
	}
	if s.URL != nil {
		configCount++
	}
	if s.File != nil {
		configCount++
	}

	if configCount == 0 {
		return fmt.Errorf("one of git, url, or file configuration must be specified")
	}
	if configCount > 1 {
		return fmt.Errorf("only one of git, url, or file configuration may be specified")
	}

	switch {
	case s.Git != nil:
		return s.Git.validate()
	case s.URL != nil:
		if err := validateAddress(s.URL.Address); err != nil {
			return fmt.Errorf("url.address: %w", err)
		}
	case s.File != nil:
		if s.File.Path == "" {
			return fmt.Errorf("file.path is required")
		}
	}
	return nil
}

func (g *GitConfig) validate() error {
	if g.Repository == "" {
		return fmt.Errorf("git.repository is required")
	}
	if g.Path == "" {
		return fmt.Errorf("git.path is required")
	}

	refs := 0
	for _, ref := range []string{g.Branch, g.Tag, g.Commit} {
		if ref != "" {
			refs++
		}
	}
	if refs > 1 {
		return fmt.Errorf("only one of git.branch, git.tag, or git.commit may be specified")
	}
	return nil
}

func validateAddress(address string) error {
	if address == "" {
		return errors.New("address is required")
	}
	u, err := url.Parse(address)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", address)
	}
	return nil
}

// GetType returns the inferred type of the source based on which field is present
func (s *SourceConfig) GetType() string {
	switch {
	case s.Git != nil:
		return SourceTypeGit
	case s.URL != nil:
		return SourceTypeURL
	case s.File != nil:
		return SourceTypeFile
	}
	return ""
}

// String describes the source location for logs
func (s *SourceConfig) String() string {
	switch {
	case s.Git != nil:
		ref := s.Git.Branch + s.Git.Tag + s.Git.Commit
		if ref == "" {
			ref = "HEAD"
		}
		return fmt.Sprintf("git:%s@%s/%s", s.Git.Repository, ref, s.Git.Path)
	case s.URL != nil:
		return s.URL.Address
	case s.File != nil:
		return s.File.Path
	}
	return "<unset>"
}

// GetTimeout returns the per-plugin test timeout
func (r *RunnerConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultRunnerTimeout)
	}
	return d
}

// GetTimeout returns the HTTP request timeout
func (h *HTTPConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultHTTPTimeout)
	}
	return d
}

// StatusPath returns the path of the run status file
func (o *OutputConfig) StatusPath() string {
	return filepath.Join(o.Directory, o.StatusFile)
}
