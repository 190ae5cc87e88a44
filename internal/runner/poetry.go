package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nonebot/store-test/internal/registry"
)

const (
	// DefaultOutputLimit is the number of characters of test output kept
	DefaultOutputLimit = 50000

	// DefaultTimeout bounds one plugin test
	DefaultTimeout = 15 * time.Minute

	metadataFile = "metadata.json"
)

// PoetryOption configures a PoetryRunner
type PoetryOption func(*PoetryRunner)

// WithPoetryBinary sets the poetry executable
func WithPoetryBinary(binary string) PoetryOption {
	return func(r *PoetryRunner) {
		r.poetry = binary
	}
}

// WithOutputLimit sets how many characters of output are kept
func WithOutputLimit(limit int) PoetryOption {
	return func(r *PoetryRunner) {
		r.outputLimit = limit
	}
}

// WithTimeout bounds one plugin test
func WithTimeout(timeout time.Duration) PoetryOption {
	return func(r *PoetryRunner) {
		r.timeout = timeout
	}
}

// WithEnviron replaces the base environment, os.Environ by default
func WithEnviron(environ func() []string) PoetryOption {
	return func(r *PoetryRunner) {
		r.environ = environ
	}
}

// PoetryRunner tests plugins in per-plugin Poetry projects under workDir.
// Every test starts from a freshly created project.
type PoetryRunner struct {
	commands    CommandRunner
	workDir     string
	poetry      string
	outputLimit int
	timeout     time.Duration
	environ     func() []string
}

var _ Runner = (*PoetryRunner)(nil)

// NewPoetryRunner creates a runner creating projects under workDir
func NewPoetryRunner(commands CommandRunner, workDir string, opts ...PoetryOption) *PoetryRunner {
	r := &PoetryRunner{
		commands:    commands,
		workDir:     workDir,
		poetry:      "poetry",
		outputLimit: DefaultOutputLimit,
		timeout:     DefaultTimeout,
		environ:     os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProjectDir returns the test project directory of a plugin
func (r *PoetryRunner) ProjectDir(key registry.Key) string {
	return filepath.Join(r.workDir, key.PathSafe()+"-test")
}

// testRun holds the state of a single plugin test
type testRun struct {
	req  *Request
	dir  string
	env  []string
	log  outputLog
	deps []string
}

// Run installs the plugin, collects its version and store dependencies and
// tries to load it. A test exceeding the runner timeout is a failed load,
// not an error.
func (r *PoetryRunner) Run(ctx context.Context, req *Request) (*Outcome, error) {
	if req == nil || req.ProjectLink == "" || req.ModuleName == "" {
		return nil, fmt.Errorf("project link and module name are required")
	}

	testCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		testCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	dir, err := filepath.Abs(r.ProjectDir(req.Key()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	if err := os.MkdirAll(r.workDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	run := &testRun{
		req: req,
		dir: dir,
		env: r.env(filepath.Join(dir, metadataFile)),
	}

	outcome := &Outcome{}
	if err := r.test(testCtx, run, outcome); err != nil {
		if ctx.Err() != nil || !errors.Is(testCtx.Err(), context.DeadlineExceeded) {
			return nil, err
		}
		run.log.add(fmt.Sprintf("Plugin %s test timed out after %s.", req.ModuleName, r.timeout))
		outcome.Passed = false
		outcome.Metadata = nil
	}

	outcome.Dependencies = run.deps
	outcome.Output = Truncate(StripANSI(run.log.String()), r.outputLimit)

	slog.Debug("Plugin test finished",
		"key", req.Key(),
		"passed", outcome.Passed,
		"version", outcome.Version,
		"dependencies", run.deps)
	return outcome, nil
}

// test runs the project steps, filling outcome as they succeed
func (r *PoetryRunner) test(ctx context.Context, run *testRun, outcome *Outcome) error {
	created, err := r.createProject(ctx, run)
	if err != nil || !created {
		return err
	}
	if outcome.Version, err = r.showPackage(ctx, run); err != nil {
		return err
	}
	if err := r.exportDependencies(ctx, run); err != nil {
		return err
	}
	outcome.Passed, outcome.Metadata, err = r.runProject(ctx, run)
	return err
}

// env returns the environment of every poetry invocation
func (r *PoetryRunner) env(metadataPath string) []string {
	base := r.environ()
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		// poetry must not pick up the virtualenv the tool itself runs in
		if name == "VIRTUAL_ENV" || name == "LOGURU_COLORIZE" || name == MetadataEnv {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "LOGURU_COLORIZE=true", MetadataEnv+"="+metadataPath)
}

func (r *PoetryRunner) poetryCommand(run *testRun, args ...string) *Command {
	return &Command{Dir: run.dir, Env: run.env, Name: r.poetry, Args: args}
}

// createProject recreates the project and installs the plugin into it. It
// reports false when installation failed.
func (r *PoetryRunner) createProject(ctx context.Context, run *testRun) (bool, error) {
	project := run.req.ProjectLink

	// a project left by an earlier run holds an outdated install
	if err := os.RemoveAll(run.dir); err != nil {
		return false, fmt.Errorf("failed to remove previous project: %w", err)
	}
	if err := os.Mkdir(run.dir, 0750); err != nil {
		return false, fmt.Errorf("failed to create project directory: %w", err)
	}

	steps := []func() (CommandResult, error){
		func() (CommandResult, error) {
			return r.commands.Run(ctx, r.poetryCommand(run, "init", "-n"))
		},
		func() (CommandResult, error) {
			return CommandResult{}, relaxConstraints(filepath.Join(run.dir, "pyproject.toml"))
		},
		func() (CommandResult, error) {
			return r.commands.Run(ctx, r.poetryCommand(run, "config", "virtualenvs.in-project", "true", "--local"))
		},
		func() (CommandResult, error) {
			return r.commands.Run(ctx, r.poetryCommand(run, "env", "info", "--ansi"))
		},
		func() (CommandResult, error) {
			return r.commands.Run(ctx, r.poetryCommand(run, "add", project))
		},
	}

	var stdout strings.Builder
	for _, step := range steps {
		result, err := step()
		if err != nil {
			return false, fmt.Errorf("failed to create project %s: %w", project, err)
		}
		stdout.WriteString(result.Stdout)
		if !result.Success() {
			run.log.add(fmt.Sprintf("Project %s could not be created:", project))
			run.log.addIndented(result.Stderr)
			return false, nil
		}
	}

	slog.Debug("Created test project", "key", run.req.Key(), "dir", run.dir, "output", stdout.String())
	return true, nil
}

// relaxConstraints turns caret constraints of pyproject.toml into tilde
// constraints
func relaxConstraints(path string) error {
	//nolint:gosec // path is inside the project directory created above
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pyproject.toml: %w", err)
	}
	relaxed := strings.ReplaceAll(string(data), "^", "~")
	if err := os.WriteFile(path, []byte(relaxed), 0600); err != nil {
		return fmt.Errorf("failed to write pyproject.toml: %w", err)
	}
	return nil
}

func (r *PoetryRunner) showPackage(ctx context.Context, run *testRun) (string, error) {
	project := run.req.ProjectLink
	result, err := r.commands.Run(ctx, r.poetryCommand(run, "show", project, "--ansi"))
	if err != nil {
		return "", fmt.Errorf("failed to show package %s: %w", project, err)
	}
	if !result.Success() {
		run.log.add(fmt.Sprintf("Could not get information about %s.", project))
		return "", nil
	}
	run.log.add(fmt.Sprintf("Package %s:", project))
	run.log.addIndented(result.Stdout)
	return ParseShowVersion(result.Stdout), nil
}

func (r *PoetryRunner) exportDependencies(ctx context.Context, run *testRun) error {
	project := run.req.ProjectLink
	result, err := r.commands.Run(ctx, r.poetryCommand(run, "export", "--without-hashes"))
	if err != nil {
		return fmt.Errorf("failed to export dependencies of %s: %w", project, err)
	}
	if !result.Success() {
		run.log.add(fmt.Sprintf("Could not get the dependencies of %s.", project))
		return nil
	}
	run.deps = PluginDependencies(result.Stdout, project, run.req.KnownPlugins)
	run.log.add(fmt.Sprintf("Store plugins %s depends on:", project))
	run.log.add("    " + strings.Join(run.deps, ", "))
	return nil
}

// runProject writes the runner files and loads the plugin
func (r *PoetryRunner) runProject(ctx context.Context, run *testRun) (bool, *registry.Metadata, error) {
	files := map[string]string{
		".env":      "DRIVER=~none",
		".env.prod": run.req.Config,
		"runner.py": renderRunnerScript(run.req.ModuleName, run.deps),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(run.dir, name), []byte(content), 0600); err != nil {
			return false, nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	metadataPath := filepath.Join(run.dir, metadataFile)
	if err := os.Remove(metadataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, nil, fmt.Errorf("failed to remove stale metadata: %w", err)
	}

	result, err := r.commands.Run(ctx, r.poetryCommand(run, "run", "python", "runner.py"))
	if err != nil {
		return false, nil, fmt.Errorf("failed to run plugin %s: %w", run.req.ModuleName, err)
	}

	status := "loaded"
	if !result.Success() {
		status = "failed to load"
	}
	run.log.add(fmt.Sprintf("Plugin %s %s:", run.req.ModuleName, status))
	run.log.addIndented(result.Stdout)
	run.log.addIndented(result.Stderr)

	metadata, err := readMetadata(metadataPath)
	if err != nil {
		run.log.add(fmt.Sprintf("Could not read plugin metadata: %v", err))
	}
	return result.Success(), metadata, nil
}

// readMetadata reads the metadata dumped by runner.py. A missing file means
// the plugin declares no metadata.
func readMetadata(path string) (*registry.Metadata, error) {
	//nolint:gosec // path is inside the project directory
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var metadata registry.Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return &metadata, nil
}
