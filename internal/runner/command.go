package runner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Command describes one process invocation
type Command struct {
	// Dir is the working directory, empty for the current one
	Dir string
	// Env is the full environment, nil to inherit the current one
	Env  []string
	Name string
	Args []string
}

// String returns the command line for logs
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandResult represents the result of executing a command
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

//go:generate mockgen -destination=mocks/mock_command.go -package=mocks -source=command.go CommandRunner

// CommandRunner executes external commands. A non-zero exit status is
// reported in the result; the error is reserved for commands that could
// not be run at all.
type CommandRunner interface {
	Run(ctx context.Context, cmd *Command) (CommandResult, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns the result
func (*ExecRunner) Run(ctx context.Context, command *Command) (CommandResult, error) {
	// #nosec G204 -- commands are built by this package from configuration
	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = command.Env

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}

var _ CommandRunner = (*ExecRunner)(nil)
