package infra

import (
	"context"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds every external tool invocation.
const DefaultCommandTimeout = 10 * time.Second

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands with a timeout.
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner returns a runner using DefaultCommandTimeout.
func NewCommandRunner() *RealCommandRunner {
	return &RealCommandRunner{Timeout: DefaultCommandTimeout}
}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(name string, args ...string) error {
	ctx, cancel := r.context()
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	ctx, cancel := r.context()
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

func (r *RealCommandRunner) context() (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Ensure RealCommandRunner implements CommandRunner.
var _ CommandRunner = (*RealCommandRunner)(nil)
