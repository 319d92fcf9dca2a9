package infra

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// LauncherImpl implements domain.ProcessLauncher.
type LauncherImpl struct {
	fs     domain.FileSystem
	logger *zap.Logger
}

// NewLauncher creates a process launcher.
func NewLauncher(fs domain.FileSystem, logger *zap.Logger) *LauncherImpl {
	if fs == nil {
		fs = NewFileSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LauncherImpl{fs: fs, logger: logger}
}

// StartSupervised spawns a child whose output is logged line by line and whose
// exit is observable through Done.
func (l *LauncherImpl) StartSupervised(path string, args []string) (domain.ChildProcess, error) {
	path = l.fs.ExpandHome(path)
	if !l.fs.Exists(path) {
		return nil, fmt.Errorf("executable not found: %s", path)
	}

	pr, pw := io.Pipe()
	cmd := exec.Command(path, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	child := &childProcess{
		cmd:      cmd,
		output:   pw,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	log := l.logger.With(zap.String("child", path), zap.Int("pid", cmd.Process.Pid))
	go pipeLines(pr, log)
	go child.wait(log)
	return child, nil
}

// StartDetached spawns a fire-and-forget process. Output is discarded.
func (l *LauncherImpl) StartDetached(path string, args []string, minimized bool) error {
	path = l.fs.ExpandHome(path)
	if !l.fs.Exists(path) {
		return fmt.Errorf("executable not found: %s", path)
	}

	cmd := detachedCommand(path, args, minimized)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached %s: %w", path, err)
	}
	l.logger.Info("launched detached process",
		zap.String("path", path),
		zap.Int("pid", cmd.Process.Pid),
		zap.Bool("minimized", minimized))

	// Reap without blocking the caller.
	go func() { _ = cmd.Wait() }()
	return nil
}

func pipeLines(r io.Reader, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Debug("child output", zap.String("line", sc.Text()))
	}
}

// childProcess implements domain.ChildProcess.
type childProcess struct {
	cmd    *exec.Cmd
	output *io.PipeWriter
	done   chan struct{}

	mu       sync.Mutex
	exitCode int
}

func (c *childProcess) wait(log *zap.Logger) {
	err := c.cmd.Wait()
	c.output.Close()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = 1
	}

	c.mu.Lock()
	c.exitCode = code
	c.mu.Unlock()
	close(c.done)

	log.Info("child process exited", zap.Int("exit_code", code))
}

func (c *childProcess) PID() int {
	return c.cmd.Process.Pid
}

func (c *childProcess) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *childProcess) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

func (c *childProcess) Done() <-chan struct{} {
	return c.done
}

// Kill terminates the child. Safe to call after exit.
func (c *childProcess) Kill() error {
	if !c.Running() {
		return nil
	}
	if err := c.cmd.Process.Kill(); err != nil && c.Running() {
		return err
	}
	return nil
}

// Ensure LauncherImpl implements domain.ProcessLauncher.
var _ domain.ProcessLauncher = (*LauncherImpl)(nil)
