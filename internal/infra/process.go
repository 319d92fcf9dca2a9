// Package infra implements infrastructure concerns (processes, binaries, stores, capture backend).
package infra

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// commTruncation is the Linux comm length; longer executable names are cut here.
const commTruncation = 15

// processInfo is the subset of a process listing used for name lookup.
type processInfo struct {
	PID  int
	Name string
	RSS  uint64
}

// processLister enumerates running processes.
type processLister func() ([]processInfo, error)

// listWithGopsutil enumerates processes via gopsutil.
func listWithGopsutil() ([]processInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	infos := make([]processInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		info := processInfo{PID: int(p.Pid), Name: name}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			info.RSS = mem.RSS
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// NewProcessInspector selects the inspector for the running OS family.
func NewProcessInspector(logger *zap.Logger) domain.ProcessInspector {
	if runtime.GOOS == "windows" {
		return NewTasklistInspector(logger)
	}
	return NewPosixInspector(logger)
}

// GameMemoryFloor is the memory a process must exceed to be picked as a game.
// Only Windows filters; POSIX lookups go by PID existence.
func GameMemoryFloor() uint64 {
	if runtime.GOOS == "windows" {
		return MinTasklistMemoryKB * 1024
	}
	return 0
}

// psutilProcesses holds the queries that gopsutil answers on every OS.
type psutilProcesses struct{}

// IsRunning checks if a PID exists and is running.
func (psutilProcesses) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// ExecutablePath resolves the on-disk path of a running process.
func (psutilProcesses) ExecutablePath(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("%w: pid %d", domain.ErrNotRunning, pid)
	}
	return p.Exe()
}

// PosixInspector implements domain.ProcessInspector using gopsutil.
// Name lookup mirrors pgrep: any live process with a matching name counts.
type PosixInspector struct {
	psutilProcesses
	list      processLister
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewPosixInspector creates a gopsutil-backed inspector.
func NewPosixInspector(logger *zap.Logger) *PosixInspector {
	return NewPosixInspectorWithDeps(logger, listWithGopsutil, NewCommandRunner())
}

// NewPosixInspectorWithDeps creates an inspector with injected dependencies (for testing).
func NewPosixInspectorWithDeps(logger *zap.Logger, list processLister, cmdRunner CommandRunner) *PosixInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PosixInspector{list: list, cmdRunner: cmdRunner, logger: logger}
}

// FindByName returns processes whose name matches name, with or without its
// extension, tolerating comm truncation.
func (pi *PosixInspector) FindByName(name string) ([]domain.ProcessCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	infos, err := pi.list()
	if err != nil {
		return nil, err
	}

	var found []domain.ProcessCandidate
	for _, info := range infos {
		if matchesProcessName(info.Name, name) {
			found = append(found, domain.ProcessCandidate{PID: info.PID, Name: info.Name, MemoryBytes: info.RSS})
		}
	}
	return found, nil
}

// matchesProcessName compares a listed name against a wanted executable name.
func matchesProcessName(listed, wanted string) bool {
	if listed == "" {
		return false
	}
	wantedBase := filepath.Base(strings.ReplaceAll(wanted, `\`, "/"))
	stem := strings.TrimSuffix(wantedBase, filepath.Ext(wantedBase))

	if strings.EqualFold(listed, wantedBase) || strings.EqualFold(listed, stem) {
		return true
	}
	if len(listed) == commTruncation {
		lw := strings.ToLower(wantedBase)
		return strings.HasPrefix(lw, strings.ToLower(listed))
	}
	return false
}

// WindowTitle reads the window title via xdotool when available. Returns "" otherwise.
func (pi *PosixInspector) WindowTitle(pid int) (string, error) {
	out, err := pi.cmdRunner.Output("xdotool", "search", "--pid", strconv.Itoa(pid))
	if err != nil {
		pi.logger.Debug("window title lookup unavailable", zap.Int("pid", pid), zap.Error(err))
		return "", nil
	}
	for _, id := range strings.Fields(string(out)) {
		name, err := pi.cmdRunner.Output("xdotool", "getwindowname", id)
		if err != nil {
			continue
		}
		if title := strings.TrimSpace(string(name)); title != "" {
			return title, nil
		}
	}
	return "", nil
}

// Ensure PosixInspector implements domain.ProcessInspector.
var _ domain.ProcessInspector = (*PosixInspector)(nil)
