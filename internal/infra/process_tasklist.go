package infra

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// MinTasklistMemoryKB is the footprint a Windows process must exceed to be picked
// as the game over same-named shims and crash handlers.
const MinTasklistMemoryKB = 20000

// TasklistInspector implements domain.ProcessInspector with Windows shell tooling.
type TasklistInspector struct {
	psutilProcesses
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewTasklistInspector creates a tasklist/PowerShell backed inspector.
func NewTasklistInspector(logger *zap.Logger) *TasklistInspector {
	return NewTasklistInspectorWithDeps(logger, NewCommandRunner())
}

// NewTasklistInspectorWithDeps creates an inspector with an injected runner (for testing).
func NewTasklistInspectorWithDeps(logger *zap.Logger, cmdRunner CommandRunner) *TasklistInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TasklistInspector{cmdRunner: cmdRunner, logger: logger}
}

// FindByName lists every process with the given image name and its memory.
func (ti *TasklistInspector) FindByName(name string) ([]domain.ProcessCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if !strings.Contains(name, ".") {
		name += ".exe"
	}

	out, err := ti.cmdRunner.Output("tasklist", "/FI", fmt.Sprintf("IMAGENAME eq %s", name), "/FO", "CSV", "/NH")
	if err != nil {
		return nil, fmt.Errorf("tasklist: %w", err)
	}
	return parseTasklistCSV(string(out)), nil
}

// parseTasklistCSV parses `tasklist /FO CSV /NH` output:
// "Image Name","PID","Session Name","Session#","Mem Usage".
// Informational lines ("INFO: No tasks...") are skipped.
func parseTasklistCSV(out string) []domain.ProcessCandidate {
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var found []domain.ProcessCandidate
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) < 5 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			continue
		}
		kb := parseMemKB(rec[4])
		found = append(found, domain.ProcessCandidate{
			PID:         pid,
			Name:        strings.TrimSpace(rec[0]),
			MemoryBytes: kb * 1024,
		})
	}
	return found
}

// parseMemKB reads "123,456 K" (any locale separators) as 123456.
func parseMemKB(s string) uint64 {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.ParseUint(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// WindowTitle reads the main window title through PowerShell.
func (ti *TasklistInspector) WindowTitle(pid int) (string, error) {
	script := fmt.Sprintf("(Get-Process -Id %d -ErrorAction SilentlyContinue).MainWindowTitle", pid)
	out, err := ti.cmdRunner.Output("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return "", fmt.Errorf("powershell window title: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Ensure TasklistInspector implements domain.ProcessInspector.
var _ domain.ProcessInspector = (*TasklistInspector)(nil)
