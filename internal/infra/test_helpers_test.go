package infra

import (
	"fmt"
	"strings"
)

// mockCommandRunner is a test double for CommandRunner keyed by the joined command line.
type mockCommandRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (m *mockCommandRunner) key(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (m *mockCommandRunner) On(out string, name string, args ...string) {
	m.outputs[m.key(name, args...)] = out
}

func (m *mockCommandRunner) Fail(err error, name string, args ...string) {
	m.errs[m.key(name, args...)] = err
}

func (m *mockCommandRunner) Run(name string, args ...string) error {
	_, err := m.Output(name, args...)
	return err
}

func (m *mockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	k := m.key(name, args...)
	m.calls = append(m.calls, k)
	if err, ok := m.errs[k]; ok {
		return nil, err
	}
	if out, ok := m.outputs[k]; ok {
		return []byte(out), nil
	}
	return nil, fmt.Errorf("unexpected command: %s", k)
}

// Ensure mockCommandRunner implements CommandRunner
var _ CommandRunner = (*mockCommandRunner)(nil)
