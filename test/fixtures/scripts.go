// Package fixtures provides test helpers for unit and integration tests.
package fixtures

import (
	"os"
	"path/filepath"
)

// FakeScriptsDir creates a directory of helper script files.
type FakeScriptsDir struct {
	Dir string
}

// NewFakeScriptsDir creates a new fake scripts directory generator rooted at dir.
func NewFakeScriptsDir(dir string) *FakeScriptsDir {
	return &FakeScriptsDir{Dir: dir}
}

// Create writes one placeholder script per name. Returns the full paths in order.
func (f *FakeScriptsDir) Create(names ...string) ([]string, error) {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(f.Dir, name)
		if err := os.WriteFile(p, []byte("// hook script\n"), 0644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Path returns the full path of a script name inside the directory.
func (f *FakeScriptsDir) Path(name string) string {
	return filepath.Join(f.Dir, name)
}
