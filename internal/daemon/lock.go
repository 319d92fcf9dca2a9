package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrInstanceRunning is returned when another engine holds the instance lock.
var ErrInstanceRunning = errors.New("another scenehook instance is running")

// InstanceLock guards against two engines driving the same helpers.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes the exclusive lock at path without blocking.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrInstanceRunning, path)
	}
	return &InstanceLock{lock: l}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *InstanceLock) Release() error {
	return l.lock.Unlock()
}
