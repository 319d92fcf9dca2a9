package usecase

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// LocatorConfig bounds the retrying PID lookup.
type LocatorConfig struct {
	RetryInterval time.Duration // Pause between attempts (default 1s)
	Timeout       time.Duration // Give up after this long (0 = single attempt)

	// MinMemoryBytes drops game candidates at or below this footprint.
	// Presence checks (RunningPIDs) ignore it.
	MinMemoryBytes uint64
}

// DefaultLocatorConfig returns the default lookup bounds.
func DefaultLocatorConfig() LocatorConfig {
	return LocatorConfig{
		RetryInterval: time.Second,
		Timeout:       5 * time.Second,
	}
}

// Locator finds the most plausible process for an executable name.
type Locator struct {
	inspector domain.ProcessInspector
	config    LocatorConfig
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewLocator creates a process locator.
func NewLocator(inspector domain.ProcessInspector, config LocatorConfig, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultLocatorConfig().RetryInterval
	}
	return &Locator{
		inspector: inspector,
		config:    config,
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// GetPidByProcessName returns the PID of the largest-memory process named name,
// retrying until the configured timeout. Returns -1 when none is found.
func (l *Locator) GetPidByProcessName(ctx context.Context, name string) int {
	if name == "" {
		return -1
	}
	start := l.now()
	for {
		candidates, err := l.inspector.FindByName(name)
		if err != nil {
			l.logger.Debug("process lookup failed", zap.String("process", name), zap.Error(err))
		}
		candidates = aboveMemoryFloor(candidates, l.config.MinMemoryBytes)
		if best, ok := SelectByMemory(candidates); ok {
			if len(candidates) > 1 {
				l.logger.Info("multiple processes found, selected largest",
					zap.String("process", name),
					zap.Int("pid", best.PID),
					zap.Uint64("memory_bytes", best.MemoryBytes),
					zap.Int("candidates", len(candidates)))
			}
			return best.PID
		}
		if l.now().Sub(start) >= l.config.Timeout {
			return -1
		}
		if err := l.sleep(ctx, l.config.RetryInterval); err != nil {
			return -1
		}
	}
}

// RunningPIDs returns the PIDs of every process matching any of names, in a single
// attempt. Lookup errors are treated as "none running".
func (l *Locator) RunningPIDs(names ...string) []int {
	seen := make(map[int]bool)
	var pids []int
	for _, name := range names {
		candidates, err := l.inspector.FindByName(name)
		if err != nil {
			l.logger.Debug("process lookup failed", zap.String("process", name), zap.Error(err))
			continue
		}
		for _, c := range candidates {
			if !seen[c.PID] {
				seen[c.PID] = true
				pids = append(pids, c.PID)
			}
		}
	}
	sort.Ints(pids)
	return pids
}

// Alive reports whether pid still exists.
func (l *Locator) Alive(pid int) bool {
	return pid > 0 && l.inspector.IsRunning(pid)
}

// GetLiveWindowTitle returns the OS-reported window title of pid ("" if unknown).
func (l *Locator) GetLiveWindowTitle(pid int) string {
	title, err := l.inspector.WindowTitle(pid)
	if err != nil {
		l.logger.Debug("window title unavailable", zap.Int("pid", pid), zap.Error(err))
		return ""
	}
	return title
}

// GetProcessExecutablePath returns the on-disk path of pid ("" if unknown).
func (l *Locator) GetProcessExecutablePath(pid int) string {
	path, err := l.inspector.ExecutablePath(pid)
	if err != nil {
		l.logger.Debug("executable path unavailable", zap.Int("pid", pid), zap.Error(err))
		return ""
	}
	return path
}

// SelectByMemory picks the candidate with the largest memory footprint.
// Ties keep the lowest PID.
func SelectByMemory(candidates []domain.ProcessCandidate) (domain.ProcessCandidate, bool) {
	if len(candidates) == 0 {
		return domain.ProcessCandidate{}, false
	}
	sorted := append([]domain.ProcessCandidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MemoryBytes != sorted[j].MemoryBytes {
			return sorted[i].MemoryBytes > sorted[j].MemoryBytes
		}
		return sorted[i].PID < sorted[j].PID
	})
	return sorted[0], true
}

func aboveMemoryFloor(candidates []domain.ProcessCandidate, floor uint64) []domain.ProcessCandidate {
	if floor == 0 {
		return candidates
	}
	var kept []domain.ProcessCandidate
	for _, c := range candidates {
		if c.MemoryBytes > floor {
			kept = append(kept, c)
		}
	}
	return kept
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
