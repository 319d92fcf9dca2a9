package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// fakeClock advances whenever the locator sleeps.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLocator(inspector domain.ProcessInspector, config LocatorConfig) (*Locator, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := NewLocator(inspector, config, nil)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestSelectByMemory(t *testing.T) {
	tests := []struct {
		name    string
		cands   []domain.ProcessCandidate
		wantPID int
		wantOK  bool
	}{
		{"empty", nil, 0, false},
		{"single", []domain.ProcessCandidate{{PID: 10, MemoryBytes: 1}}, 10, true},
		{"largest wins", []domain.ProcessCandidate{{PID: 10, MemoryBytes: 1}, {PID: 20, MemoryBytes: 900}, {PID: 30, MemoryBytes: 5}}, 20, true},
		{"tie keeps lowest pid", []domain.ProcessCandidate{{PID: 30, MemoryBytes: 5}, {PID: 12, MemoryBytes: 5}}, 12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, ok := SelectByMemory(tt.cands)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPID, best.PID)
		})
	}
}

func TestLocator_GetPidByProcessName(t *testing.T) {
	inspector := newMockInspector()
	inspector.procs["game.exe"] = []domain.ProcessCandidate{
		{PID: 100, MemoryBytes: 20 << 20},
		{PID: 200, MemoryBytes: 800 << 20},
	}
	l, clock := newTestLocator(inspector, DefaultLocatorConfig())

	assert.Equal(t, 200, l.GetPidByProcessName(context.Background(), "game.exe"))
	assert.Empty(t, clock.slept)
	assert.Equal(t, -1, l.GetPidByProcessName(context.Background(), ""))
}

func TestLocator_MemoryFloorOnlyAppliesToGameSelection(t *testing.T) {
	inspector := newMockInspector()
	inspector.procs["game.exe"] = []domain.ProcessCandidate{
		{PID: 100, MemoryBytes: 8 << 20},
		{PID: 200, MemoryBytes: 20 << 20},
	}
	inspector.procs["agent.exe"] = []domain.ProcessCandidate{{PID: 7100, MemoryBytes: 8 << 20}}
	l, _ := newTestLocator(inspector, LocatorConfig{MinMemoryBytes: 20 << 20})

	// At or below the floor is a shim, never the game.
	assert.Equal(t, -1, l.GetPidByProcessName(context.Background(), "game.exe"))
	inspector.procs["game.exe"] = append(inspector.procs["game.exe"], domain.ProcessCandidate{PID: 300, MemoryBytes: 600 << 20})
	assert.Equal(t, 300, l.GetPidByProcessName(context.Background(), "game.exe"))

	// Presence checks see small processes.
	assert.Equal(t, []int{7100}, l.RunningPIDs("agent.exe"))
	assert.Equal(t, []int{100, 200, 300}, l.RunningPIDs("game.exe"))
}

func TestLocator_Alive(t *testing.T) {
	inspector := newMockInspector()
	inspector.run("game.exe", 4242)
	l, _ := newTestLocator(inspector, DefaultLocatorConfig())

	assert.True(t, l.Alive(4242))
	assert.False(t, l.Alive(5000))
	assert.False(t, l.Alive(-1))
}

func TestLocator_RetriesUntilFound(t *testing.T) {
	inspector := newMockInspector()
	inspector.sequence["game.exe"] = [][]domain.ProcessCandidate{nil, nil}
	inspector.run("game.exe", 4242)
	l, clock := newTestLocator(inspector, DefaultLocatorConfig())

	assert.Equal(t, 4242, l.GetPidByProcessName(context.Background(), "game.exe"))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.slept)
}

func TestLocator_GivesUpAfterTimeout(t *testing.T) {
	inspector := newMockInspector()
	l, clock := newTestLocator(inspector, LocatorConfig{RetryInterval: time.Second, Timeout: 3 * time.Second})

	assert.Equal(t, -1, l.GetPidByProcessName(context.Background(), "missing.exe"))
	assert.Len(t, clock.slept, 3)
	assert.Len(t, inspector.lookups, 4)
}

func TestLocator_SingleAttemptWithoutTimeout(t *testing.T) {
	inspector := newMockInspector()
	inspector.findErr = errBackend
	l, clock := newTestLocator(inspector, LocatorConfig{})

	assert.Equal(t, -1, l.GetPidByProcessName(context.Background(), "game.exe"))
	assert.Empty(t, clock.slept)
	assert.Len(t, inspector.lookups, 1)
}

func TestLocator_CancelledContextStopsRetrying(t *testing.T) {
	inspector := newMockInspector()
	l, _ := newTestLocator(inspector, DefaultLocatorConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, -1, l.GetPidByProcessName(ctx, "game.exe"))
	assert.Len(t, inspector.lookups, 1)
}

func TestLocator_RunningPIDs(t *testing.T) {
	inspector := newMockInspector()
	inspector.procs["Textractor.exe"] = []domain.ProcessCandidate{{PID: 30}, {PID: 10}}
	inspector.procs["textractor"] = []domain.ProcessCandidate{{PID: 10}}
	l, _ := newTestLocator(inspector, DefaultLocatorConfig())

	assert.Equal(t, []int{10, 30}, l.RunningPIDs("Textractor.exe", "textractor", "other.exe"))
	assert.Empty(t, l.RunningPIDs())

	inspector.findErr = errBackend
	assert.Empty(t, l.RunningPIDs("Textractor.exe"))
}

func TestLocator_BestEffortLookups(t *testing.T) {
	inspector := newMockInspector()
	inspector.titles[5] = "Game Alpha"
	inspector.exePaths[5] = `C:\Games\GameAlpha.exe`
	l, _ := newTestLocator(inspector, DefaultLocatorConfig())

	assert.Equal(t, "Game Alpha", l.GetLiveWindowTitle(5))
	assert.Equal(t, `C:\Games\GameAlpha.exe`, l.GetProcessExecutablePath(5))
	assert.Empty(t, l.GetProcessExecutablePath(6))
}
