package daemon

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

var errBackend = errors.New("backend unreachable")

// fakeSource implements domain.SceneSource for testing
type fakeSource struct {
	mu     sync.Mutex
	scene  *domain.Scene
	exe    map[string]string
	titles map[string]string
}

func (f *fakeSource) setScene(s *domain.Scene) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scene = s
}

func (f *fakeSource) CurrentScene(ctx context.Context) (*domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scene == nil {
		return nil, domain.ErrNoScene
	}
	s := *f.scene
	return &s, nil
}

func (f *fakeSource) ExecutableName(ctx context.Context, sceneID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exe[sceneID], nil
}

func (f *fakeSource) WindowTitle(ctx context.Context, sceneID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titles[sceneID], nil
}

// fakeProfiles implements domain.ProfileStore for testing
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.LaunchProfile
	err      error
	panicky  bool
	lookups  int
}

func (f *fakeProfiles) GetForScene(scene domain.Scene) (*domain.LaunchProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.panicky {
		panic("profile store exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[scene.ID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeProfiles) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func (f *fakeProfiles) Upsert(p domain.LaunchProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.SceneID] = p
	return nil
}

func (f *fakeProfiles) Delete(sceneID string) error { return nil }

func (f *fakeProfiles) List() ([]domain.LaunchProfile, error) { return nil, nil }

func (f *fakeProfiles) Close() error { return nil }

// fakeInspector implements domain.ProcessInspector for testing
type fakeInspector struct {
	mu    sync.Mutex
	procs map[string]int
}

func (f *fakeInspector) FindByName(name string) ([]domain.ProcessCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pid, ok := f.procs[name]; ok {
		return []domain.ProcessCandidate{{PID: pid, Name: name, MemoryBytes: 1 << 30}}, nil
	}
	return nil, nil
}

func (f *fakeInspector) IsRunning(pid int) bool                 { return true }
func (f *fakeInspector) ExecutablePath(pid int) (string, error) { return "", domain.ErrNotRunning }
func (f *fakeInspector) WindowTitle(pid int) (string, error)    { return "", nil }

// fakeChild implements domain.ChildProcess for testing
type fakeChild struct {
	mu     sync.Mutex
	pid    int
	killed bool
	done   chan struct{}
}

func (c *fakeChild) PID() int { return c.pid }

func (c *fakeChild) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.killed
}

func (c *fakeChild) ExitCode() int {
	if c.Running() {
		return -1
	}
	return 0
}

func (c *fakeChild) Done() <-chan struct{} { return c.done }

func (c *fakeChild) Kill() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.killed {
		c.killed = true
		close(c.done)
	}
	return nil
}

type spawnCall struct {
	path string
	args []string
}

// fakeLauncher implements domain.ProcessLauncher for testing
type fakeLauncher struct {
	mu       sync.Mutex
	spawns   []spawnCall
	children []*fakeChild
	detached []string
}

func (f *fakeLauncher) StartSupervised(path string, args []string) (domain.ChildProcess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns = append(f.spawns, spawnCall{path: path, args: args})
	child := &fakeChild{pid: 9000 + len(f.spawns), done: make(chan struct{})}
	f.children = append(f.children, child)
	return child, nil
}

func (f *fakeLauncher) StartDetached(path string, args []string, minimized bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = append(f.detached, path)
	return nil
}

func (f *fakeLauncher) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

// fakeOCR implements domain.OCRController for testing
type fakeOCR struct {
	mu     sync.Mutex
	state  domain.OCRState
	starts int
	stops  int
}

func (f *fakeOCR) State() domain.OCRState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeOCR) Start(ctx context.Context, req domain.OCRStartRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Running {
		return domain.ErrAlreadyRunning
	}
	f.starts++
	f.state = domain.OCRState{Running: true, Source: req.Source, Mode: req.Mode, SceneID: req.SceneID, PID: 77}
	return nil
}

func (f *fakeOCR) Stop(ctx context.Context, onlyIfSource string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.Running || (onlyIfSource != "" && f.state.Source != onlyIfSource) {
		return false, nil
	}
	f.stops++
	f.state = domain.OCRState{}
	return true, nil
}

// fakeFS implements domain.FileSystem for testing
type fakeFS struct{}

func (fakeFS) Exists(path string) bool       { return false }
func (fakeFS) ExpandHome(path string) string { return path }

var (
	_ domain.SceneSource      = (*fakeSource)(nil)
	_ domain.ProfileStore     = (*fakeProfiles)(nil)
	_ domain.ProcessInspector = (*fakeInspector)(nil)
	_ domain.ChildProcess     = (*fakeChild)(nil)
	_ domain.ProcessLauncher  = (*fakeLauncher)(nil)
	_ domain.OCRController    = (*fakeOCR)(nil)
	_ domain.FileSystem       = fakeFS{}
)
