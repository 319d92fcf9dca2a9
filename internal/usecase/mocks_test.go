package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// mockSceneSource implements domain.SceneSource for testing
type mockSceneSource struct {
	scene    *domain.Scene
	sceneErr error
	exe      map[string]string
	titles   map[string]string
	lookErr  error
}

func (m *mockSceneSource) CurrentScene(ctx context.Context) (*domain.Scene, error) {
	if m.sceneErr != nil {
		return nil, m.sceneErr
	}
	if m.scene == nil {
		return nil, domain.ErrNoScene
	}
	s := *m.scene
	return &s, nil
}

func (m *mockSceneSource) ExecutableName(ctx context.Context, sceneID string) (string, error) {
	if m.lookErr != nil {
		return "", m.lookErr
	}
	return m.exe[sceneID], nil
}

func (m *mockSceneSource) WindowTitle(ctx context.Context, sceneID string) (string, error) {
	if m.lookErr != nil {
		return "", m.lookErr
	}
	return m.titles[sceneID], nil
}

// mockInspector implements domain.ProcessInspector for testing
type mockInspector struct {
	procs    map[string][]domain.ProcessCandidate
	sequence map[string][][]domain.ProcessCandidate // consumed one lookup at a time before procs
	findErr  error
	titles   map[int]string
	exePaths map[int]string
	lookups  []string
}

func newMockInspector() *mockInspector {
	return &mockInspector{
		procs:    make(map[string][]domain.ProcessCandidate),
		sequence: make(map[string][][]domain.ProcessCandidate),
		titles:   make(map[int]string),
		exePaths: make(map[int]string),
	}
}

func (m *mockInspector) run(name string, pid int) {
	m.procs[name] = []domain.ProcessCandidate{{PID: pid, Name: name, MemoryBytes: 512 << 20}}
}

func (m *mockInspector) FindByName(name string) ([]domain.ProcessCandidate, error) {
	m.lookups = append(m.lookups, name)
	if m.findErr != nil {
		return nil, m.findErr
	}
	if seq := m.sequence[name]; len(seq) > 0 {
		m.sequence[name] = seq[1:]
		return seq[0], nil
	}
	return m.procs[name], nil
}

func (m *mockInspector) IsRunning(pid int) bool {
	for _, cands := range m.procs {
		for _, c := range cands {
			if c.PID == pid {
				return true
			}
		}
	}
	return false
}

func (m *mockInspector) ExecutablePath(pid int) (string, error) {
	if p, ok := m.exePaths[pid]; ok {
		return p, nil
	}
	return "", domain.ErrNotRunning
}

func (m *mockInspector) WindowTitle(pid int) (string, error) {
	return m.titles[pid], nil
}

// mockChild implements domain.ChildProcess for testing
type mockChild struct {
	pid     int
	running bool
	killed  bool
	done    chan struct{}
}

func (m *mockChild) PID() int      { return m.pid }
func (m *mockChild) Running() bool { return m.running }
func (m *mockChild) ExitCode() int {
	if m.running {
		return -1
	}
	return 0
}
func (m *mockChild) Done() <-chan struct{} { return m.done }
func (m *mockChild) Kill() error {
	m.killed = true
	m.running = false
	return nil
}

// exit simulates the child exiting on its own.
func (m *mockChild) exit() {
	m.running = false
}

type launchCall struct {
	path      string
	args      []string
	minimized bool
}

// mockLauncher implements domain.ProcessLauncher for testing
type mockLauncher struct {
	supervised []launchCall
	detached   []launchCall
	children   []*mockChild
	startErr   error
	nextPID    int
}

func (m *mockLauncher) StartSupervised(path string, args []string) (domain.ChildProcess, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.supervised = append(m.supervised, launchCall{path: path, args: args})
	m.nextPID++
	child := &mockChild{pid: 9000 + m.nextPID, running: true, done: make(chan struct{})}
	m.children = append(m.children, child)
	return child, nil
}

func (m *mockLauncher) StartDetached(path string, args []string, minimized bool) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.detached = append(m.detached, launchCall{path: path, args: args, minimized: minimized})
	return nil
}

func (m *mockLauncher) lastChild() *mockChild {
	if len(m.children) == 0 {
		return nil
	}
	return m.children[len(m.children)-1]
}

// mockBinaries implements domain.BinaryInspector for testing
type mockBinaries struct {
	bitness  map[string]domain.Bitness
	siblings map[string]string // "path|bits" -> sibling
}

func (m *mockBinaries) Bitness(path string) domain.Bitness {
	if b, ok := m.bitness[path]; ok {
		return b
	}
	return domain.BitnessUnknown
}

func (m *mockBinaries) SiblingPath(basePath string, target domain.Bitness) string {
	return m.siblings[basePath+"|"+string(target)]
}

// mockProfileStore implements domain.ProfileStore for testing
type mockProfileStore struct {
	profiles  map[string]domain.LaunchProfile
	getErr    error
	upsertErr error
	upserts   []domain.LaunchProfile
}

func newMockProfileStore(profiles ...domain.LaunchProfile) *mockProfileStore {
	m := &mockProfileStore{profiles: make(map[string]domain.LaunchProfile)}
	for _, p := range profiles {
		m.profiles[p.SceneID] = p
	}
	return m
}

func (m *mockProfileStore) GetForScene(scene domain.Scene) (*domain.LaunchProfile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if p, ok := m.profiles[scene.ID]; ok {
		return &p, nil
	}
	for _, p := range m.profiles {
		if strings.EqualFold(p.SceneName, scene.Name) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockProfileStore) Upsert(p domain.LaunchProfile) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, p)
	m.profiles[p.SceneID] = p
	return nil
}

func (m *mockProfileStore) Delete(sceneID string) error {
	if _, ok := m.profiles[sceneID]; !ok {
		return domain.ErrProfileNotFound
	}
	delete(m.profiles, sceneID)
	return nil
}

func (m *mockProfileStore) List() ([]domain.LaunchProfile, error) {
	var out []domain.LaunchProfile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProfileStore) Close() error {
	return nil
}

// mockFS implements domain.FileSystem for testing
type mockFS struct {
	existing map[string]bool
}

func (m *mockFS) Exists(path string) bool {
	return m.existing[path]
}

func (m *mockFS) ExpandHome(path string) string {
	return path
}

// mockOCR implements domain.OCRController for testing
type mockOCR struct {
	state    domain.OCRState
	startErr error
	starts   []domain.OCRStartRequest
	stops    []string
}

func (m *mockOCR) State() domain.OCRState {
	return m.state
}

func (m *mockOCR) Start(ctx context.Context, req domain.OCRStartRequest) error {
	m.starts = append(m.starts, req)
	if m.startErr != nil {
		return m.startErr
	}
	if m.state.Running {
		return domain.ErrAlreadyRunning
	}
	m.state = domain.OCRState{Running: true, Source: req.Source, Mode: req.Mode, SceneID: req.SceneID, PID: 77}
	return nil
}

func (m *mockOCR) Stop(ctx context.Context, onlyIfSource string) (bool, error) {
	m.stops = append(m.stops, onlyIfSource)
	if !m.state.Running {
		return false, nil
	}
	if onlyIfSource != "" && m.state.Source != onlyIfSource {
		return false, nil
	}
	m.state = domain.OCRState{}
	return true, nil
}

var errBackend = errors.New("backend unreachable")

// Ensure mocks implement their interfaces.
var (
	_ domain.SceneSource      = (*mockSceneSource)(nil)
	_ domain.ProcessInspector = (*mockInspector)(nil)
	_ domain.ChildProcess     = (*mockChild)(nil)
	_ domain.ProcessLauncher  = (*mockLauncher)(nil)
	_ domain.BinaryInspector  = (*mockBinaries)(nil)
	_ domain.ProfileStore     = (*mockProfileStore)(nil)
	_ domain.FileSystem       = (*mockFS)(nil)
	_ domain.OCRController    = (*mockOCR)(nil)
)
