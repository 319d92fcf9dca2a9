package domain

import "context"

// SceneSource is the capture backend.
// Implementation: obs-websocket v5 client.
type SceneSource interface {
	// CurrentScene returns the active program scene.
	CurrentScene(ctx context.Context) (*Scene, error)

	// ExecutableName returns the executable bound to the scene's capture source ("" if none).
	ExecutableName(ctx context.Context, sceneID string) (string, error)

	// WindowTitle returns the window title bound to the scene's capture source ("" if none).
	WindowTitle(ctx context.Context, sceneID string) (string, error)
}

// ProfileStore provides per-scene launch profiles.
// Implementations: JSON file, SQLCipher database.
type ProfileStore interface {
	// GetForScene looks up by scene ID, then by scene name. Returns (nil, nil) when absent.
	GetForScene(scene Scene) (*LaunchProfile, error)

	// Upsert creates or replaces the profile keyed by SceneID.
	Upsert(profile LaunchProfile) error

	// Delete removes the profile for a scene ID.
	Delete(sceneID string) error

	// List returns all stored profiles.
	List() ([]LaunchProfile, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// ProcessInspector handles OS process queries.
// Implementations: gopsutil (POSIX), tasklist/PowerShell (Windows).
type ProcessInspector interface {
	// FindByName returns processes whose executable name matches name.
	FindByName(name string) ([]ProcessCandidate, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// ExecutablePath resolves the on-disk path of a running process.
	ExecutablePath(pid int) (string, error)

	// WindowTitle reads the main window title of a process ("" if it has none).
	WindowTitle(pid int) (string, error)
}

// BinaryInspector classifies executables and derives sibling tool paths.
type BinaryInspector interface {
	// Bitness classifies a PE executable. Never fails; unknown on any parse error.
	Bitness(path string) Bitness

	// SiblingPath derives the other-bitness variant of a tool path. Returns "" unless it exists.
	SiblingPath(basePath string, target Bitness) string
}

// ChildProcess is a supervised helper process.
type ChildProcess interface {
	PID() int

	// Running is false once the process has exited.
	Running() bool

	// ExitCode is -1 while running.
	ExitCode() int

	// Done is closed when the process exits.
	Done() <-chan struct{}

	// Kill terminates the process. Safe to call after exit.
	Kill() error
}

// ProcessLauncher spawns helper processes.
type ProcessLauncher interface {
	// StartSupervised spawns a child whose lifetime is tracked.
	StartSupervised(path string, args []string) (ChildProcess, error)

	// StartDetached spawns a fire-and-forget process with no captured output.
	StartDetached(path string, args []string, minimized bool) error
}

// OCRController owns the OCR subprocess.
type OCRController interface {
	// State returns a snapshot of the current OCR runtime state.
	State() OCRState

	// Start launches a new OCR session. Fails with ErrAlreadyRunning if one is active.
	Start(ctx context.Context, req OCRStartRequest) error

	// Stop ends the running session. When onlyIfSource is non-empty the session is
	// stopped only if it was started by that source. Returns whether a session was stopped.
	Stop(ctx context.Context, onlyIfSource string) (bool, error)
}

// ScriptQuery carries the identifying signals for script resolution.
type ScriptQuery struct {
	ScriptsDir     string
	ProcessName    string
	WindowTitle    string
	SceneName      string
	ExplicitGameID string
}

// ScriptResolver maps a detected game identity to a helper script.
type ScriptResolver interface {
	// Resolve runs the full precedence chain.
	Resolve(q ScriptQuery) ScriptResolution

	// FindByID returns the first script whose filename contains id ("" if none).
	FindByID(scriptsDir, id string) string
}

// KeyProvider abstracts encryption key management for the encrypted profile store.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
	KeyExists() bool
}

// FileSystem handles path checks and home expansion.
type FileSystem interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands a leading ~ to the user's home directory.
	ExpandHome(path string) string
}
