package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

const profileFileVersion = 1

// profileFile is the on-disk JSON layout.
type profileFile struct {
	Version  int                    `json:"version"`
	Profiles []domain.LaunchProfile `json:"profiles"`
}

// JSONProfileStore implements domain.ProfileStore using a JSON file.
// Writes hold an exclusive file lock and replace the file atomically (write + rename).
type JSONProfileStore struct {
	path string
	mu   sync.RWMutex // flock is per-process, not per-goroutine
	lock *flock.Flock
}

// NewJSONProfileStore creates a store backed by path. The file is created on first write.
func NewJSONProfileStore(path string) (*JSONProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return &JSONProfileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the JSON file path.
func (s *JSONProfileStore) Path() string {
	return s.path
}

// GetForScene looks up by scene ID, then by scene name.
func (s *JSONProfileStore) GetForScene(scene domain.Scene) (*domain.LaunchProfile, error) {
	profiles, err := s.List()
	if err != nil {
		return nil, err
	}
	return findProfile(profiles, scene), nil
}

// findProfile applies the ID-then-legacy-name lookup.
func findProfile(profiles []domain.LaunchProfile, scene domain.Scene) *domain.LaunchProfile {
	if scene.ID != "" {
		for i := range profiles {
			if profiles[i].SceneID == scene.ID {
				p := profiles[i]
				return &p
			}
		}
	}
	if scene.Name != "" {
		for i := range profiles {
			if profiles[i].SceneName != "" && strings.EqualFold(profiles[i].SceneName, scene.Name) {
				p := profiles[i]
				return &p
			}
		}
	}
	return nil
}

// Upsert creates or replaces the profile keyed by SceneID.
func (s *JSONProfileStore) Upsert(profile domain.LaunchProfile) error {
	if profile.SceneID == "" {
		return fmt.Errorf("profile requires a scene id")
	}
	profile.Normalize()

	return s.update(func(profiles []domain.LaunchProfile) []domain.LaunchProfile {
		for i := range profiles {
			if profiles[i].SceneID == profile.SceneID {
				profiles[i] = profile
				return profiles
			}
		}
		return append(profiles, profile)
	})
}

// Delete removes the profile for a scene ID.
func (s *JSONProfileStore) Delete(sceneID string) error {
	found := false
	err := s.update(func(profiles []domain.LaunchProfile) []domain.LaunchProfile {
		out := profiles[:0]
		for _, p := range profiles {
			if p.SceneID == sceneID {
				found = true
				continue
			}
			out = append(out, p)
		}
		return out
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, sceneID)
	}
	return nil
}

// List returns all stored profiles sorted by scene name.
func (s *JSONProfileStore) List() ([]domain.LaunchProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.read()
}

// Close releases the lock file handle.
func (s *JSONProfileStore) Close() error {
	return s.lock.Close()
}

func (s *JSONProfileStore) update(fn func([]domain.LaunchProfile) []domain.LaunchProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	profiles, err := s.read()
	if err != nil {
		return err
	}
	return s.atomicWrite(fn(profiles))
}

func (s *JSONProfileStore) read() ([]domain.LaunchProfile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var file profileFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("corrupt profile file %s: %w", s.path, err)
	}
	for i := range file.Profiles {
		file.Profiles[i].Normalize()
	}
	sortProfiles(file.Profiles)
	return file.Profiles, nil
}

// atomicWrite writes profiles to file atomically (write + rename).
func (s *JSONProfileStore) atomicWrite(profiles []domain.LaunchProfile) error {
	sortProfiles(profiles)
	data, err := json.MarshalIndent(profileFile{Version: profileFileVersion, Profiles: profiles}, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

func sortProfiles(profiles []domain.LaunchProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].SceneName != profiles[j].SceneName {
			return profiles[i].SceneName < profiles[j].SceneName
		}
		return profiles[i].SceneID < profiles[j].SceneID
	})
}

// Ensure JSONProfileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*JSONProfileStore)(nil)

// OpenProfileStore opens the configured profile backend ("json" or "sqlite").
// The SQLite backend is encrypted with the key in keyFile, generated on first use;
// an empty keyFile places it next to the database.
func OpenProfileStore(backend, path, keyFile string) (domain.ProfileStore, error) {
	switch backend {
	case "", "json":
		return NewJSONProfileStore(path)
	case "sqlite":
		if keyFile == "" {
			keyFile = filepath.Join(filepath.Dir(path), keyFileName)
		}
		key, err := EnsureKey(NewFileKeyProviderAt(keyFile))
		if err != nil {
			return nil, fmt.Errorf("profile key: %w", err)
		}
		return NewSQLiteProfileStore(path, key)
	default:
		return nil, fmt.Errorf("unknown profile backend: %s", backend)
	}
}
