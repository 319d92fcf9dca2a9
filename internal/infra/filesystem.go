package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// FileSystemImpl implements domain.FileSystem.
type FileSystemImpl struct {
	homeDir string
}

// NewFileSystem creates a filesystem helper for the current user.
func NewFileSystem() domain.FileSystem {
	home, _ := os.UserHomeDir()
	return &FileSystemImpl{homeDir: home}
}

// NewFileSystemWithHome creates a filesystem helper with custom home (for testing).
func NewFileSystemWithHome(home string) domain.FileSystem {
	return &FileSystemImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fs *FileSystemImpl) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(fs.ExpandHome(path))
	return err == nil
}

// ExpandHome expands ~ to the user's home directory.
func (fs *FileSystemImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(fs.homeDir, path[2:])
	}
	if path == "~" {
		return fs.homeDir
	}
	return path
}

// Ensure FileSystemImpl implements domain.FileSystem.
var _ domain.FileSystem = (*FileSystemImpl)(nil)
