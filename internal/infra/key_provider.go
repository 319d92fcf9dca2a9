package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// ProfileKeyEnv, when set, carries the base64 profile DB key and takes
// precedence over the key file.
const ProfileKeyEnv = "SCENEHOOK_PROFILES_KEY"

const (
	keyFileName = "profiles.key"
	keySize     = 32 // SQLCipher raw key
)

// FileKeyProvider implements domain.KeyProvider for the profile database.
// The key lives base64-encoded in a 0600 file next to the database.
type FileKeyProvider struct {
	keyPath string
	getenv  func(string) string
}

// NewFileKeyProvider uses the default key file inside dataDir.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return NewFileKeyProviderAt(filepath.Join(dataDir, keyFileName))
}

// NewFileKeyProviderAt uses keyPath as the key file.
func NewFileKeyProviderAt(keyPath string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: keyPath, getenv: os.Getenv}
}

func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

func (p *FileKeyProvider) envKey() string {
	return strings.TrimSpace(p.getenv(ProfileKeyEnv))
}

// GetKey returns the key from the environment or the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	if v := p.envKey(); v != "" {
		key, err := decodeKey(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ProfileKeyEnv, err)
		}
		return key, nil
	}

	data, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile key %s: %w", p.keyPath, err)
	}
	key, err := decodeKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid profile key %s: %w", p.keyPath, err)
	}
	return key, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key is %d bytes, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey writes key to the key file, creating its directory.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("refusing to store %d-byte key, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return fmt.Errorf("failed to write profile key: %w", err)
	}
	return nil
}

// KeyExists reports whether a key is available from either source.
func (p *FileKeyProvider) KeyExists() bool {
	if p.envKey() != "" {
		return true
	}
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate profile key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the existing key, or generates and stores one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
