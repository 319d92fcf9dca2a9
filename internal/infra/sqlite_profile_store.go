package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// SQLiteProfileStore implements domain.ProfileStore using a SQLCipher database.
// A nil key opens the database unencrypted.
type SQLiteProfileStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProfileStore opens (or creates) the profile database at dbPath.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewSQLiteProfileStore(dbPath string, key []byte) (*SQLiteProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := dbPath
	if len(key) > 0 {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to profile database: %w", err)
	}

	s := &SQLiteProfileStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteProfileStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS launch_profiles (
		scene_id TEXT PRIMARY KEY,
		scene_name TEXT NOT NULL DEFAULT '',
		text_hook_mode TEXT NOT NULL DEFAULT 'none',
		ocr_mode TEXT NOT NULL DEFAULT 'none',
		agent_script_path TEXT NOT NULL DEFAULT '',
		launch_delay_seconds REAL NOT NULL DEFAULT 0,
		game_id TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_launch_profiles_name ON launch_profiles (scene_name COLLATE NOCASE);
	`
	_, err := s.db.Exec(schema)
	return err
}

const profileColumns = `scene_id, scene_name, text_hook_mode, ocr_mode, agent_script_path, launch_delay_seconds, game_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.LaunchProfile, error) {
	var p domain.LaunchProfile
	var hook, ocr string
	if err := row.Scan(&p.SceneID, &p.SceneName, &hook, &ocr, &p.AgentScriptPath, &p.LaunchDelaySeconds, &p.GameID); err != nil {
		return nil, err
	}
	p.TextHookMode = domain.TextHookMode(hook)
	p.OCRMode = domain.OCRMode(ocr)
	p.Normalize()
	return &p, nil
}

// GetForScene looks up by scene ID, then by scene name.
func (s *SQLiteProfileStore) GetForScene(scene domain.Scene) (*domain.LaunchProfile, error) {
	if scene.ID != "" {
		p, err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM launch_profiles WHERE scene_id = ?`, scene.ID))
		if err == nil {
			return p, nil
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}
	if scene.Name != "" {
		p, err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM launch_profiles
			WHERE scene_name != '' AND scene_name = ? COLLATE NOCASE ORDER BY scene_id LIMIT 1`, scene.Name))
		if err == nil {
			return p, nil
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}
	return nil, nil
}

// Upsert creates or replaces the profile keyed by SceneID.
func (s *SQLiteProfileStore) Upsert(profile domain.LaunchProfile) error {
	if profile.SceneID == "" {
		return fmt.Errorf("profile requires a scene id")
	}
	profile.Normalize()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO launch_profiles (`+profileColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.SceneID, profile.SceneName, string(profile.TextHookMode), string(profile.OCRMode),
		profile.AgentScriptPath, profile.LaunchDelaySeconds, profile.GameID, time.Now().Unix(),
	)
	return err
}

// Delete removes the profile for a scene ID.
func (s *SQLiteProfileStore) Delete(sceneID string) error {
	result, err := s.db.Exec(`DELETE FROM launch_profiles WHERE scene_id = ?`, sceneID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, sceneID)
	}
	return nil
}

// List returns all stored profiles sorted by scene name.
func (s *SQLiteProfileStore) List() ([]domain.LaunchProfile, error) {
	rows, err := s.db.Query(`SELECT ` + profileColumns + ` FROM launch_profiles ORDER BY scene_name, scene_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.LaunchProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Path returns the database file path.
func (s *SQLiteProfileStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *SQLiteProfileStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure SQLiteProfileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*SQLiteProfileStore)(nil)
