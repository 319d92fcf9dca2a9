// Package config loads scenehook settings from a TOML or YAML file with
// .env and environment overrides.
package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCENEHOOK_"

// Profile store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Duration is a time.Duration written as a string ("5s", "500ms") in config files.
type Duration struct {
	time.Duration
}

// D wraps a time.Duration.
func D(d time.Duration) Duration {
	return Duration{d}
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete scenehook configuration.
type Config struct {
	OBS        OBSConfig      `toml:"obs" yaml:"obs"`
	Agent      AgentConfig    `toml:"agent" yaml:"agent"`
	Textractor ToolConfig     `toml:"textractor" yaml:"textractor"`
	Luna       ToolConfig     `toml:"luna" yaml:"luna"`
	OCR        OCRConfig      `toml:"ocr" yaml:"ocr"`
	Polling    PollingConfig  `toml:"polling" yaml:"polling"`
	Matcher    MatcherConfig  `toml:"matcher" yaml:"matcher"`
	Profiles   ProfilesConfig `toml:"profiles" yaml:"profiles"`
	Log        LogConfig      `toml:"log" yaml:"log"`
}

// OBSConfig locates the obs-websocket server.
type OBSConfig struct {
	URL      string   `toml:"url" yaml:"url"`
	Password string   `toml:"password" yaml:"password"`
	Timeout  Duration `toml:"timeout" yaml:"timeout"`
}

// AgentConfig configures the helper agent.
type AgentConfig struct {
	Path          string `toml:"path" yaml:"path"`
	ScriptsDir    string `toml:"scripts_dir" yaml:"scripts_dir"`
	MaxRelaunches int    `toml:"max_relaunches" yaml:"max_relaunches"`
}

// ToolConfig configures a detached text-hook tool.
type ToolConfig struct {
	Path64    string   `toml:"path64" yaml:"path64"`
	Path32    string   `toml:"path32" yaml:"path32"`
	Delay     Duration `toml:"delay" yaml:"delay"`
	Minimized bool     `toml:"minimized" yaml:"minimized"`
}

// OCRConfig configures the OCR subprocess.
type OCRConfig struct {
	Command   string   `toml:"command" yaml:"command"`
	Args      []string `toml:"args" yaml:"args"`
	WorkDir   string   `toml:"work_dir" yaml:"work_dir"`
	StopGrace Duration `toml:"stop_grace" yaml:"stop_grace"`
}

// PollingConfig sets the engine cadence.
type PollingConfig struct {
	Default       Duration `toml:"default" yaml:"default"`
	Fast          Duration `toml:"fast" yaml:"fast"`
	DecayStep     Duration `toml:"decay_step" yaml:"decay_step"`
	OCR           Duration `toml:"ocr" yaml:"ocr"`
	LocateTimeout Duration `toml:"locate_timeout" yaml:"locate_timeout"`
	LocateRetry   Duration `toml:"locate_retry" yaml:"locate_retry"`
}

// MatcherConfig tunes the script matcher heuristics.
type MatcherConfig struct {
	NameMinScore    int     `toml:"name_min_score" yaml:"name_min_score"`
	FuzzyThreshold  float64 `toml:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	FuzzyMaxResults int     `toml:"fuzzy_max_results" yaml:"fuzzy_max_results"`
}

// ProfilesConfig selects the launch profile store.
type ProfilesConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
	KeyFile string `toml:"key_file" yaml:"key_file"`
}

// LogConfig configures zap output.
type LogConfig struct {
	Debug bool     `toml:"debug" yaml:"debug"`
	Paths []string `toml:"paths" yaml:"paths"`
}

// Default returns a runnable configuration rooted at DefaultDataDir.
func Default() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		OBS: OBSConfig{
			URL:     "ws://127.0.0.1:4455",
			Timeout: D(5 * time.Second),
		},
		Agent: AgentConfig{
			ScriptsDir:    filepath.Join(dataDir, "scripts"),
			MaxRelaunches: 3,
		},
		Textractor: ToolConfig{Delay: D(2 * time.Second)},
		Luna:       ToolConfig{Delay: D(2 * time.Second)},
		OCR: OCRConfig{
			StopGrace: D(3 * time.Second),
		},
		Polling: PollingConfig{
			Default:       D(5 * time.Second),
			Fast:          D(500 * time.Millisecond),
			DecayStep:     D(1 * time.Second),
			OCR:           D(1 * time.Second),
			LocateTimeout: D(5 * time.Second),
			LocateRetry:   D(1 * time.Second),
		},
		Matcher: MatcherConfig{
			NameMinScore:    2,
			FuzzyThreshold:  0.4,
			FuzzyMaxResults: 15,
		},
		Profiles: ProfilesConfig{
			Backend: BackendJSON,
			Path:    filepath.Join(dataDir, "profiles.json"),
		},
	}
}

// Load reads path (TOML unless the extension is .yaml/.yml) over the defaults,
// then applies envFile (if it exists) and SCENEHOOK_* environment overrides.
// An empty path skips the file; a missing file is an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, filepath.Ext(path), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load env file: %w", err)
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.Validate()
	return cfg, nil
}

// Decode parses r into cfg using the format implied by ext.
func Decode(r io.Reader, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return err
		}
		return nil
	default:
		_, err := toml.NewDecoder(r).Decode(cfg)
		return err
	}
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// ApplyEnv overrides fields from SCENEHOOK_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"OBS_URL":           &c.OBS.URL,
		"OBS_PASSWORD":      &c.OBS.Password,
		"AGENT_PATH":        &c.Agent.Path,
		"SCRIPTS_DIR":       &c.Agent.ScriptsDir,
		"TEXTRACTOR_PATH64": &c.Textractor.Path64,
		"TEXTRACTOR_PATH32": &c.Textractor.Path32,
		"LUNA_PATH":         &c.Luna.Path64,
		"OCR_COMMAND":       &c.OCR.Command,
		"PROFILES_BACKEND":  &c.Profiles.Backend,
		"PROFILES_PATH":     &c.Profiles.Path,
		"PROFILES_KEY_FILE": &c.Profiles.KeyFile,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"POLL_INTERVAL":     &c.Polling.Default,
		"POLL_FAST":         &c.Polling.Fast,
		"OCR_POLL_INTERVAL": &c.Polling.OCR,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
		}
	}

	if v, ok := lookup(EnvPrefix + "LOG_DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_DEBUG: %w", EnvPrefix, err)
		}
		c.Log.Debug = b
	}
	return nil
}

// Validate clamps intervals and thresholds into workable ranges.
func (c *Config) Validate() {
	def := Default()

	p := &c.Polling
	if p.Default.Duration <= 0 {
		p.Default = def.Polling.Default
	}
	if p.Fast.Duration <= 0 || p.Fast.Duration > p.Default.Duration {
		p.Fast = D(minDuration(def.Polling.Fast.Duration, p.Default.Duration))
	}
	if p.DecayStep.Duration <= 0 {
		p.DecayStep = def.Polling.DecayStep
	}
	if p.OCR.Duration <= 0 {
		p.OCR = def.Polling.OCR
	}
	if p.LocateTimeout.Duration < 0 {
		p.LocateTimeout = def.Polling.LocateTimeout
	}
	if p.LocateRetry.Duration <= 0 {
		p.LocateRetry = def.Polling.LocateRetry
	}

	m := &c.Matcher
	if m.NameMinScore < 1 {
		m.NameMinScore = def.Matcher.NameMinScore
	}
	if m.FuzzyThreshold <= 0 || m.FuzzyThreshold > 1 {
		m.FuzzyThreshold = def.Matcher.FuzzyThreshold
	}
	if m.FuzzyMaxResults < 1 {
		m.FuzzyMaxResults = def.Matcher.FuzzyMaxResults
	}

	if c.Agent.MaxRelaunches < 0 {
		c.Agent.MaxRelaunches = 0
	}
	if c.OBS.Timeout.Duration <= 0 {
		c.OBS.Timeout = def.OBS.Timeout
	}
	if c.OCR.StopGrace.Duration <= 0 {
		c.OCR.StopGrace = def.OCR.StopGrace
	}

	switch strings.ToLower(c.Profiles.Backend) {
	case BackendSQLite:
		c.Profiles.Backend = BackendSQLite
	default:
		c.Profiles.Backend = BackendJSON
	}
	if c.Profiles.Backend == BackendSQLite {
		if c.Profiles.Path == "" || c.Profiles.Path == def.Profiles.Path {
			c.Profiles.Path = filepath.Join(DefaultDataDir(), "profiles.db")
		}
	} else if c.Profiles.Path == "" {
		c.Profiles.Path = def.Profiles.Path
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// DefaultDataDir returns ~/.scenehook for the invoking user.
func DefaultDataDir() string {
	return filepath.Join(RealUserHome(), ".scenehook")
}

// RealUserHome returns the real user's home directory, even when running under sudo.
func RealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
