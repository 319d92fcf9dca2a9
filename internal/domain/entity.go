// Package domain contains core business entities and interfaces.
// This is the innermost layer - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// AutoLauncherSource tags OCR sessions started by the automation engine.
// Sessions with any other source belong to the user and are never touched.
const AutoLauncherSource = "auto-launcher"

// MaxLaunchDelaySeconds bounds LaunchProfile.LaunchDelaySeconds.
const MaxLaunchDelaySeconds = 300

var (
	ErrNoScene         = errors.New("no active scene")
	ErrProfileNotFound = errors.New("launch profile not found")
	ErrNotRunning      = errors.New("process not running")
	ErrAlreadyRunning  = errors.New("process already running")
)

// Scene is the capture configuration currently being streamed.
// Identity is ID; Name is a human label also used for matching.
type Scene struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TextHookMode selects which mechanism extracts game text for a scene.
type TextHookMode string

const (
	TextHookNone       TextHookMode = "none"
	TextHookTextractor TextHookMode = "textractor"
	TextHookLuna       TextHookMode = "luna"
	TextHookAgent      TextHookMode = "agent"
)

// Valid reports whether m is a known text-hook mode.
func (m TextHookMode) Valid() bool {
	switch m {
	case TextHookNone, TextHookTextractor, TextHookLuna, TextHookAgent:
		return true
	}
	return false
}

// OCRMode selects how OCR runs for a scene.
type OCRMode string

const (
	OCRNone   OCRMode = "none"
	OCRManual OCRMode = "manual"
	OCRAuto   OCRMode = "auto"
)

// Valid reports whether m is a known OCR mode.
func (m OCRMode) Valid() bool {
	switch m {
	case OCRNone, OCRManual, OCRAuto:
		return true
	}
	return false
}

// LaunchProfile is the per-scene automation configuration.
// Keyed by SceneID, with SceneName as a legacy fallback key.
type LaunchProfile struct {
	SceneID            string       `json:"scene_id"`
	SceneName          string       `json:"scene_name,omitempty"`
	TextHookMode       TextHookMode `json:"text_hook_mode"`
	OCRMode            OCRMode      `json:"ocr_mode"`
	AgentScriptPath    string       `json:"agent_script_path,omitempty"`
	LaunchDelaySeconds float64      `json:"launch_delay_seconds"`
	GameID             string       `json:"game_id,omitempty"` // Explicit title ID (Switch-style scenes)
}

// Normalize fills unknown modes with "none" and clamps the launch delay to [0,300].
func (p *LaunchProfile) Normalize() {
	if !p.TextHookMode.Valid() {
		p.TextHookMode = TextHookNone
	}
	if !p.OCRMode.Valid() {
		p.OCRMode = OCRNone
	}
	if p.LaunchDelaySeconds < 0 {
		p.LaunchDelaySeconds = 0
	}
	if p.LaunchDelaySeconds > MaxLaunchDelaySeconds {
		p.LaunchDelaySeconds = MaxLaunchDelaySeconds
	}
}

// LaunchDelay returns the profile delay as a duration.
func (p LaunchProfile) LaunchDelay() time.Duration {
	return time.Duration(p.LaunchDelaySeconds * float64(time.Second))
}

// MatchReason explains how a script was (or was not) resolved.
type MatchReason string

const (
	ReasonExplicitID         MatchReason = "matched_explicit_id"
	ReasonTitleID            MatchReason = "matched_title_id"
	ReasonName               MatchReason = "matched_name"
	ReasonFuzzyName          MatchReason = "matched_fuzzy_name"
	ReasonScriptsPathMissing MatchReason = "scripts_path_missing"
	ReasonScriptsUnreadable  MatchReason = "scripts_path_unreadable"
	ReasonNoMatch            MatchReason = "no_match"
)

// ScriptCandidate is one plausible helper script. Lower score is better.
type ScriptCandidate struct {
	Path   string      `json:"path"`
	Reason MatchReason `json:"reason"`
	Score  float64     `json:"score"`
}

// ScriptResolution is the outcome of a resolution call.
// Path is empty unless Reason is one of the matched_* reasons.
type ScriptResolution struct {
	Path           string            `json:"path"`
	Reason         MatchReason       `json:"reason"`
	IsSwitchTarget bool              `json:"is_switch_target"`
	TitleID        string            `json:"title_id,omitempty"`
	Candidates     []ScriptCandidate `json:"candidates"`
}

// Matched reports whether a script path was resolved.
func (r ScriptResolution) Matched() bool {
	return r.Path != ""
}

// ProcessCandidate is one OS process sharing a looked-up executable name.
type ProcessCandidate struct {
	PID         int
	Name        string
	MemoryBytes uint64
}

// Bitness classifies an executable's target machine.
type Bitness string

const (
	BitnessX86     Bitness = "x86"
	BitnessX64     Bitness = "x64"
	BitnessUnknown Bitness = "unknown"
)

// OCRState is the runtime state reported by the OCR controller.
type OCRState struct {
	Running bool
	Paused  bool
	Source  string
	Mode    OCRMode
	SceneID string
	PID     int
}

// OwnedByEngine reports whether the running session was started by the automation engine.
func (s OCRState) OwnedByEngine() bool {
	return s.Running && s.Source == AutoLauncherSource
}

// OCRStartRequest describes an OCR session to start.
type OCRStartRequest struct {
	Source  string
	Mode    OCRMode
	SceneID string
}
