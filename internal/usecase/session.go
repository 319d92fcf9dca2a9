// Package usecase contains the automation logic: scene resolution, process
// location, and the text-hook and OCR lanes driven by the engine.
package usecase

import (
	"time"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// IntervalHint tells the engine how to adjust the text-hook polling cadence.
type IntervalHint int

const (
	// HintKeep leaves the interval unchanged.
	HintKeep IntervalHint = iota
	// HintFast switches to the fast interval while a target is being validated.
	HintFast
	// HintDecay steps back toward the default interval.
	HintDecay
	// HintReset returns straight to the default interval.
	HintReset
)

func (h IntervalHint) String() string {
	switch h {
	case HintFast:
		return "fast"
	case HintDecay:
		return "decay"
	case HintReset:
		return "reset"
	default:
		return "keep"
	}
}

// AutomationSession is the mutable engine state carried across ticks.
// The text-hook lane owns the hook fields, the OCR lane owns the OCR fields.
type AutomationSession struct {
	LastHookedPID       int
	LastHookedGameID    string
	Agent               domain.ChildProcess
	AgentRelaunches     int
	ExternalAgentWarned bool

	// ToolTargets maps a tool policy ID to the game PID it was launched for.
	ToolTargets map[string]int

	PollingInterval time.Duration

	// ActiveOCRSceneID is the scene of the auto session this engine started.
	ActiveOCRSceneID string
	LastOCRSceneID   string
}

// NewAutomationSession returns a fresh session polling at interval.
func NewAutomationSession(interval time.Duration) *AutomationSession {
	s := &AutomationSession{}
	s.Reset(interval)
	return s
}

// Reset clears all tracking. It does not kill anything.
func (s *AutomationSession) Reset(interval time.Duration) {
	s.clearHook()
	s.ExternalAgentWarned = false
	s.ToolTargets = make(map[string]int)
	s.PollingInterval = interval
	s.ActiveOCRSceneID = ""
	s.LastOCRSceneID = ""
}

func (s *AutomationSession) clearHook() {
	s.LastHookedPID = -1
	s.LastHookedGameID = ""
	s.Agent = nil
	s.AgentRelaunches = 0
}

// Hooked reports whether (pid, gameID) is the current hook target.
func (s *AutomationSession) Hooked(pid int, gameID string) bool {
	return s.LastHookedPID == pid && s.LastHookedGameID == gameID
}
