// Package policy implements the Strategy pattern for text-hook tools.
// Each tool (Textractor, LunaTranslator) has its own policy describing how to
// detect a running instance and how to launch it.
package policy

import (
	"time"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// DefaultLaunchDelay is used when neither the profile nor the tool settings set a delay.
const DefaultLaunchDelay = 2 * time.Second

// ToolSettings is the user-configurable part of a tool policy.
type ToolSettings struct {
	Path64    string
	Path32    string
	Delay     time.Duration
	Minimized bool
}

// ToolPolicy defines the strategy interface for a detached text-hook tool.
type ToolPolicy interface {
	// ID returns unique identifier (e.g., "textractor", "luna").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Mode returns the text-hook mode this tool serves.
	Mode() domain.TextHookMode

	// ProcessNames returns executable names of an already-running instance.
	// Names are matched case-insensitively.
	ProcessNames() []string

	// ExecutablePath returns the configured path for the given bitness.
	// Unknown bitness prefers the 64-bit path, then the 32-bit path.
	ExecutablePath(bits domain.Bitness) string

	// MatchesBitness reports whether the tool build must match the game's bitness.
	MatchesBitness() bool

	// LaunchArgs returns the arguments passed when launching the tool.
	LaunchArgs() []string

	// LaunchDelay returns how long to wait after detecting the game before launching.
	LaunchDelay() time.Duration

	// Minimized reports whether the tool should start minimized.
	Minimized() bool
}

// pickPath applies the bitness preference shared by all tools.
func pickPath(bits domain.Bitness, path64, path32 string) string {
	switch bits {
	case domain.BitnessX86:
		if path32 != "" {
			return path32
		}
		return path64
	case domain.BitnessX64:
		if path64 != "" {
			return path64
		}
		return path32
	default:
		if path64 != "" {
			return path64
		}
		return path32
	}
}

func delayOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultLaunchDelay
	}
	return d
}
