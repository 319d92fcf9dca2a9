package policy

import (
	"time"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// LunaPolicy implements ToolPolicy for LunaTranslator.
// Luna picks its own hook bitness, so only one executable path is used.
type LunaPolicy struct {
	settings ToolSettings
}

// NewLunaPolicy creates a LunaTranslator policy from user settings.
func NewLunaPolicy(settings ToolSettings) *LunaPolicy {
	return &LunaPolicy{settings: settings}
}

func (p *LunaPolicy) ID() string {
	return "luna"
}

func (p *LunaPolicy) Name() string {
	return "LunaTranslator"
}

func (p *LunaPolicy) Mode() domain.TextHookMode {
	return domain.TextHookLuna
}

func (p *LunaPolicy) ProcessNames() []string {
	return []string{
		"LunaTranslator.exe",
		"LunaTranslator_main.exe",
		"LunaTranslator",
	}
}

func (p *LunaPolicy) ExecutablePath(bits domain.Bitness) string {
	// Bitness is irrelevant; fall back to whichever path is set.
	return pickPath(domain.BitnessUnknown, p.settings.Path64, p.settings.Path32)
}

func (p *LunaPolicy) MatchesBitness() bool {
	return false
}

func (p *LunaPolicy) LaunchArgs() []string {
	return nil
}

func (p *LunaPolicy) LaunchDelay() time.Duration {
	return delayOrDefault(p.settings.Delay)
}

func (p *LunaPolicy) Minimized() bool {
	return p.settings.Minimized
}

// Ensure LunaPolicy implements ToolPolicy.
var _ ToolPolicy = (*LunaPolicy)(nil)
