package policy

import (
	"time"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// TextractorPolicy implements ToolPolicy for Textractor.
// Textractor ships separate x64 and x86 builds; the one matching the game is used.
type TextractorPolicy struct {
	settings ToolSettings
}

// NewTextractorPolicy creates a Textractor policy from user settings.
func NewTextractorPolicy(settings ToolSettings) *TextractorPolicy {
	return &TextractorPolicy{settings: settings}
}

func (p *TextractorPolicy) ID() string {
	return "textractor"
}

func (p *TextractorPolicy) Name() string {
	return "Textractor"
}

func (p *TextractorPolicy) Mode() domain.TextHookMode {
	return domain.TextHookTextractor
}

func (p *TextractorPolicy) ProcessNames() []string {
	return []string{"Textractor.exe", "Textractor"}
}

func (p *TextractorPolicy) ExecutablePath(bits domain.Bitness) string {
	return pickPath(bits, p.settings.Path64, p.settings.Path32)
}

func (p *TextractorPolicy) MatchesBitness() bool {
	return true
}

func (p *TextractorPolicy) LaunchArgs() []string {
	return nil
}

func (p *TextractorPolicy) LaunchDelay() time.Duration {
	return delayOrDefault(p.settings.Delay)
}

func (p *TextractorPolicy) Minimized() bool {
	return p.settings.Minimized
}

// Ensure TextractorPolicy implements ToolPolicy.
var _ ToolPolicy = (*TextractorPolicy)(nil)
