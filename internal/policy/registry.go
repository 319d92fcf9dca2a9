package policy

import (
	"sort"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// Registry holds the text-hook tool policies, indexed by mode.
type Registry struct {
	policies map[domain.TextHookMode]ToolPolicy
}

// NewRegistry creates a registry with the Textractor and Luna policies.
func NewRegistry(textractor, luna ToolSettings) *Registry {
	return NewRegistryWithPolicies(
		NewTextractorPolicy(textractor),
		NewLunaPolicy(luna),
	)
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...ToolPolicy) *Registry {
	r := &Registry{
		policies: make(map[domain.TextHookMode]ToolPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry, replacing any policy for the same mode.
func (r *Registry) Register(p ToolPolicy) {
	r.policies[p.Mode()] = p
}

// ForMode returns the tool policy serving a text-hook mode.
func (r *Registry) ForMode(mode domain.TextHookMode) (ToolPolicy, bool) {
	p, ok := r.policies[mode]
	return p, ok
}

// GetAll returns all registered policies ordered by ID.
func (r *Registry) GetAll() []ToolPolicy {
	result := make([]ToolPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
