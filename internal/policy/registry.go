package policy

import "sort"

// Registry holds all distraction policies.
// This is the in-memory catalogue; the remote oracles cover everything else.
type Registry struct {
	policies map[string]matcher
}

// NewRegistry creates a registry with all default policies.
func NewRegistry() *Registry {
	return NewRegistryWithPolicies(
		NewSteamPolicy(),
		NewDota2Policy(),
		NewLeaguePolicy(),
	)
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...AppPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]matcher),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry. Invalid title patterns panic.
func (r *Registry) Register(p AppPolicy) {
	r.policies[p.ID()] = newMatcher(p)
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (AppPolicy, bool) {
	m, ok := r.policies[id]
	return m.policy, ok
}

// List returns all policy IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Match returns the first policy (in ID order) recognising the window.
func (r *Registry) Match(windowTitle, processName string) (AppPolicy, bool) {
	for _, id := range r.List() {
		m := r.policies[id]
		if m.matches(windowTitle, processName) {
			return m.policy, true
		}
	}
	return nil, false
}
