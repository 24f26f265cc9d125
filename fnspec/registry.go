package fnspec

import "fmt"

// Registry holds the fully closed set of specs reachable from a seed set.
// It is immutable once built: Build performs the BFS closure once and
// returns either a Registry or an error; there is no incremental mutation
// afterward.
type Registry struct {
	specs map[string]Spec
}

// Build seeds the registry with the caller-provided specs and performs a
// breadth-first closure over Uses so every transitively reachable spec is
// also registered. Two specs sharing a name but not the same instance are
// rejected. Re-registering the identical instance under BFS expansion is
// accepted (idempotent): registering the closure of a set S yields the same
// registry as registering S directly.
func Build(seed []Spec) (*Registry, error) {
	specs := make(map[string]Spec, len(seed))
	queue := make([]Spec, 0, len(seed))
	queue = append(queue, seed...)

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s == nil {
			continue
		}
		name := s.SpecName()
		if existing, ok := specs[name]; ok {
			if existing != s {
				return nil, fmt.Errorf("fnspec: %w", &dupNameError{Name: name})
			}
			continue
		}
		if err := validateSpec(s); err != nil {
			return nil, err
		}
		specs[name] = s
		queue = append(queue, s.SpecUses()...)
	}

	return &Registry{specs: specs}, nil
}

// Lookup returns the spec registered under name, or false if absent.
func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// All returns every registered spec. The returned slice is a fresh copy;
// mutating it does not affect the registry.
func (r *Registry) All() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	return out
}

// Len reports the number of registered specs.
func (r *Registry) Len() int { return len(r.specs) }

type dupNameError struct{ Name string }

func (e *dupNameError) Error() string {
	return fmt.Sprintf("duplicate function spec name %q registered by two distinct instances", e.Name)
}

// validateSpec checks argument-schema validity (code specs) and template
// variable declarations (agent specs) at registration time, so malformed
// specs fail fast rather than on first invocation.
func validateSpec(s Spec) error {
	switch v := s.(type) {
	case *CodeSpec:
		if v.Callable == nil {
			return fmt.Errorf("fnspec: code spec %q has no callable", v.Name)
		}
		seen := make(map[string]bool, len(v.ArgSchema))
		for _, a := range v.ArgSchema {
			if seen[a.Name] {
				return fmt.Errorf("fnspec: code spec %q declares duplicate argument %q", v.Name, a.Name)
			}
			seen[a.Name] = true
		}
		// Trigger schema compilation eagerly so a malformed schema is caught
		// at registration, not on first invocation.
		v.compiledSchema = compileSchema(v.ArgSchema)
		return nil
	case *AgentSpec:
		if v.SystemPromptTemplate == "" && v.UserPromptTemplate == "" {
			return fmt.Errorf("fnspec: agent spec %q declares no prompt templates", v.Name)
		}
		seen := make(map[string]bool, len(v.Inputs))
		for _, in := range v.Inputs {
			if seen[in.Name] {
				return fmt.Errorf("fnspec: agent spec %q declares duplicate input %q", v.Name, in.Name)
			}
			seen[in.Name] = true
		}
		return nil
	default:
		return fmt.Errorf("fnspec: unknown spec kind for %q", s.SpecName())
	}
}
