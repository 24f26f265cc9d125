package fnspec

import (
	"fmt"
	"os"
	"strings"
)

// ResolveInputs resolves an agent spec's declared input variables against a
// caller-supplied args map: filepath-tagged variables are read from disk at
// invocation time, everything else is substituted literally. Missing
// variables are reported as an argument error, matching the spec's
// registration-time/invocation-time split (registration validates shape;
// this validates presence against the actual call).
func (s *AgentSpec) ResolveInputs(args map[string]any) (map[string]string, error) {
	resolved := make(map[string]string, len(s.Inputs))
	for _, in := range s.Inputs {
		raw, ok := args[in.Name]
		if !ok {
			return nil, &ErrMissingTemplateVar{Spec: s.Name, Var: in.Name}
		}
		value := fmt.Sprintf("%v", raw)
		if in.FilePath {
			data, err := os.ReadFile(value)
			if err != nil {
				return nil, fmt.Errorf("fnspec: agent spec %q: reading file for input %q: %w", s.Name, in.Name, err)
			}
			value = string(data)
		}
		resolved[in.Name] = value
	}
	return resolved, nil
}

// RenderPrompts renders the system and user prompt templates against
// resolved input values. Rendering is purely functional in (template,
// resolved args): the same inputs always render the same output, and
// rendering performs only named `{{name}}` substitution, never control
// flow, so the round-trip property in the spec's testable properties holds
// trivially.
func (s *AgentSpec) RenderPrompts(resolved map[string]string) (system, user string, err error) {
	system, err = substitute(s.Name, s.SystemPromptTemplate, resolved)
	if err != nil {
		return "", "", err
	}
	user, err = substitute(s.Name, s.UserPromptTemplate, resolved)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// substitute performs named `{{name}}` substitution. It intentionally
// avoids text/template's control-flow constructs (conditionals, ranges):
// agent prompt templates are plain text with variable holes, and a purely
// literal substitution keeps rendering trivially referentially transparent.
func substitute(specName, tmpl string, values map[string]string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "{{")
		if start < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		start += i
		b.WriteString(tmpl[i:start])
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			return "", fmt.Errorf("fnspec: agent spec %q: unterminated template placeholder", specName)
		}
		end += start
		name := strings.TrimSpace(tmpl[start+2 : end])
		value, ok := values[name]
		if !ok {
			return "", &ErrMissingTemplateVar{Spec: specName, Var: name}
		}
		b.WriteString(value)
		i = end + 2
	}
	return b.String(), nil
}

// ErrMissingTemplateVar indicates a required prompt-template variable was
// not supplied in the invocation args.
type ErrMissingTemplateVar struct {
	Spec string
	Var  string
}

func (e *ErrMissingTemplateVar) Error() string {
	return fmt.Sprintf("spec %q: missing template variable %q", e.Spec, e.Var)
}
