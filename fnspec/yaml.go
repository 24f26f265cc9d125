package fnspec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlAgentDoc mirrors the on-disk shape of one agent spec entry. Code
// specs cannot be expressed in YAML since they wrap Go callables; callers
// merge the specs returned here with Go-constructed CodeSpecs before
// calling Build.
type yamlAgentDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system_prompt"`
	User        string `yaml:"user_prompt"`
	Provider    string `yaml:"provider"`
	Inputs      []struct {
		Name     string `yaml:"name"`
		FilePath bool   `yaml:"filepath"`
	} `yaml:"inputs"`
	Uses []string `yaml:"uses"`
}

type yamlDoc struct {
	Agents []yamlAgentDoc `yaml:"agents"`
}

// LoadYAML parses a YAML document describing agent specs (system/user
// templates, input variables, tool uses list). The `uses` field names other
// specs by name; resolve resolves a name to its already-constructed Spec
// (typically looking up CodeSpecs the caller built in Go, or other agent
// specs returned by an earlier LoadYAML call). Specs named in `uses` that
// resolve returns false for are reported as an error rather than silently
// dropped, since an agent whose declared tool list doesn't exist is a
// configuration mistake.
func LoadYAML(r io.Reader, resolve func(name string) (Spec, bool)) ([]*AgentSpec, error) {
	var doc yamlDoc
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("fnspec: parsing YAML agent specs: %w", err)
	}

	specs := make([]*AgentSpec, 0, len(doc.Agents))
	for _, a := range doc.Agents {
		uses := make([]Spec, 0, len(a.Uses))
		for _, name := range a.Uses {
			s, ok := resolve(name)
			if !ok {
				return nil, fmt.Errorf("fnspec: agent %q declares unresolved use %q", a.Name, name)
			}
			uses = append(uses, s)
		}
		inputs := make([]InputVar, 0, len(a.Inputs))
		for _, in := range a.Inputs {
			inputs = append(inputs, InputVar{Name: in.Name, FilePath: in.FilePath})
		}
		specs = append(specs, &AgentSpec{
			Name:                 a.Name,
			Inputs:               inputs,
			SystemPromptTemplate: a.System,
			UserPromptTemplate:   a.User,
			Description:          a.Description,
			Uses:                 uses,
			ProviderHint:         a.Provider,
		})
	}
	return specs, nil
}
