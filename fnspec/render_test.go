package fnspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInputsSubstitutesLiteral(t *testing.T) {
	spec := &AgentSpec{Name: "a", Inputs: []InputVar{{Name: "topic"}}}
	resolved, err := spec.ResolveInputs(map[string]any{"topic": "weather"})
	require.NoError(t, err)
	assert.Equal(t, "weather", resolved["topic"])
}

func TestResolveInputsMissingVarErrors(t *testing.T) {
	spec := &AgentSpec{Name: "a", Inputs: []InputVar{{Name: "topic"}}}
	_, err := spec.ResolveInputs(map[string]any{})
	var target *ErrMissingTemplateVar
	assert.ErrorAs(t, err, &target)
}

func TestResolveInputsReadsFilePathVariable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o644))

	spec := &AgentSpec{Name: "a", Inputs: []InputVar{{Name: "doc", FilePath: true}}}
	resolved, err := spec.ResolveInputs(map[string]any{"doc": path})
	require.NoError(t, err)
	assert.Equal(t, "file contents", resolved["doc"])
}

func TestRenderPromptsSubstitutesBothTemplates(t *testing.T) {
	spec := &AgentSpec{
		Name:                 "a",
		SystemPromptTemplate: "You help with {{topic}}.",
		UserPromptTemplate:   "Tell me about {{topic}}.",
	}
	system, user, err := spec.RenderPrompts(map[string]string{"topic": "go"})
	require.NoError(t, err)
	assert.Equal(t, "You help with go.", system)
	assert.Equal(t, "Tell me about go.", user)
}

func TestRenderPromptsMissingVarErrors(t *testing.T) {
	spec := &AgentSpec{Name: "a", SystemPromptTemplate: "{{missing}}"}
	_, _, err := spec.RenderPrompts(map[string]string{})
	var target *ErrMissingTemplateVar
	assert.ErrorAs(t, err, &target)
}

func TestRenderPromptsUnterminatedPlaceholderErrors(t *testing.T) {
	spec := &AgentSpec{Name: "a", SystemPromptTemplate: "{{oops"}
	_, _, err := spec.RenderPrompts(map[string]string{})
	assert.Error(t, err)
}

func TestRenderPromptsIsReferentiallyTransparent(t *testing.T) {
	spec := &AgentSpec{
		Name:                 "a",
		SystemPromptTemplate: "Context: {{ctx}}",
		UserPromptTemplate:   "{{ctx}} please.",
	}
	inputs := map[string]string{"ctx": "billing"}
	sys1, user1, err := spec.RenderPrompts(inputs)
	require.NoError(t, err)
	sys2, user2, err := spec.RenderPrompts(inputs)
	require.NoError(t, err)
	assert.Equal(t, sys1, sys2)
	assert.Equal(t, user1, user2)
}
