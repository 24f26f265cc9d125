package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/tools"
	"github.com/agentcore/agentcore/transcript"
)

// stubProvider answers every request with a fixed final reply unless
// scripted otherwise via toolCallOnce, which emits one tool call before
// finishing on the following cycle.
type stubProvider struct {
	finalText    string
	toolCallOnce *transcript.ToolUse
	called       int
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) Render(_ context.Context, req agentloop.Request) (any, error) {
	return req, nil
}
func (p *stubProvider) Submit(_ context.Context, rendered any) (agentloop.Response, error) {
	p.called++
	if p.toolCallOnce != nil && p.called == 1 {
		tu := *p.toolCallOnce
		return agentloop.Response{Parts: []transcript.Part{tu}, ToolUses: []transcript.ToolUse{tu}}, nil
	}
	return agentloop.Response{FinalText: p.finalText, IsFinal: true}, nil
}
func (p *stubProvider) IsTransient(error) bool { return false }

func addSpec() *fnspec.CodeSpec {
	return &fnspec.CodeSpec{
		Name: "add",
		ArgSchema: []fnspec.ArgSpec{
			{Name: "a", Type: fnspec.ArgInt},
			{Name: "b", Type: fnspec.ArgInt},
		},
		Callable: func(_ fnspec.RunContext, args map[string]any) (any, error) {
			return asNumber(args["a"]) + asNumber(args["b"]), nil
		},
	}
}

func asNumber(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func TestInvokeCodeSpecRunsSynchronously(t *testing.T) {
	add := addSpec()
	rt, err := New(Config{Specs: []fnspec.Spec{add}})
	require.NoError(t, err)

	handle, err := rt.RootContext().Invoke(add, map[string]any{"a": 2, "b": 3}, "")
	require.NoError(t, err)
	out, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, float64(5), out)

	v, ok := rt.GetView(handle.ID())
	require.True(t, ok)
	assert.Equal(t, fnspec.StateSuccess, v.State)
}

func TestInvokeUnregisteredSpecErrors(t *testing.T) {
	add := addSpec()
	other := addSpec()
	other.Name = "add" // same name, distinct instance, never registered
	rt, err := New(Config{Specs: []fnspec.Spec{add}})
	require.NoError(t, err)

	_, err = rt.RootContext().Invoke(other, map[string]any{"a": 1, "b": 1}, "")
	assert.Error(t, err)
}

func TestInvokeAgentRunsToCompletionViaStubProvider(t *testing.T) {
	agentSpec := &fnspec.AgentSpec{
		Name:                 "greeter",
		SystemPromptTemplate: "You are friendly.",
		UserPromptTemplate:   "{{msg}}",
		Inputs:               []fnspec.InputVar{{Name: "msg"}},
		ProviderHint:         "stub",
	}
	p := &stubProvider{finalText: "hello there"}
	rt, err := New(Config{
		Specs:           []fnspec.Spec{agentSpec},
		Providers:       map[string]agentloop.Provider{"stub": p},
		DefaultProvider: "stub",
	})
	require.NoError(t, err)

	handle, err := rt.RootContext().Invoke(agentSpec, map[string]any{"msg": "hi"}, "")
	require.NoError(t, err)
	out, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

func TestInvokeAgentDispatchesDeclaredToolAndFinishes(t *testing.T) {
	add := addSpec()
	agentSpec := &fnspec.AgentSpec{
		Name:                 "math-helper",
		SystemPromptTemplate: "sys",
		UserPromptTemplate:   "{{msg}}",
		Inputs:               []fnspec.InputVar{{Name: "msg"}},
		Uses:                 []fnspec.Spec{add},
		ProviderHint:         "stub",
	}
	p := &stubProvider{
		finalText:    "2 + 3 = 5",
		toolCallOnce: &transcript.ToolUse{ID: "call-1", Name: "add", Args: map[string]any{"a": float64(2), "b": float64(3)}},
	}
	rt, err := New(Config{
		Specs:           []fnspec.Spec{agentSpec},
		Providers:       map[string]agentloop.Provider{"stub": p},
		DefaultProvider: "stub",
	})
	require.NoError(t, err)

	handle, err := rt.RootContext().Invoke(agentSpec, map[string]any{"msg": "add 2 and 3"}, "")
	require.NoError(t, err)
	out, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 = 5", out)

	children := waitForChildren(t, rt, handle.ID())
	require.Len(t, children, 1)
	assert.Equal(t, "add", children[0].SpecName)
	assert.Equal(t, float64(5), children[0].Outputs)
}

func TestInvokeAgentRaiseExceptionSurfacesAsAgentException(t *testing.T) {
	agentSpec := &fnspec.AgentSpec{
		Name:                 "quitter",
		SystemPromptTemplate: "sys",
		UserPromptTemplate:   "{{msg}}",
		Inputs:               []fnspec.InputVar{{Name: "msg"}},
		Uses:                 []fnspec.Spec{tools.RaiseException},
		ProviderHint:         "stub",
	}
	p := &stubProvider{
		toolCallOnce: &transcript.ToolUse{ID: "call-1", Name: tools.RaiseExceptionName, Args: map[string]any{"msg": "cannot proceed"}},
	}
	rt, err := New(Config{
		Specs:           []fnspec.Spec{agentSpec},
		Providers:       map[string]agentloop.Provider{"stub": p},
		DefaultProvider: "stub",
	})
	require.NoError(t, err)

	handle, err := rt.RootContext().Invoke(agentSpec, map[string]any{"msg": "try something impossible"}, "")
	require.NoError(t, err)

	_, err = handle.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot proceed")
}

func TestDeleteTreeHidesFromListTopLevelButKeepsGet(t *testing.T) {
	add := addSpec()
	rt, err := New(Config{Specs: []fnspec.Spec{add}})
	require.NoError(t, err)

	handle, err := rt.RootContext().Invoke(add, map[string]any{"a": 1, "b": 1}, "")
	require.NoError(t, err)
	_, err = handle.Result()
	require.NoError(t, err)

	before := rt.ListToplevelViews()
	assert.Len(t, before, 1)

	rt.DeleteTree(handle.ID())

	after := rt.ListToplevelViews()
	assert.Empty(t, after)

	v, ok := rt.GetView(handle.ID())
	assert.True(t, ok)
	assert.Equal(t, handle.ID(), v.NodeID)
}

func waitForChildren(t *testing.T, rt *Runtime, rootID int64) []*viewChild {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := rt.GetView(rootID); ok && len(v.Children) > 0 {
			out := make([]*viewChild, len(v.Children))
			for i, c := range v.Children {
				out[i] = &viewChild{SpecName: c.SpecName, Outputs: c.Outputs}
			}
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for child view")
	return nil
}

type viewChild struct {
	SpecName string
	Outputs  any
}
