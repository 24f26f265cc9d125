// Command demo wires a minimal code spec and agent spec together behind a
// scheduler.Runtime and runs one top-level invocation of each, printing the
// resulting view. It uses a stub provider in place of a real model SDK so
// the demo runs without credentials.
package main

import (
	"context"
	"fmt"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/scheduler"
	"github.com/agentcore/agentcore/tools"
	"github.com/agentcore/agentcore/transcript"
)

// stubProvider answers every request with a final reply that echoes the
// initial user seed, standing in for a real model SDK.
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Render(_ context.Context, req agentloop.Request) (any, error) {
	return req, nil
}

func (stubProvider) Submit(_ context.Context, rendered any) (agentloop.Response, error) {
	req := rendered.(agentloop.Request)
	var seed string
	if len(req.Turns) > 0 {
		for _, p := range req.Turns[0].Parts {
			if t, ok := p.(transcript.UserText); ok {
				seed = t.Text
			}
		}
	}
	return agentloop.Response{
		FinalText: "Hello from the demo agent! You said: " + seed,
		IsFinal:   true,
	}, nil
}

func (stubProvider) IsTransient(error) bool { return false }

// asNumber normalizes an argument value that may arrive as a native Go int
// (direct invocation) or a float64 (decoded from a model's JSON tool-call
// arguments) into a common numeric type.
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

func main() {
	add := &fnspec.CodeSpec{
		Name: "add",
		ArgSchema: []fnspec.ArgSpec{
			{Name: "a", Type: fnspec.ArgInt, Description: "first addend"},
			{Name: "b", Type: fnspec.ArgInt, Description: "second addend"},
		},
		Callable: func(_ fnspec.RunContext, args map[string]any) (any, error) {
			return asNumber(args["a"]) + asNumber(args["b"]), nil
		},
	}

	greeter := &fnspec.AgentSpec{
		Name:                 "demo.greeter",
		Description:          "Greets the caller and can add two numbers.",
		Inputs:               []fnspec.InputVar{{Name: "message"}},
		SystemPromptTemplate: "You are a friendly demo agent.",
		UserPromptTemplate:   "{{message}}",
		Uses:                 []fnspec.Spec{add, tools.RaiseException},
		ProviderHint:         "stub",
	}

	rt, err := scheduler.New(scheduler.Config{
		Specs:           []fnspec.Spec{greeter},
		Providers:       map[string]agentloop.Provider{"stub": stubProvider{}},
		DefaultProvider: "stub",
	})
	if err != nil {
		panic(err)
	}

	rc := rt.RootContext()

	handle, err := rc.Invoke(greeter, map[string]any{"message": "say hi"}, "")
	if err != nil {
		panic(err)
	}
	out, err := handle.Result()
	if err != nil {
		panic(err)
	}
	fmt.Println("Assistant:", out)

	if v, ok := rt.GetView(handle.ID()); ok {
		fmt.Printf("Tree snapshot: node=%d state=%s seq=%d\n", v.NodeID, v.State, v.Seq)
	}

	sum, err := rc.Invoke(add, map[string]any{"a": 2, "b": 3}, "")
	if err != nil {
		panic(err)
	}
	res, err := sum.Result()
	if err != nil {
		panic(err)
	}
	fmt.Println("2 + 3 =", res)
}
