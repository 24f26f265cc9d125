package view

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/invocation"
	"github.com/agentcore/agentcore/sessionbag"
)

// TestViewSequenceStrictlyIncreasesProperty verifies that for any number of
// rebuilds triggered on a single node, the cached view's sequence number is
// strictly greater after each rebuild than before it.
func TestViewSequenceStrictlyIncreasesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every rebuild strictly increases the cached seq", prop.ForAll(
		func(rebuildCount int) bool {
			reg := NewRegistry()
			n := invocation.NewCode(1, testSpec("c"), nil, nil, sessionbag.RootScopes())
			v := reg.RegisterRoot(n)
			lastSeq := v.Seq
			for i := 0; i < rebuildCount; i++ {
				v = reg.Rebuild(n)
				if v.Seq <= lastSeq {
					return false
				}
				lastSeq = v.Seq
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

// TestViewStateAlwaysReflectsLatestRebuildProperty checks that after any
// sequence of state transitions driven by rebuilds, the cached view's State
// field matches the node's own State() exactly (the snapshot never lags or
// reorders relative to the node it was built from).
func TestViewStateAlwaysReflectsLatestRebuildProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("cached view state matches node state after rebuild", prop.ForAll(
		func(transitionToError bool) bool {
			reg := NewRegistry()
			n := invocation.NewCode(1, testSpec("c"), nil, nil, sessionbag.RootScopes())
			reg.RegisterRoot(n)

			n.SetRunning()
			v := reg.Rebuild(n)
			if v.State != fnspec.StateRunning {
				return false
			}

			if transitionToError {
				n.SetError(errTransition)
			} else {
				n.SetSuccess("ok")
			}
			v = reg.Rebuild(n)
			return v.State == n.State()
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

var errTransition = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
