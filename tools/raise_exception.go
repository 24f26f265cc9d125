// Package tools holds the one built-in function spec every agent may
// declare among its uses: raise_exception, the model's sole path to
// terminating its own invocation with a declared failure.
package tools

import (
	"errors"

	"github.com/agentcore/agentcore/fnspec"
)

// RaiseExceptionName is the fixed spec name the agent loop watches for when
// deciding whether a dispatched batch of tool calls included the sentinel.
const RaiseExceptionName = "raise_exception"

// errRaised is the sentinel cause every raise_exception invocation fails
// with. The agent loop does not inspect this error's identity — it
// recognizes raise_exception by tool name — but a non-nil distinguishable
// cause keeps the invocation node's own Error state honest for anyone
// inspecting the tree directly.
var errRaised = errors.New("tools: agent invoked raise_exception")

// RaiseException is the built-in spec. Its callable always fails with the
// model-supplied message as the invocation node's outputs are never read;
// the agent loop reads the message back out of the tool-call arguments
// when it builds the AgentException, not from this node's own result.
var RaiseException = &fnspec.CodeSpec{
	Name: RaiseExceptionName,
	ArgSchema: []fnspec.ArgSpec{
		{Name: "msg", Type: fnspec.ArgString, Description: "Human-readable description of the failure being declared."},
	},
	Callable: func(_ fnspec.RunContext, args map[string]any) (any, error) {
		msg, _ := args["msg"].(string)
		return nil, errRaisedWithMessage(msg)
	},
}

func errRaisedWithMessage(msg string) error {
	if msg == "" {
		return errRaised
	}
	return &raisedError{msg: msg}
}

type raisedError struct{ msg string }

func (e *raisedError) Error() string { return e.msg }
func (e *raisedError) Unwrap() error { return errRaised }
