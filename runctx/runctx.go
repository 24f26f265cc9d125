// Package runctx implements fnspec.RunContext: the handle a code callable or
// the agent loop uses to spawn children, report status, and touch the
// session bag. The concrete Runtime a Context dispatches through is named
// here as a small local interface so runctx never imports package
// scheduler — scheduler.Runtime implements it instead.
package runctx

import (
	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/invocation"
	"github.com/agentcore/agentcore/sessionbag"
)

// Runtime is the subset of the scheduler a Context needs to create new
// invocations. scheduler.Runtime implements this.
type Runtime interface {
	// Invoke creates a new node for spec as a child of caller (nil for a
	// fresh top-level tree), wires its session-bag scopes, and starts it:
	// code specs run synchronously on the calling goroutine and have
	// finished by the time Invoke returns; agent specs are enqueued subject
	// to the provider semaphore and Invoke returns without waiting for them.
	// Callers join via node.Result().
	Invoke(caller *invocation.Node, spec fnspec.Spec, args map[string]any, provider string) (*invocation.Node, error)
}

// Context is the concrete fnspec.RunContext bound to one invocation node.
// Node is nil only for the bootstrap context used to submit the first
// top-level invocation.
type Context struct {
	rt     Runtime
	node   *invocation.Node
	scopes sessionbag.Scopes
}

// New binds a Context to node with its resolved scopes. Pass a nil node to
// construct the bootstrap context for submitting top-level invocations.
func New(rt Runtime, node *invocation.Node, scopes sessionbag.Scopes) *Context {
	return &Context{rt: rt, node: node, scopes: scopes}
}

// Invoke creates a child of the bound node, or a new top-level node when the
// context is unbound.
func (c *Context) Invoke(spec fnspec.Spec, args map[string]any, provider string) (fnspec.NodeHandle, error) {
	child, err := c.rt.Invoke(c.node, spec, args, provider)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// PostStatusUpdate reports a non-terminal transition for the bound node.
// It is a no-op on the bootstrap (unbound) context.
func (c *Context) PostStatusUpdate(state fnspec.State) {
	if c.node == nil {
		return
	}
	if state == fnspec.StateRunning {
		c.node.SetRunning()
	}
}

// PostSuccess reports a terminal Success transition for the bound node.
func (c *Context) PostSuccess(outputs any) {
	if c.node == nil {
		return
	}
	c.node.SetSuccess(outputs)
}

// PostException reports a terminal Error transition for the bound node.
func (c *Context) PostException(err error) {
	if c.node == nil {
		return
	}
	c.node.SetError(err)
}

// GetOrPut resolves scope against the bound node's scope triple and
// delegates to that bag's GetOrPut.
func (c *Context) GetOrPut(scope sessionbag.Scope, namespace, key string, factory func() (any, error)) (any, error) {
	bag, err := c.scopes.Resolve(scope)
	if err != nil {
		return nil, err
	}
	return bag.GetOrPut(namespace, key, factory)
}

var _ fnspec.RunContext = (*Context)(nil)
