// Package toolerrors defines the two fault kinds the core distinguishes:
// exceptions the agent itself declares via raise_exception, and exceptions
// that originate from provider/infrastructure failure inside the agent loop.
// Both implement error and support errors.Is/As via Unwrap.
package toolerrors

import (
	"errors"
	"fmt"
)

// AgentException is raised when the model invokes the built-in raise_exception
// tool. It represents a task-level failure decided by the agent, not an
// infrastructure fault.
type AgentException struct {
	// AgentSpec is the name of the faulting agent spec.
	AgentSpec string
	// NodeID is the invocation node that raised the exception.
	NodeID int64
	// Message is the model-supplied failure description.
	Message string
}

func (e *AgentException) Error() string {
	return fmt.Sprintf("agent %q (node %d): %s", e.AgentSpec, e.NodeID, e.Message)
}

// ProviderException wraps an SDK or framework fault that escaped the agent
// loop's retry policy. It always carries an inner cause.
type ProviderException struct {
	// Provider identifies the provider class (e.g. "anthropic", "openai", "bedrock").
	Provider string
	// AgentSpec is the name of the agent whose loop encountered the fault.
	AgentSpec string
	// NodeID is the invocation node whose loop encountered the fault.
	NodeID int64
	// Cause is the underlying SDK or framework error.
	Cause error
}

func (e *ProviderException) Error() string {
	return fmt.Sprintf("provider %s: agent %q (node %d): %v", e.Provider, e.AgentSpec, e.NodeID, e.Cause)
}

// Unwrap exposes the inner cause for errors.Is/As.
func (e *ProviderException) Unwrap() error { return e.Cause }

// IsTransient reports whether the wrapped cause is a provider-classified
// transient fault, consulting an IsTransient() bool method on the cause
// chain when one is present. Provider adapters classify errors through
// their own IsTransient(err) method instead, so an SDK error wrapped here
// reports false unless its type has such a method. Non-transient and
// unclassifiable causes return false.
func (e *ProviderException) IsTransient() bool {
	var t transientError
	return errors.As(e.Cause, &t) && t.IsTransient()
}

type transientError interface {
	IsTransient() bool
}

// Concise renders an error as a short "type: message" string with no
// stacktrace, suitable for insertion into a tool-result transcript part. The
// agent loop uses this for every child failure it surfaces to the model.
func Concise(err error) string {
	if err == nil {
		return ""
	}
	var ae *AgentException
	if errors.As(err, &ae) {
		return fmt.Sprintf("AgentException: %s", ae.Message)
	}
	var pe *ProviderException
	if errors.As(err, &pe) {
		return fmt.Sprintf("ProviderException(%s): %v", pe.Provider, pe.Cause)
	}
	return fmt.Sprintf("%T: %v", err, err)
}

