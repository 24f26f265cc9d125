// Package agentloop implements the provider-neutral agent loop: the
// request/response/tool-dispatch automaton that drives one agent
// invocation from its first model request to a terminal Success or Error.
// Provider adapters under package provider/* supply the SDK-specific half
// of the contract through the Provider interface defined here.
package agentloop

import (
	"context"

	"github.com/agentcore/agentcore/transcript"
)

// Request is what the loop asks a Provider to render and submit on each
// cycle: the rendered system prompt, the full turn history replayed
// verbatim (its first turn is always the rendered initial user seed), the
// declared tool specs, and the cache-watermark tier to apply to only the
// latest message.
type Request struct {
	System      string
	Turns       []transcript.Turn
	Tools       []ToolDeclaration
	CachePolicy transcript.CachePolicy
}

// ToolDeclaration is the provider-neutral description of one tool the model
// may call, derived from an agent spec's declared uses.
type ToolDeclaration struct {
	Name        string
	Description string
	ArgSchema   map[string]any
}

// Response is a provider's neutral rendering of one model reply: the parts
// to append to the transcript, the tool uses requested (already reflected
// in Parts as ToolUse entries, repeated here for direct dispatch), and
// accumulated token usage for this single cycle.
type Response struct {
	Parts    []transcript.Part
	ToolUses []transcript.ToolUse
	Usage    transcript.TokenUsage
	// FinalText is set when the response contains a terminal text block
	// with no further tool use.
	FinalText string
	IsFinal   bool
}

// Provider is implemented once per backing SDK (anthropic, openai,
// bedrock). Render and Submit are split so the loop can log/trace the
// outgoing request before it is sent; Ingest never needs to be called
// separately since Submit returns the already-ingested Response.
type Provider interface {
	// Name identifies the provider class for error attribution, e.g.
	// "anthropic", "openai", "bedrock".
	Name() string
	// Render turns a Request into the provider's wire representation. The
	// returned value is opaque to the loop and passed back to Submit
	// unchanged.
	Render(ctx context.Context, req Request) (any, error)
	// Submit sends the rendered request and ingests the reply into a
	// neutral Response. It must request the provider's interleaved
	// reasoning mode when available, with tool-choice "auto".
	Submit(ctx context.Context, rendered any) (Response, error)
	// IsTransient classifies an error returned by Render or Submit as a
	// transient SDK/network fault eligible for the loop's bounded retry.
	IsTransient(err error) bool
}

// Semaphore is the loop's view of the scheduler's model-api concurrency
// gate: acquire before a provider request, release only when explicitly
// told to (the default policy never releases between an agent's own
// requests). Defined locally so this package never imports scheduler.
type Semaphore interface {
	Acquire(ctx context.Context) error
	Release()
}
