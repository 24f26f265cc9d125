// Package fnspec defines function specifications — the immutable metadata
// that describes an invocable unit — and the vocabulary shared by every
// higher-level package (invocation state, the run-context contract, the
// node handle returned to callers). Keeping these types here lets
// invocation, runctx, and scheduler depend on fnspec without fnspec ever
// depending back on them.
package fnspec

import (
	"fmt"

	"github.com/agentcore/agentcore/sessionbag"
)

// Kind distinguishes code specs (deterministic callables) from agent specs
// (LLM-driven).
type Kind string

const (
	// KindCode identifies a spec backed by a Go callable.
	KindCode Kind = "code"
	// KindAgent identifies a spec backed by the provider-driven agent loop.
	KindAgent Kind = "agent"
)

// ArgType enumerates the primitive argument types a spec may declare.
// Structured or nested argument shapes are out of scope: the DSL this core
// exposes only ever needs string/int/float/bool leaves.
type ArgType string

const (
	ArgString ArgType = "string"
	ArgInt    ArgType = "int"
	ArgFloat  ArgType = "float"
	ArgBool   ArgType = "bool"
)

// ArgSpec describes one named argument of a code spec.
type ArgSpec struct {
	Name        string
	Type        ArgType
	Description string
}

// State is an invocation node's lifecycle state. Transitions are monotonic:
// Waiting -> Running -> {Success | Error}. Terminal states are frozen.
type State string

const (
	StateWaiting State = "waiting"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Terminal reports whether s is a terminal state (Success or Error).
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

type (
	// Spec is implemented by CodeSpec and AgentSpec. It is the closed set of
	// invocable unit descriptions the registry can hold.
	Spec interface {
		SpecName() string
		SpecKind() Kind
		SpecUses() []Spec
		isSpec()
	}

	// CodeFunc is the body of a code spec. The first parameter is the run
	// context bound to the invocation node the body is executing as; args
	// have already been validated against ArgSchema before Callable is
	// invoked. The returned value becomes the node's Outputs on success.
	CodeFunc func(ctx RunContext, args map[string]any) (any, error)

	// CodeSpec points to a deterministic callable plus its argument schema.
	CodeSpec struct {
		// Name is the spec's stable, registry-unique identifier.
		Name string
		// ArgSchema declares the callable's accepted arguments. Only the four
		// primitive types are permitted.
		ArgSchema []ArgSpec
		// Uses lists other specs this callable may invoke through a RunContext.
		// Direct calls between code callables that bypass the context are not
		// tracked here and do not need to be declared.
		Uses []Spec
		// Callable is the Go function this spec wraps.
		Callable CodeFunc
		// HumanInLoop marks a callable that suspends on an external actor
		// (e.g. the out-of-scope human-in-loop hook). Such callables are
		// expected to courteously release the model-api semaphore lease for
		// the duration of the wait; they factor into the cache-watermark
		// policy decision (a human-in-loop tool among an agent's declared
		// uses disqualifies the 5m ephemeral tier).
		HumanInLoop bool

		compiledSchema *compiledSchema
	}

	// InputVar declares one agent-spec input variable. When FilePath is true,
	// the supplied argument value is treated as a path and its file contents
	// are substituted into the prompt templates in place of the literal.
	InputVar struct {
		Name     string
		FilePath bool
	}

	// AgentSpec declares an LLM-driven invocable unit.
	AgentSpec struct {
		// Name is the spec's stable, registry-unique identifier.
		Name string
		// Inputs declares the named template variables available to
		// SystemPromptTemplate and UserPromptTemplate.
		Inputs []InputVar
		// SystemPromptTemplate is rendered once, before the first request.
		SystemPromptTemplate string
		// UserPromptTemplate is rendered once to produce the initial user seed
		// turn.
		UserPromptTemplate string
		// Description is a short summary surfaced to tooling and to parent
		// agents considering this spec as a tool.
		Description string
		// Uses lists specs this agent may invoke as tools, including
		// optionally the built-in raise-exception spec.
		Uses []Spec
		// ProviderHint names the preferred provider class (e.g. "anthropic",
		// "openai", "bedrock"). Empty means the runtime default.
		ProviderHint string
	}
)

func (*CodeSpec) isSpec()  {}
func (*AgentSpec) isSpec() {}

func (s *CodeSpec) SpecName() string  { return s.Name }
func (s *CodeSpec) SpecKind() Kind    { return KindCode }
func (s *CodeSpec) SpecUses() []Spec  { return s.Uses }

func (s *AgentSpec) SpecName() string { return s.Name }
func (s *AgentSpec) SpecKind() Kind   { return KindAgent }
func (s *AgentSpec) SpecUses() []Spec { return s.Uses }

// NodeHandle is the minimal caller-facing view of an invocation node
// returned by RunContext.Invoke. *invocation.Node implements this; fnspec
// never imports the invocation package so the two can reference each other
// through this interface without a cyclic dependency.
type NodeHandle interface {
	// ID returns the node's monotonic, runtime-unique identifier.
	ID() int64
	// Result blocks until the node reaches a terminal state, then returns its
	// outputs on Success or re-raises the stored exception on Error.
	Result() (any, error)
}

// RunContext is the sole channel by which one invocation creates another
// through the scheduler. Code callables and the agent loop both program
// against this interface; the concrete implementation lives in package
// runctx.
type RunContext interface {
	// Invoke creates a child of the bound node (or a new top-level node when
	// unbound) and returns its handle. Code specs start immediately on the
	// caller's goroutine; agent specs are enqueued subject to the model-api
	// semaphore.
	Invoke(spec Spec, args map[string]any, provider string) (NodeHandle, error)
	// PostStatusUpdate reports a non-terminal state transition for the bound
	// node.
	PostStatusUpdate(state State)
	// PostSuccess reports a terminal Success transition with the given
	// outputs.
	PostSuccess(outputs any)
	// PostException reports a terminal Error transition.
	PostException(err error)
	// GetOrPut atomically reads or creates a value in the bag at the named
	// scope. The factory runs under the bag's lock and at most once per
	// (scope, namespace, key) across concurrent callers.
	GetOrPut(scope sessionbag.Scope, namespace, key string, factory func() (any, error)) (any, error)
}

// ValidateArgs checks args against the spec's declared primitive schema.
// Extra keys are rejected; missing required keys are rejected; type
// mismatches are rejected. This is explicit field-by-field validation, not
// reflection-driven, per the spec's data-model note on ad hoc argument
// typing.
func (s *CodeSpec) ValidateArgs(args map[string]any) error {
	if s.compiledSchema == nil {
		s.compiledSchema = compileSchema(s.ArgSchema)
	}
	return s.compiledSchema.Validate(s.Name, args)
}

// errf is a tiny local helper kept to avoid importing fmt in every file that
// needs a one-line formatted error.
func errf(format string, args ...any) error { return fmt.Errorf(format, args...) }
