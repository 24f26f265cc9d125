// Package invocation defines the invocation node: state plus history of one
// function invocation, in its code and agent variants. Nodes form the tree
// a runtime builds on demand as invocations spawn further invocations.
package invocation

import (
	"sync"
	"time"

	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/sessionbag"
	"github.com/agentcore/agentcore/transcript"
)

// Node is one invocation: its spec, inputs, lifecycle state, outputs or
// exception, and its place in the invocation tree. Node implements
// fnspec.NodeHandle.
//
// The runtime keeps every Node in a map keyed by ID. Parent and children
// are held as direct *Node pointers, not as IDs into that map, and nodes
// are never copied; nodes and their session bags form cyclic reference
// graphs (node -> parent, node -> bag -> shared with other nodes).
type Node struct {
	id     int64
	spec   fnspec.Spec
	inputs map[string]any

	mu        sync.Mutex
	state     fnspec.State
	outputs   any
	exception error
	children  []*Node
	done      chan struct{}

	parent *Node
	scopes sessionbag.Scopes

	createdAt time.Time

	// Agent-variant fields. Zero-valued and unused for code nodes.
	agent *agentState
}

// agentState carries the fields that only apply to agent invocations.
type agentState struct {
	ledger      *transcript.Ledger
	usage       transcript.TokenUsage
	usageMu     sync.Mutex
	cachePolicy transcript.CachePolicy
	policySet   bool
	lastToolAt  time.Time
	toolGapSum  time.Duration
	toolGapN    int
}

// NewCode constructs a fresh Waiting code invocation node. id must be
// allocated by the runtime (monotonic, unique within the runtime).
func NewCode(id int64, spec fnspec.Spec, inputs map[string]any, parent *Node, scopes sessionbag.Scopes) *Node {
	return &Node{
		id:        id,
		spec:      spec,
		inputs:    inputs,
		state:     fnspec.StateWaiting,
		done:      make(chan struct{}),
		parent:    parent,
		scopes:    scopes,
		createdAt: time.Now(),
	}
}

// NewAgent constructs a fresh Waiting agent invocation node with its own
// transcript ledger.
func NewAgent(id int64, spec fnspec.Spec, inputs map[string]any, parent *Node, scopes sessionbag.Scopes) *Node {
	n := NewCode(id, spec, inputs, parent, scopes)
	n.agent = &agentState{ledger: &transcript.Ledger{}}
	return n
}

// ID returns the node's monotonic identifier.
func (n *Node) ID() int64 { return n.id }

// Spec returns the spec this node invokes.
func (n *Node) Spec() fnspec.Spec { return n.spec }

// Inputs returns the node's invocation arguments.
func (n *Node) Inputs() map[string]any { return n.inputs }

// Parent returns the node's parent, or nil for a top-level invocation.
func (n *Node) Parent() *Node { return n.parent }

// Scopes returns the node's bound session-bag scope triple.
func (n *Node) Scopes() sessionbag.Scopes { return n.scopes }

// IsAgent reports whether this node is an agent invocation.
func (n *Node) IsAgent() bool { return n.agent != nil }

// Ledger returns the agent invocation's transcript ledger. Callers must only
// call this on agent nodes (IsAgent() == true).
func (n *Node) Ledger() *transcript.Ledger { return n.agent.ledger }

// AddUsage accumulates token usage for an agent invocation.
func (n *Node) AddUsage(delta transcript.TokenUsage) {
	n.agent.usageMu.Lock()
	defer n.agent.usageMu.Unlock()
	n.agent.usage.Add(delta)
}

// Usage returns a snapshot of the agent invocation's cumulative token usage.
func (n *Node) Usage() transcript.TokenUsage {
	n.agent.usageMu.Lock()
	defer n.agent.usageMu.Unlock()
	return n.agent.usage
}

// SetCachePolicy freezes the cache-watermark tier for this agent invocation.
// It is a programming error to call this more than once; the second call is
// a no-op so the tag truly never changes mid-invocation.
func (n *Node) SetCachePolicy(p transcript.CachePolicy) {
	n.agent.usageMu.Lock()
	defer n.agent.usageMu.Unlock()
	if n.agent.policySet {
		return
	}
	n.agent.cachePolicy = p
	n.agent.policySet = true
}

// CachePolicy returns the frozen cache-watermark tier, or "" if not yet
// decided.
func (n *Node) CachePolicy() transcript.CachePolicy {
	n.agent.usageMu.Lock()
	defer n.agent.usageMu.Unlock()
	return n.agent.cachePolicy
}

// RecordToolDispatch updates the rolling inter-tool-call interval used by
// the cache-policy decision for *future* invocations of this same spec (see
// the scheduler's per-spec history). Called once per dispatched batch of
// tool calls.
func (n *Node) RecordToolDispatch(at time.Time) {
	n.agent.usageMu.Lock()
	defer n.agent.usageMu.Unlock()
	if !n.agent.lastToolAt.IsZero() {
		n.agent.toolGapSum += at.Sub(n.agent.lastToolAt)
		n.agent.toolGapN++
	}
	n.agent.lastToolAt = at
}

// ToolCallStats reports the number of tool calls dispatched and the mean
// inter-tool-call interval observed so far, for use in the cache-policy
// history aggregate once this invocation completes.
func (n *Node) ToolCallStats() (count int, meanInterval time.Duration) {
	n.agent.usageMu.Lock()
	defer n.agent.usageMu.Unlock()
	count = n.agent.toolGapN + boolToInt(n.agent.toolGapN > 0 || !n.agent.lastToolAt.IsZero())
	if n.agent.toolGapN == 0 {
		return toolUseCountFromLedger(n), 0
	}
	return toolUseCountFromLedger(n), n.agent.toolGapSum / time.Duration(n.agent.toolGapN)
}

func toolUseCountFromLedger(n *Node) int {
	if n.agent == nil || n.agent.ledger == nil {
		return 0
	}
	return n.agent.ledger.ToolCallCount()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// State returns the node's current lifecycle state.
func (n *Node) State() fnspec.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SetRunning transitions Waiting -> Running. Returns false if the node was
// not Waiting (state transitions are monotonic and only the owner should
// call this, but the check guards against misuse).
func (n *Node) SetRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != fnspec.StateWaiting {
		return false
	}
	n.state = fnspec.StateRunning
	return true
}

// SetSuccess transitions to the terminal Success state with the given
// outputs and wakes any goroutine blocked in Result.
func (n *Node) SetSuccess(outputs any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state.Terminal() {
		return
	}
	n.state = fnspec.StateSuccess
	n.outputs = outputs
	close(n.done)
}

// SetError transitions to the terminal Error state with the given exception
// and wakes any goroutine blocked in Result.
func (n *Node) SetError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state.Terminal() {
		return
	}
	n.state = fnspec.StateError
	n.exception = err
	close(n.done)
}

// AddChild appends a child to the node's ordered children list. Children
// order is creation order; only the owning invocation's execution path
// calls this.
func (n *Node) AddChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = append(n.children, child)
}

// Children returns a snapshot copy of the node's children in creation
// order.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Result blocks until the node reaches a terminal state, then returns its
// outputs on Success or re-raises the stored exception on Error. Calling
// Result multiple times is safe and returns the same outcome every time.
func (n *Node) Result() (any, error) {
	<-n.done
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == fnspec.StateError {
		return nil, n.exception
	}
	return n.outputs, nil
}

// Exception returns the stored terminal exception, or nil if the node is
// not in the Error state.
func (n *Node) Exception() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.exception
}

var _ fnspec.NodeHandle = (*Node)(nil)
