// Package view derives immutable, point-in-time snapshots of invocation
// nodes for consumers outside the tree (observers, demo UIs, tests) and
// provides the blocking watch primitive used to wait for a node's next
// update. Snapshots are cached and rebuilt up the ancestor chain whenever a
// node mutates, so a consumer reading View never observes a half-updated
// tree and a strictly increasing sequence number tells it when to re-read.
package view

import (
	"context"
	"sync"

	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/invocation"
	"github.com/agentcore/agentcore/toolerrors"
	"github.com/agentcore/agentcore/transcript"
)

// View is an immutable snapshot of one invocation node at a point in its
// lifetime. Consumers never see a View mutate in place; a new node update
// produces a new View with a higher Seq.
type View struct {
	NodeID           int64
	SpecName         string
	Kind             fnspec.Kind
	State            fnspec.State
	Inputs           map[string]any
	Outputs          any
	ExceptionSummary string
	Children         []*View
	Seq              uint64

	// Usage and Turns are populated only for agent-kind nodes.
	Usage *transcript.TokenUsage
	Turns []transcript.Turn
}

// Registry caches the current View of every node the runtime has ever
// created and serializes the monotonic sequence counter that orders
// updates. One Registry is shared by one runtime instance; there is no
// process-wide global, so two runtimes in the same process number their
// sequences independently.
type Registry struct {
	mu    sync.Mutex
	cond  *sync.Cond
	seq   uint64
	cache map[int64]*View
	roots []int64
	// deleted marks top-level trees removed from the runtime. Deleted roots
	// are kept out of ListTopLevel but remain readable via Get, matching the
	// decision recorded in the design ledger that list_toplevel_views omits
	// deleted trees while individual lookups still work.
	deleted map[int64]bool
}

// NewRegistry constructs an empty view registry.
func NewRegistry() *Registry {
	r := &Registry{
		cache:   make(map[int64]*View),
		deleted: make(map[int64]bool),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// RegisterRoot records node as a top-level tree and builds its initial view.
func (r *Registry) RegisterRoot(node *invocation.Node) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append(r.roots, node.ID())
	r.seq++
	return r.rebuildLocked(node, r.seq)
}

// Rebuild recomputes the view for node and every ancestor up to its root
// under one shared sequence number, bumping the counter exactly once per
// call, and wakes any goroutine blocked in Watch. One state-changing event
// therefore advances V by exactly one, regardless of how deep node's
// ancestor chain runs. Call this after any mutation to node's state,
// outputs, exception, children, usage, or ledger.
func (r *Registry) Rebuild(node *invocation.Node) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	var v *View
	for n := node; n != nil; n = n.Parent() {
		v = r.rebuildLocked(n, r.seq)
	}
	return v
}

// rebuildLocked must be called with mu held. It builds a fresh View for node
// stamped with seq, caches it, and broadcasts to wake blocked watchers.
func (r *Registry) rebuildLocked(node *invocation.Node, seq uint64) *View {
	v := buildView(node, seq)
	r.cache[node.ID()] = v
	r.cond.Broadcast()
	return v
}

// buildView constructs a View from a node's current state, recursing into
// its children. seq is the sequence number assigned to this rebuild.
func buildView(node *invocation.Node, seq uint64) *View {
	children := node.Children()
	childViews := make([]*View, len(children))
	for i, c := range children {
		childViews[i] = buildView(c, seq)
	}

	v := &View{
		NodeID:   node.ID(),
		SpecName: node.Spec().SpecName(),
		Kind:     node.Spec().SpecKind(),
		State:    node.State(),
		Inputs:   node.Inputs(),
		Children: childViews,
		Seq:      seq,
	}
	if exc := node.Exception(); exc != nil {
		v.ExceptionSummary = toolerrors.Concise(exc)
	}
	if node.State() == fnspec.StateSuccess {
		if out, err := node.Result(); err == nil {
			v.Outputs = out
		}
	}
	if node.IsAgent() {
		usage := node.Usage()
		v.Usage = &usage
		v.Turns = node.Ledger().Turns()
	}
	return v
}

// Get returns the most recently cached view for id, or false if the runtime
// has never seen that node.
func (r *Registry) Get(id int64) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache[id]
	return v, ok
}

// ListTopLevel returns the current views of every non-deleted top-level
// tree, in registration order.
func (r *Registry) ListTopLevel() []*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*View, 0, len(r.roots))
	for _, id := range r.roots {
		if r.deleted[id] {
			continue
		}
		if v, ok := r.cache[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// DeleteTree marks a top-level tree deleted. Its view remains reachable via
// Get but no longer appears in ListTopLevel.
func (r *Registry) DeleteTree(rootID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[rootID] = true
}

// Watch blocks until id's cached view has a sequence number greater than
// asOf, then returns it. It returns ctx's error if ctx is canceled first.
func (r *Registry) Watch(ctx context.Context, id int64, asOf uint64) (*View, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if v, ok := r.cache[id]; ok && v.Seq > asOf {
			return v, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.cond.Wait()
	}
}
