// Package scheduler implements the runtime: spec registry, monotonic node
// ids, ancestry and session-bag wiring, prompt start of code invocations,
// worker-pool dispatch of agent invocations, and the per-provider
// model-api semaphore. It is the single concrete implementation of
// runctx.Runtime.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/invocation"
	"github.com/agentcore/agentcore/runctx"
	"github.com/agentcore/agentcore/sessionbag"
	"github.com/agentcore/agentcore/telemetry"
	"github.com/agentcore/agentcore/view"
	"golang.org/x/sync/semaphore"
)

// Config configures a Runtime at construction time.
type Config struct {
	// Specs seeds the spec registry; fnspec.Build performs the BFS closure.
	Specs []fnspec.Spec
	// Providers maps a provider class name ("anthropic", "openai",
	// "bedrock") to its agentloop.Provider implementation.
	Providers map[string]agentloop.Provider
	// DefaultProvider is used when an invocation and its spec supply no
	// provider hint.
	DefaultProvider string
	// SemaphoreWeight bounds concurrent in-flight requests per provider.
	// Zero defaults to 1.
	SemaphoreWeight int64
	// AgentWorkers bounds the number of agent invocations this runtime runs
	// concurrently. Each Runtime has its own pool. Zero defaults to 8.
	AgentWorkers int
	Logger       telemetry.Logger
	Metrics      telemetry.Metrics
	Tracer       telemetry.Tracer
}

// Runtime is the concrete runctx.Runtime. It owns node identity allocation,
// the spec registry, the view cache, and the per-provider semaphores.
type Runtime struct {
	registry        *fnspec.Registry
	views           *view.Registry
	providers       map[string]agentloop.Provider
	defaultProvider string
	logger          telemetry.Logger
	metrics         telemetry.Metrics
	tracer          telemetry.Tracer

	nextID int64

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted
	semW  int64

	pool chan struct{}

	history *specHistory

	mu    sync.Mutex
	nodes map[int64]*invocation.Node
}

// New builds a runtime from cfg: registers the closure of cfg.Specs and
// readies the worker pool and provider semaphores. Returns an error if spec
// registration fails (duplicate names under distinct instances, malformed
// schemas, or malformed prompt templates).
func New(cfg Config) (*Runtime, error) {
	reg, err := fnspec.Build(cfg.Specs)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	weight := cfg.SemaphoreWeight
	if weight <= 0 {
		weight = 1
	}
	workers := cfg.AgentWorkers
	if workers <= 0 {
		workers = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer{}
	}
	return &Runtime{
		registry:        reg,
		views:           view.NewRegistry(),
		providers:       cfg.Providers,
		defaultProvider: cfg.DefaultProvider,
		logger:          logger,
		metrics:         metrics,
		tracer:          tracer,
		sems:            make(map[string]*semaphore.Weighted),
		semW:            weight,
		pool:            make(chan struct{}, workers),
		history:         newSpecHistory(),
		nodes:           make(map[int64]*invocation.Node),
	}, nil
}

// RootContext returns the bootstrap fnspec.RunContext used to submit
// top-level invocations.
func (r *Runtime) RootContext() fnspec.RunContext {
	return runctx.New(r, nil, sessionbag.Scopes{})
}

// Views exposes the consumer query surface: list_toplevel_views, get_view,
// watch.
func (r *Runtime) Views() *view.Registry { return r.views }

// NodeByID returns the raw node for id, for tree-deletion and test
// introspection that needs more than a View snapshot. Ordinary consumers
// should use Views instead.
func (r *Runtime) NodeByID(id int64) (*invocation.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	return n, ok
}

// DeleteTree marks a top-level invocation's tree deleted: its view is
// removed from ListTopLevel but remains individually retrievable, per the
// spec's "retained after completion... freed only on explicit tree
// deletion" lifecycle note. It also disposes the contents of the root's own
// session bag; the bags of descendant nodes are not disposed. Node memory
// itself is not reclaimed — the runtime keeps every node in its map.
func (r *Runtime) DeleteTree(rootID int64) {
	if node, ok := r.NodeByID(rootID); ok {
		node.Scopes().Self.Dispose()
	}
	r.views.DeleteTree(rootID)
}

func (r *Runtime) providerFor(hint string) (agentloop.Provider, string, error) {
	name := hint
	if name == "" {
		name = r.defaultProvider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, "", fmt.Errorf("scheduler: no provider registered for %q", name)
	}
	return p, name, nil
}

func (r *Runtime) semaphoreFor(provider string) *semaphore.Weighted {
	r.semMu.Lock()
	defer r.semMu.Unlock()
	s, ok := r.sems[provider]
	if !ok {
		s = semaphore.NewWeighted(r.semW)
		r.sems[provider] = s
	}
	return s
}

// weightedSemaphore adapts *semaphore.Weighted (weight fixed at 1 per
// agent) to agentloop.Semaphore, logging a warning when a lease isn't
// immediately available so sustained model-api contention is visible.
type weightedSemaphore struct {
	s        *semaphore.Weighted
	provider string
	logger   telemetry.Logger
	metrics  telemetry.Metrics
}

func (w weightedSemaphore) Acquire(ctx context.Context) error {
	if w.s.TryAcquire(1) {
		return nil
	}
	w.logger.Warn(ctx, "scheduler: semaphore contention", "provider", w.provider)
	w.metrics.IncCounter("scheduler.semaphore.contended", 1, "provider", w.provider)
	return w.s.Acquire(ctx, 1)
}

func (w weightedSemaphore) Release() { w.s.Release(1) }

// Invoke implements runctx.Runtime. caller is nil for a fresh top-level
// tree. Code specs run synchronously on the calling goroutine before
// Invoke returns; agent specs are handed to the worker pool and Invoke
// returns as soon as the node is registered. Waiting for a free pool slot
// happens on the agent's own goroutine, never inside Invoke.
func (r *Runtime) Invoke(caller *invocation.Node, spec fnspec.Spec, args map[string]any, provider string) (*invocation.Node, error) {
	s, ok := r.registry.Lookup(spec.SpecName())
	if !ok || s != spec {
		return nil, fmt.Errorf("scheduler: spec %q is not registered on this runtime", spec.SpecName())
	}

	scopes := sessionbag.RootScopes()
	if caller != nil {
		scopes = sessionbag.ChildScopes(caller.Scopes())
	}

	id := atomic.AddInt64(&r.nextID, 1)

	var node *invocation.Node
	switch v := spec.(type) {
	case *fnspec.CodeSpec:
		if err := v.ValidateArgs(args); err != nil {
			return nil, err
		}
		node = invocation.NewCode(id, spec, args, caller, scopes)
	case *fnspec.AgentSpec:
		node = invocation.NewAgent(id, spec, args, caller, scopes)
	default:
		return nil, fmt.Errorf("scheduler: unknown spec kind for %q", spec.SpecName())
	}

	r.mu.Lock()
	r.nodes[id] = node
	r.mu.Unlock()

	if caller != nil {
		caller.AddChild(node)
		r.views.Rebuild(caller)
	} else {
		r.views.RegisterRoot(node)
	}

	r.logger.Info(context.Background(), "scheduler: invocation started", "spec", spec.SpecName(), "node_id", id)
	r.metrics.IncCounter("scheduler.invocations.started", 1, "spec", spec.SpecName())

	switch v := spec.(type) {
	case *fnspec.CodeSpec:
		r.runCode(node, v, args)
	case *fnspec.AgentSpec:
		if err := r.startAgent(node, v, provider); err != nil {
			return nil, err
		}
	}

	return node, nil
}

// runCode executes a code invocation's callable synchronously, per the
// spec's "started immediately on the caller's executor" contract.
func (r *Runtime) runCode(node *invocation.Node, spec *fnspec.CodeSpec, args map[string]any) {
	node.SetRunning()
	r.views.Rebuild(node)

	rc := runctx.New(r, node, node.Scopes())
	out, err := spec.Callable(rc, args)
	ctx := context.Background()
	if err != nil {
		node.SetError(err)
		r.logger.Error(ctx, "scheduler: invocation errored", "spec", spec.SpecName(), "node_id", node.ID(), "err", err)
		r.metrics.IncCounter("scheduler.invocations.errored", 1, "spec", spec.SpecName())
	} else {
		node.SetSuccess(out)
		r.logger.Info(ctx, "scheduler: invocation completed", "spec", spec.SpecName(), "node_id", node.ID())
		r.metrics.IncCounter("scheduler.invocations.completed", 1, "spec", spec.SpecName())
	}
	r.views.Rebuild(node)
}

// startAgent enqueues an agent invocation onto the worker pool. It returns
// as soon as a provider is resolved and the node is in the Waiting state;
// the loop itself runs on a pool goroutine.
func (r *Runtime) startAgent(node *invocation.Node, spec *fnspec.AgentSpec, providerHint string) error {
	hint := providerHint
	if hint == "" {
		hint = spec.ProviderHint
	}
	p, providerName, err := r.providerFor(hint)
	if err != nil {
		return err
	}

	declaredCount, onlyLeaf := spec.DeclaredToolProfile()
	cachePolicy := decideCachePolicy(declaredCount, onlyLeaf, r.history, spec.Name)

	sem := weightedSemaphore{s: r.semaphoreFor(providerName), provider: providerName, logger: r.logger, metrics: r.metrics}
	rc := runctx.New(r, node, node.Scopes())

	go func() {
		r.pool <- struct{}{}
		defer func() { <-r.pool }()

		node.SetRunning()
		r.views.Rebuild(node)

		agentloop.Run(context.Background(), node, spec, rc, p, sem, cachePolicy, r.logger, r.metrics, r.tracer)

		if node.State() == fnspec.StateError {
			r.metrics.IncCounter("scheduler.invocations.errored", 1, "spec", spec.Name)
		} else {
			r.metrics.IncCounter("scheduler.invocations.completed", 1, "spec", spec.Name)
		}

		count, mean := node.ToolCallStats()
		r.history.record(spec.Name, historyEntry{toolCallCount: count, meanInterval: mean})

		r.views.Rebuild(node)
	}()

	return nil
}

// ListToplevelViews returns a single atomically captured snapshot of every
// non-deleted top-level invocation's current view.
func (r *Runtime) ListToplevelViews() []*view.View { return r.views.ListTopLevel() }

// GetView returns the most recently cached view for id without blocking.
func (r *Runtime) GetView(id int64) (*view.View, bool) { return r.views.Get(id) }

// Watch blocks until id's cached view advances past asOfSeq, then returns
// it, or returns ctx's error if ctx is canceled first.
func (r *Runtime) Watch(ctx context.Context, id int64, asOfSeq uint64) (*view.View, error) {
	return r.views.Watch(ctx, id, asOfSeq)
}

var _ runctx.Runtime = (*Runtime)(nil)
