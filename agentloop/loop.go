package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcore/agentcore/fnspec"
	"github.com/agentcore/agentcore/invocation"
	"github.com/agentcore/agentcore/telemetry"
	"github.com/agentcore/agentcore/toolerrors"
	"github.com/agentcore/agentcore/tools"
	"github.com/agentcore/agentcore/transcript"
)

// Run drives one agent invocation from its first model request to a
// terminal Success or Error, reported through rc. cachePolicy must already
// be decided by the caller (the scheduler, which alone has the rolling
// per-spec history the decision consults) — Run only freezes it onto node.
func Run(ctx context.Context, node *invocation.Node, spec *fnspec.AgentSpec, rc fnspec.RunContext, p Provider, sem Semaphore, cachePolicy transcript.CachePolicy, logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) {
	node.SetCachePolicy(cachePolicy)

	resolved, err := spec.ResolveInputs(node.Inputs())
	if err != nil {
		rc.PostException(err)
		return
	}
	system, userSeed, err := spec.RenderPrompts(resolved)
	if err != nil {
		rc.PostException(err)
		return
	}

	ledger := node.Ledger()
	ledger.AppendTurn(transcript.Turn{
		Role:  transcript.RoleUser,
		Parts: []transcript.Part{transcript.UserText{Text: userSeed}},
	})

	toolsByName := make(map[string]fnspec.Spec, len(spec.Uses))
	toolDecls := make([]ToolDeclaration, 0, len(spec.Uses))
	for _, u := range spec.Uses {
		toolsByName[u.SpecName()] = u
		decl := ToolDeclaration{Name: u.SpecName()}
		switch v := u.(type) {
		case *fnspec.CodeSpec:
			decl.ArgSchema = fnspec.ArgSchemaJSON(v.ArgSchema)
		case *fnspec.AgentSpec:
			decl.Description = v.Description
		}
		toolDecls = append(toolDecls, decl)
	}

	// hasSem tracks whether this goroutine already holds the provider's
	// semaphore lease. Per the "Acquire... if not held" rule, successive
	// requests in the same invocation reuse one lease instead of
	// re-acquiring a lease already held, which would self-deadlock under
	// the default no-release-between-requests policy below.
	hasSem := false
	releaseSem := func() {
		if hasSem {
			sem.Release()
			hasSem = false
		}
	}
	defer releaseSem()

	for {
		req := Request{
			System:      system,
			Turns:       ledger.Turns(),
			Tools:       toolDecls,
			CachePolicy: cachePolicy,
		}

		if !hasSem {
			if err := sem.Acquire(ctx); err != nil {
				rc.PostException(wrapProvider(p, node, spec.Name, err))
				return
			}
			hasSem = true
		}

		var rendered any
		renderErr := withTransientRetry(ctx, p, func(ctx context.Context) error {
			r, e := p.Render(ctx, req)
			rendered = r
			return e
		})
		if renderErr != nil {
			releaseSem()
			rc.PostException(wrapProvider(p, node, spec.Name, renderErr))
			return
		}

		logger.Debug(ctx, "agentloop: model request", "agent", spec.Name, "node_id", node.ID(), "turns", len(req.Turns))
		reqCtx, span := tracer.Start(ctx, "agentloop.model_request")
		reqStart := time.Now()
		var resp Response
		submitErr := withTransientRetry(reqCtx, p, func(ctx context.Context) error {
			r, e := p.Submit(ctx, rendered)
			resp = r
			return e
		})
		metrics.RecordTimer("agentloop.request.latency", time.Since(reqStart), "provider", p.Name())
		if submitErr != nil {
			span.RecordError(submitErr)
			span.End()
			releaseSem()
			logger.Error(ctx, "agentloop: model request failed", "agent", spec.Name, "node_id", node.ID(), "err", submitErr)
			rc.PostException(wrapProvider(p, node, spec.Name, submitErr))
			return
		}
		span.End()
		// Default shared-resource policy: do not release the semaphore
		// between an agent's own requests, to preserve cache warmth and
		// favor front-of-line completion.

		ledger.AppendTurn(transcript.Turn{Role: transcript.RoleModel, Parts: resp.Parts})
		logger.Debug(ctx, "agentloop: transcript append", "agent", spec.Name, "node_id", node.ID(), "role", "model")
		node.AddUsage(resp.Usage)

		if resp.IsFinal {
			releaseSem()
			logger.Info(ctx, "agentloop: invocation succeeded", "agent", spec.Name, "node_id", node.ID())
			rc.PostSuccess(resp.FinalText)
			return
		}
		if len(resp.ToolUses) == 0 {
			releaseSem()
			err := fmt.Errorf("agentloop: provider %s returned neither tool calls nor final text", p.Name())
			logger.Error(ctx, "agentloop: uncaught exception", "agent", spec.Name, "node_id", node.ID(), "err", err)
			rc.PostException(err)
			return
		}

		node.RecordToolDispatch(time.Now())
		_, dispatchSpan := tracer.Start(ctx, "agentloop.tool_dispatch")
		results, raisedMsg, raised := dispatchToolCalls(rc, toolsByName, resp.ToolUses)
		dispatchSpan.End()
		ledger.AppendTurn(transcript.Turn{Role: transcript.RoleUser, Parts: results})
		logger.Debug(ctx, "agentloop: transcript append", "agent", spec.Name, "node_id", node.ID(), "role", "tool_result")

		if raised {
			releaseSem()
			exc := &toolerrors.AgentException{AgentSpec: spec.Name, NodeID: node.ID(), Message: raisedMsg}
			logger.Error(ctx, "agentloop: uncaught exception", "agent", spec.Name, "node_id", node.ID(), "err", exc)
			rc.PostException(exc)
			return
		}
	}
}

// dispatchToolCalls invokes each requested tool via rc and blocks on its
// result, converting failures to concise tool-result errors per the
// replay contract. Parallel tool calls are logically concurrent in the
// transcript but dispatched sequentially here, matching the spec's
// allowance that they "may execute sequentially." It reports whether
// raise_exception was among the dispatched calls and, if so, the message
// the model supplied — the caller honors that intent only after every call
// in the batch has been attempted.
func dispatchToolCalls(rc fnspec.RunContext, toolsByName map[string]fnspec.Spec, calls []transcript.ToolUse) (results []transcript.Part, raisedMsg string, raised bool) {
	results = make([]transcript.Part, 0, len(calls))
	for _, tu := range calls {
		spec, ok := toolsByName[tu.Name]
		if !ok {
			results = append(results, transcript.ToolResult{
				ToolUseID: tu.ID,
				Payload:   fmt.Sprintf("unknown tool %q", tu.Name),
				IsError:   true,
			})
			continue
		}

		handle, err := rc.Invoke(spec, tu.Args, "")
		var out any
		if err == nil {
			out, err = handle.Result()
		}

		if tu.Name == tools.RaiseExceptionName {
			raised = true
			if msg, ok := tu.Args["msg"].(string); ok {
				raisedMsg = msg
			}
		}

		if err != nil {
			results = append(results, transcript.ToolResult{ToolUseID: tu.ID, Payload: toolerrors.Concise(err), IsError: true})
			continue
		}
		results = append(results, transcript.ToolResult{ToolUseID: tu.ID, Payload: out, IsError: false})
	}
	return results, raisedMsg, raised
}

func wrapProvider(p Provider, node *invocation.Node, agentName string, err error) *toolerrors.ProviderException {
	return &toolerrors.ProviderException{Provider: p.Name(), AgentSpec: agentName, NodeID: node.ID(), Cause: err}
}
