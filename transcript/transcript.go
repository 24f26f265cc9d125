// Package transcript defines the provider-neutral message parts replayed
// verbatim across an agent invocation's request cycles, plus the cumulative
// token usage accumulator. The ledger of these neutral types is the only
// stored transcript: provider adapters translate replies into them on
// ingest and encode the whole ledger back into their SDK's wire types on
// every render. No SDK-specific transcript is kept between cycles.
package transcript

import "sync"

// Role identifies the speaker of a transcript part's enclosing turn.
type Role string

const (
	// RoleUser marks a turn authored by the caller or by tool-result replay.
	RoleUser Role = "user"
	// RoleModel marks a turn authored by the model.
	RoleModel Role = "model"
)

// CachePolicy is the cache-watermark tier selected once per agent invocation.
type CachePolicy string

const (
	// CacheNone disables prompt caching for the invocation.
	CacheNone CachePolicy = "none"
	// Cache5m requests an ephemeral (five minute) cache checkpoint.
	Cache5m CachePolicy = "5m"
	// Cache1hr requests a long-lived (one hour) cache checkpoint.
	Cache1hr CachePolicy = "1hr"
)

type (
	// Part is implemented by every transcript part variant. It is a closed
	// set: UserText, ModelText, Thinking, ToolUse, ToolResult.
	Part interface {
		isPart()
	}

	// UserText is plain text authored by the caller (the initial seed turn)
	// or synthesized by the runtime to carry tool results.
	UserText struct {
		Text string
	}

	// ModelText is the model's final or intermediate natural-language output.
	ModelText struct {
		Text string
	}

	// Thinking carries provider reasoning content. Signature is preserved and
	// replayed verbatim on every follow-up request regardless of whether Text
	// or Redacted is populated.
	Thinking struct {
		Text      string
		Signature string
		Redacted  []byte
	}

	// ToolUse declares a tool invocation requested by the model.
	ToolUse struct {
		ID    string
		Name  string
		Args  map[string]any
	}

	// ToolResult carries the outcome of a dispatched ToolUse, correlated by ID.
	ToolResult struct {
		ToolUseID string
		Payload   any
		IsError   bool
	}

	// Turn groups an ordered run of parts under a single role. A request
	// replays the full ordered sequence of turns since the initial user seed.
	Turn struct {
		Role  Role
		Parts []Part
	}

	// Ledger is the append-only, ordered record of turns for one agent
	// invocation. Appends are the only mutation; nothing is ever deleted,
	// reordered, or rewrapped once appended.
	Ledger struct {
		mu    sync.RWMutex
		turns []Turn
	}

	// TokenUsage accumulates token counts across every request cycle of an
	// agent invocation.
	TokenUsage struct {
		CacheReadTokens  int
		CacheWriteTokens int
		InputTokens      int
		ReasoningTokens  int
		OutputTextTokens int
		TotalTokens      int
	}
)

func (UserText) isPart()   {}
func (ModelText) isPart()  {}
func (Thinking) isPart()   {}
func (ToolUse) isPart()    {}
func (ToolResult) isPart() {}

// AppendTurn appends a turn to the ledger. Safe for concurrent readers via
// Turns while a single writer (the owning agent invocation) appends.
func (l *Ledger) AppendTurn(t Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, t)
}

// Turns returns a snapshot copy of the ledger's turns in order. The returned
// slice is safe to range over without holding any lock.
func (l *Ledger) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len reports the number of turns currently recorded.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// ToolCallCount counts the ToolUse parts recorded across the whole ledger.
func (l *Ledger) ToolCallCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, t := range l.turns {
		for _, p := range t.Parts {
			if _, ok := p.(ToolUse); ok {
				n++
			}
		}
	}
	return n
}

// Add accumulates usage into the receiver in place and returns it for
// chaining at call sites.
func (u *TokenUsage) Add(delta TokenUsage) *TokenUsage {
	u.CacheReadTokens += delta.CacheReadTokens
	u.CacheWriteTokens += delta.CacheWriteTokens
	u.InputTokens += delta.InputTokens
	u.ReasoningTokens += delta.ReasoningTokens
	u.OutputTextTokens += delta.OutputTextTokens
	u.TotalTokens += delta.TotalTokens
	return u
}
