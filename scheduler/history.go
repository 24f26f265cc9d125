package scheduler

import (
	"sync"
	"time"

	"github.com/agentcore/agentcore/transcript"
)

// historyEntry is the rolling statistic recorded for one completed agent
// invocation, keyed by spec name, used by the cache-watermark decision for
// the next invocation of the same spec.
type historyEntry struct {
	toolCallCount int
	meanInterval  time.Duration
}

// specHistory tracks the last five completed invocations per agent spec
// name. The window is small and append/trim is O(1) amortized, so a plain
// mutex-guarded slice is simpler than anything fancier here.
type specHistory struct {
	mu      sync.Mutex
	byAgent map[string][]historyEntry
}

func newSpecHistory() *specHistory {
	return &specHistory{byAgent: make(map[string][]historyEntry)}
}

// record appends a completed invocation's stats for specName, keeping only
// the most recent five.
func (h *specHistory) record(specName string, e historyEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := append(h.byAgent[specName], e)
	if len(entries) > 5 {
		entries = entries[len(entries)-5:]
	}
	h.byAgent[specName] = entries
}

// average reports the mean tool-call count and mean inter-tool-call
// interval across the recorded window, and whether any history exists.
func (h *specHistory) average(specName string) (avgToolCalls float64, avgInterval time.Duration, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.byAgent[specName]
	if len(entries) == 0 {
		return 0, 0, false
	}
	var totalCalls int
	var totalInterval time.Duration
	for _, e := range entries {
		totalCalls += e.toolCallCount
		totalInterval += e.meanInterval
	}
	n := float64(len(entries))
	return float64(totalCalls) / n, time.Duration(float64(totalInterval) / n), true
}

// decideCachePolicy implements the frozen-once cache-watermark rule: no
// tools declared -> none; only non-branching leaf tools and no
// human-in-loop tool -> 5m; otherwise consult history -> 1hr when the
// average tool-call count exceeds one and the average inter-tool-call
// interval is under an hour, else none.
func decideCachePolicy(declaredToolCount int, onlyLeafToolsNoHumanInLoop bool, h *specHistory, specName string) transcript.CachePolicy {
	if declaredToolCount == 0 {
		return transcript.CacheNone
	}
	if onlyLeafToolsNoHumanInLoop {
		return transcript.Cache5m
	}
	avgCalls, avgInterval, ok := h.average(specName)
	if ok && avgCalls > 1 && avgInterval < time.Hour {
		return transcript.Cache1hr
	}
	return transcript.CacheNone
}
