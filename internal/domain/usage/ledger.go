package usage

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"agent-server/internal/domain/model"
)

// Stats is a point-in-time copy of one profile's accumulated usage.
type Stats struct {
	TotalRequests     int64           `json:"total_requests"`
	TotalTokensInput  int64           `json:"total_tokens_input"`
	TotalTokensOutput int64           `json:"total_tokens_output"`
	TotalCostUSD      decimal.Decimal `json:"total_cost_usd"`
	AverageLatencyMS  float64         `json:"average_latency_ms"`
	ErrorCount        int64           `json:"error_count"`
}

// ErrorRate returns errors relative to completed requests.
func (s Stats) ErrorRate() float64 {
	requests := s.TotalRequests
	if requests < 1 {
		requests = 1
	}
	return float64(s.ErrorCount) / float64(requests)
}

// entry guards one profile's mutable counters. Entries for different
// profiles are fully independent; each record call on the same profile is a
// single atomic transition under the entry lock, so token counts and cost
// can never be observed out of step.
type entry struct {
	mu    sync.Mutex
	stats Stats
}

// Ledger tracks per-profile usage, latency, cost, and errors under
// concurrent access from many in-flight requests.
type Ledger struct {
	mu      sync.RWMutex
	entries map[model.ModelType]*entry
}

func NewLedger(registry *model.Registry) *Ledger {
	entries := make(map[model.ModelType]*entry)
	for _, modelType := range registry.Types() {
		entries[modelType] = &entry{stats: Stats{TotalCostUSD: decimal.Zero}}
	}
	return &Ledger{entries: entries}
}

// RecordSuccess accounts one completed call: request count, token totals,
// cost derived from the profile's pricing, and the running mean latency.
func (l *Ledger) RecordSuccess(profile model.Profile, inputTokens, outputTokens int, latency time.Duration) {
	e := l.entryFor(profile.Type)

	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.stats
	s.TotalRequests++
	s.TotalTokensInput += int64(inputTokens)
	s.TotalTokensOutput += int64(outputTokens)
	s.TotalCostUSD = s.TotalCostUSD.Add(profile.Cost(inputTokens, outputTokens))

	latencyMS := float64(latency) / float64(time.Millisecond)
	s.AverageLatencyMS += (latencyMS - s.AverageLatencyMS) / float64(s.TotalRequests)
}

// RecordFailure accounts one failed call. No token or cost mutation happens
// for failures.
func (l *Ledger) RecordFailure(modelType model.ModelType) {
	e := l.entryFor(modelType)

	e.mu.Lock()
	e.stats.ErrorCount++
	e.mu.Unlock()
}

// Snapshot returns a consistent copy of the profile's stats. The second
// return is false for model types the ledger does not track.
func (l *Ledger) Snapshot(modelType model.ModelType) (Stats, bool) {
	l.mu.RLock()
	e, ok := l.entries[modelType]
	l.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats, true
}

// SnapshotAll returns consistent copies for every tracked profile.
func (l *Ledger) SnapshotAll() map[model.ModelType]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[model.ModelType]Stats, len(l.entries))
	for modelType, e := range l.entries {
		e.mu.Lock()
		out[modelType] = e.stats
		e.mu.Unlock()
	}
	return out
}

func (l *Ledger) entryFor(modelType model.ModelType) *entry {
	l.mu.RLock()
	e, ok := l.entries[modelType]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[modelType]; ok {
		return e
	}
	e = &entry{stats: Stats{TotalCostUSD: decimal.Zero}}
	l.entries[modelType] = e
	return e
}
