// Package usage tracks LLM token consumption across a run. Grounded
// on theRebelliousNerd-codenerd's internal/usage/usage_tracker.go
// context-scoped tracker, generalized from per-workspace JSON
// persistence to in-memory aggregation surfaced by process status and
// EstimateCost.
package usage

import (
	"context"
	"sync"
)

// Record is one tracked call's token cost.
type Record struct {
	Model     string
	Provider  string
	Operation string
	InTokens  int
	OutTokens int
}

// Tracker accumulates Records. Safe for concurrent use; callers
// dispatching batches concurrently share one Tracker instance.
type Tracker struct {
	mu      sync.Mutex
	records []Record
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

type trackerKey struct{}

// WithTracker returns a context carrying tr, retrievable by FromContext.
func WithTracker(ctx context.Context, tr *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, tr)
}

// FromContext returns the Tracker stored by WithTracker, or nil.
func FromContext(ctx context.Context) *Tracker {
	tr, _ := ctx.Value(trackerKey{}).(*Tracker)
	return tr
}

// Track records one call's usage. A nil receiver is a safe no-op, so
// callers without a configured tracker need no nil check.
func (t *Tracker) Track(ctx context.Context, model, provider string, inTokens, outTokens int, operation string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, Record{
		Model: model, Provider: provider, Operation: operation,
		InTokens: inTokens, OutTokens: outTokens,
	})
}

// Records returns a snapshot copy of all tracked records.
func (t *Tracker) Records() []Record {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Totals sums input/output tokens across all tracked records.
func (t *Tracker) Totals() (inTokens, outTokens int) {
	if t == nil {
		return 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		inTokens += r.InTokens
		outTokens += r.OutTokens
	}
	return inTokens, outTokens
}

// ByOperation sums tokens grouped by operation name, for the
// process status CLI breakdown.
func (t *Tracker) ByOperation() map[string]Record {
	out := make(map[string]Record)
	if t == nil {
		return out
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		agg := out[r.Operation]
		agg.Operation = r.Operation
		agg.Model = r.Model
		agg.Provider = r.Provider
		agg.InTokens += r.InTokens
		agg.OutTokens += r.OutTokens
		out[r.Operation] = agg
	}
	return out
}
