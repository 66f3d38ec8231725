// Package stage runs the dependency-ordered pipeline: filter ->
// categorize -> summarize -> extract -> format. Each stage selects
// candidates from the store, optionally anonymizes, batches via
// llm/budget, calls the LLM driver, validates, and writes memoized
// results back. Filter and categorize dispatch their batches through
// llm.RunBounded, capped at Options.Workers in-flight calls.
package stage

import (
	"sync"
	"time"

	"discord-marketing/pipeline/llm/budget"
	"discord-marketing/pipeline/models"
)

// Options narrows one stage invocation.
type Options struct {
	GuildID   string
	ChannelID string
	Start     *time.Time
	End       *time.Time
	Limit     int
	Force     bool
	DryRun    bool

	BatchSize          int
	MaxTokensPerBatch  int
	MaxTokens          int
	Workers            int
	ReprocessAfterDays int
	AnonymizeInPrompts bool

	Model string
}

// BatchError records one failed batch: the call, parse, or validation
// error, the batch's input ids, and its index in dispatch order.
type BatchError struct {
	BatchIndex int
	Error      string
	IDs        []string
}

// Result aggregates one stage run's outcome. Batches dispatch
// concurrently (see RunFilter/RunCategorize), so every mutation goes
// through mutate to stay race-free.
type Result struct {
	mu sync.Mutex

	Processed int
	Kept      int
	Discarded int

	TopicCounts     map[string]int
	SentimentCounts map[string]int
	RelevanceCounts map[string]int
	ExtractCounts   map[string]int

	Errors []BatchError
}

func newResult() *Result {
	return &Result{
		TopicCounts:     make(map[string]int),
		SentimentCounts: make(map[string]int),
		RelevanceCounts: make(map[string]int),
		ExtractCounts:   make(map[string]int),
	}
}

// mutate runs fn under the result's lock, for the concurrent batch
// dispatchers in RunFilter and RunCategorize.
func (r *Result) mutate(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// candidateItem adapts a message+author pair for budget.CreateBatches.
type candidateItem struct {
	Message models.Message
	Author  models.User
}

func (c candidateItem) TokenEstimate() int {
	return budget.EstimateTokens(c.Message.Content) + 10
}

func caps(opts Options) budget.Caps {
	return budget.Caps{MaxTokensPerBatch: opts.MaxTokensPerBatch, MaxMessagesPerBatch: opts.BatchSize}
}
