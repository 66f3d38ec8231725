// Package budget estimates token costs and packs entities into
// LLM-call-sized batches. Pure functions, no third-party dependency:
// the estimator is a fixed character-based heuristic rather than a
// model-specific tokenizer, so no tokenizer library is wired in here
// (see DESIGN.md).
package budget

import (
	"encoding/json"
	"math"
)

// EstimateTokens returns ceil(len(s)/4), the fixed heuristic spec'd
// for any string payload.
func EstimateTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 4.0))
}

// EstimateTokensJSON returns the token estimate of v's JSON encoding,
// for container payloads (arrays, objects).
func EstimateTokensJSON(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return EstimateTokens(string(b)), nil
}

// Sized is anything CreateBatches can estimate a token cost for.
type Sized interface {
	TokenEstimate() int
}

// Caps bounds one batch.
type Caps struct {
	MaxTokensPerBatch int
	MaxMessagesPerBatch int
}

// CreateBatches packs items into batches in a single greedy pass:
// walking in order, if adding the next item would push the current
// batch past either cap and the current batch is non-empty, the
// current batch is emitted and a new one started. An item already
// larger than the token cap on its own is placed alone in its batch
// rather than looping forever. The concatenation of all batches
// equals the input in order.
func CreateBatches[T Sized](items []T, caps Caps) [][]T {
	if len(items) == 0 {
		return nil
	}

	var batches [][]T
	var current []T
	tokens := 0

	for _, item := range items {
		itemTokens := item.TokenEstimate()

		exceedsTokens := caps.MaxTokensPerBatch > 0 && tokens+itemTokens > caps.MaxTokensPerBatch
		exceedsCount := caps.MaxMessagesPerBatch > 0 && len(current)+1 > caps.MaxMessagesPerBatch

		if len(current) > 0 && (exceedsTokens || exceedsCount) {
			batches = append(batches, current)
			current = nil
			tokens = 0
		}

		current = append(current, item)
		tokens += itemTokens
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Usage is one LLM call's accounted token cost, used by EstimateCost.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Pricing holds per-million-token prices, sourced from config.
type Pricing struct {
	InputPerMToken  float64
	OutputPerMToken float64
}

// EstimateCost computes input-price*in + output-price*out over a set
// of usage records, prices expressed per million tokens.
func EstimateCost(usages []Usage, pricing Pricing) float64 {
	var inTokens, outTokens int
	for _, u := range usages {
		inTokens += u.InputTokens
		outTokens += u.OutputTokens
	}
	return float64(inTokens)/1_000_000*pricing.InputPerMToken + float64(outTokens)/1_000_000*pricing.OutputPerMToken
}
