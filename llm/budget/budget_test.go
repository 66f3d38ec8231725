package budget_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/llm/budget"
)

type fixedItem struct {
	id     string
	tokens int
}

func (f fixedItem) TokenEstimate() int { return f.tokens }

func TestEstimateTokensFormula(t *testing.T) {
	cases := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"abcdefgh", 2},
	}
	for _, c := range cases {
		require.Equal(t, c.want, budget.EstimateTokens(c.s), "input %q", c.s)
	}
}

func TestCreateBatchesTokenCapBoundary(t *testing.T) {
	items := make([]fixedItem, 250)
	for i := range items {
		items[i] = fixedItem{id: fmt.Sprintf("m%d", i), tokens: 40}
	}

	batches := budget.CreateBatches(items, budget.Caps{MaxTokensPerBatch: 1000, MaxMessagesPerBatch: 50})

	require.Len(t, batches, 10)
	for _, b := range batches {
		require.Len(t, b, 25)
	}

	var flattened []fixedItem
	for _, b := range batches {
		flattened = append(flattened, b...)
	}
	require.Equal(t, items, flattened)
}

func TestCreateBatchesOversizedItemAlone(t *testing.T) {
	items := []fixedItem{
		{id: "small1", tokens: 10},
		{id: "huge", tokens: 5000},
		{id: "small2", tokens: 10},
	}
	batches := budget.CreateBatches(items, budget.Caps{MaxTokensPerBatch: 1000, MaxMessagesPerBatch: 50})

	require.Len(t, batches, 3)
	require.Equal(t, []fixedItem{{id: "small1", tokens: 10}}, batches[0])
	require.Equal(t, []fixedItem{{id: "huge", tokens: 5000}}, batches[1])
	require.Equal(t, []fixedItem{{id: "small2", tokens: 10}}, batches[2])
}

func TestCreateBatchesMessageCountCap(t *testing.T) {
	items := make([]fixedItem, 5)
	for i := range items {
		items[i] = fixedItem{id: fmt.Sprintf("m%d", i), tokens: 1}
	}
	batches := budget.CreateBatches(items, budget.Caps{MaxTokensPerBatch: 0, MaxMessagesPerBatch: 2})
	require.Len(t, batches, 3)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 2)
	require.Len(t, batches[2], 1)
}

func TestEstimateCost(t *testing.T) {
	usages := []budget.Usage{
		{InputTokens: 1_000_000, OutputTokens: 500_000},
	}
	cost := budget.EstimateCost(usages, budget.Pricing{InputPerMToken: 3.0, OutputPerMToken: 15.0})
	require.InDelta(t, 3.0+7.5, cost, 0.0001)
}
