package stage

import (
	"context"

	"discord-marketing/pipeline/llm"
	"discord-marketing/pipeline/llm/budget"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
	"discord-marketing/pipeline/store"
	"discord-marketing/pipeline/validate"
)

// RunCategorize processes messages with filter.keep==1 and no
// categorize row yet: the LLM assigns topic, sentiment, urgency, and
// marketing relevance per message.
func RunCategorize(ctx context.Context, rc *runctx.Context, opts Options) (*Result, error) {
	result := newResult()

	messages, err := rc.Store.CategorizeCandidates(ctx, opts.Limit)
	if err != nil {
		return result, err
	}
	if len(messages) == 0 {
		return result, nil
	}

	items := enrichWithAuthors(ctx, rc, messages)
	batches := budget.CreateBatches(items, caps(opts))

	fns := make([]func() error, len(batches))
	for idx, batch := range batches {
		idx, batch := idx, batch
		fns[idx] = func() error {
			if err := processCategorizeBatch(ctx, rc, opts, batch, result); err != nil {
				result.mutate(func() {
					result.Errors = append(result.Errors, BatchError{BatchIndex: idx, Error: err.Error(), IDs: batchIDs(batch)})
				})
			}
			return nil
		}
	}
	_ = llm.RunBounded(opts.Workers, fns)
	return result, nil
}

func processCategorizeBatch(ctx context.Context, rc *runctx.Context, opts Options, batch []candidateItem, result *Result) error {
	if opts.DryRun {
		return nil
	}

	payload := messagePayloads(batch, opts.AnonymizeInPrompts)
	promptText, err := rc.Prompts.Render("categorize", map[string]any{"MESSAGES": payload})
	if err != nil {
		return err
	}

	var resp validate.CategorizeResponse
	if err := rc.LLM.ProcessWithAI(ctx, promptText, llm.CallOptions{
		Model: opts.Model, MaxTokens: opts.MaxTokens, Operation: "categorize",
	}, &resp); err != nil {
		return err
	}
	if err := validate.Struct(&resp); err != nil {
		return err
	}

	for _, c := range resp.Categorizations {
		if err := rc.Store.WriteAIProcessing(ctx, store.AIProcessingRow{
			EntityType: models.EntityMessage, EntityID: c.ID, Stage: models.StageCategorize,
			Result: c, ModelUsed: opts.Model,
		}); err != nil {
			return err
		}
		result.mutate(func() {
			result.Processed++
			result.TopicCounts[c.PrimaryTopic]++
			result.SentimentCounts[c.Sentiment]++
			result.RelevanceCounts[c.MarketingRelevance]++
		})
	}
	return nil
}
