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

// RunFilter processes every message with no filter row yet: the LLM
// decides keep/discard per message, with an optional quality score.
func RunFilter(ctx context.Context, rc *runctx.Context, opts Options) (*Result, error) {
	result := newResult()

	messages, err := rc.Store.GetUnprocessedMessages(ctx, models.StageFilter, store.UnprocessedQuery{
		ChannelID: opts.ChannelID, Start: opts.Start, End: opts.End, Limit: opts.Limit,
	})
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
			if err := processFilterBatch(ctx, rc, opts, idx, batch, result); err != nil {
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

func processFilterBatch(ctx context.Context, rc *runctx.Context, opts Options, idx int, batch []candidateItem, result *Result) error {
	if opts.DryRun {
		return nil
	}

	payload := messagePayloads(batch, opts.AnonymizeInPrompts)
	promptText, err := rc.Prompts.Render("filter", map[string]any{"MESSAGES": payload})
	if err != nil {
		return err
	}

	var resp validate.FilterResponse
	if err := rc.LLM.ProcessWithAI(ctx, promptText, llm.CallOptions{
		Model: opts.Model, MaxTokens: opts.MaxTokens, Operation: "filter",
	}, &resp); err != nil {
		return err
	}
	if err := validate.Struct(&resp); err != nil {
		return err
	}

	for _, d := range resp.Decisions {
		if err := rc.Store.WriteAIProcessing(ctx, store.AIProcessingRow{
			EntityType: models.EntityMessage, EntityID: d.ID, Stage: models.StageFilter,
			Result: d, ModelUsed: opts.Model,
		}); err != nil {
			return err
		}
		result.mutate(func() {
			result.Processed++
			if d.Keep {
				result.Kept++
			} else {
				result.Discarded++
			}
		})
	}
	return nil
}
