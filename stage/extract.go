package stage

import (
	"context"

	"discord-marketing/pipeline/llm"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
	"discord-marketing/pipeline/validate"
)

// extractorSpec binds one marketing artifact type to its prompt
// placeholder and the type-specific defaults applied when the model
// omits an optional field.
type extractorSpec struct {
	extractType       models.ExtractType
	defaultSentiment  models.Sentiment
	defaultPermission bool
}

var extractors = []extractorSpec{
	{extractType: models.ExtractQuote, defaultSentiment: models.SentimentPositive, defaultPermission: true},
	{extractType: models.ExtractAnnouncement, defaultSentiment: models.SentimentNeutral, defaultPermission: false},
	{extractType: models.ExtractFAQ, defaultSentiment: models.SentimentNeutral, defaultPermission: false},
}

// RunExtractAll runs each of the quote/announcement/faq sub-extractors
// independently against the same candidate set: a failure in one
// never stops the others.
func RunExtractAll(ctx context.Context, rc *runctx.Context, opts Options) (*Result, error) {
	result := newResult()

	messages, err := rc.Store.ExtractCandidates(ctx, opts.Limit)
	if err != nil {
		return result, err
	}
	if len(messages) == 0 {
		return result, nil
	}
	items := enrichWithAuthors(ctx, rc, messages)

	for _, spec := range extractors {
		if err := runExtractor(ctx, rc, opts, spec, items, result); err != nil {
			result.Errors = append(result.Errors, BatchError{Error: err.Error()})
		}
	}
	return result, nil
}

func runExtractor(ctx context.Context, rc *runctx.Context, opts Options, spec extractorSpec, items []candidateItem, result *Result) error {
	if opts.DryRun {
		return nil
	}

	payload := messagePayloads(items, opts.AnonymizeInPrompts)
	promptText, err := rc.Prompts.Render("extract", map[string]any{
		"EXTRACT_TYPE": string(spec.extractType), "MESSAGES": payload,
	})
	if err != nil {
		return err
	}

	var resp validate.ExtractResponse
	if err := rc.LLM.ProcessWithAI(ctx, promptText, llm.CallOptions{
		Model: opts.Model, MaxTokens: opts.MaxTokens, Operation: "extract_" + string(spec.extractType),
	}, &resp); err != nil {
		return err
	}
	if err := validate.Struct(&resp); err != nil {
		return err
	}

	for _, e := range resp.Extracts {
		sentiment := spec.defaultSentiment
		requiresPermission := spec.defaultPermission
		if e.RequiresPermission != nil {
			requiresPermission = *e.RequiresPermission
		}
		relevance := 0.0
		if e.RelevanceScore != nil {
			relevance = *e.RelevanceScore
		}
		sourceID := e.SourceMessageID
		if sourceID == "" {
			sourceID = e.ID
		}

		if err := rc.Store.InsertMarketingExtract(ctx, models.MarketingExtract{
			SourceType: "message", SourceID: sourceID, ExtractType: spec.extractType,
			Content: e.Content, RelevanceScore: relevance, Sentiment: sentiment,
			RequiresPermission: requiresPermission,
		}); err != nil {
			return err
		}
		result.Processed++
		result.ExtractCounts[string(spec.extractType)]++
	}
	return nil
}
