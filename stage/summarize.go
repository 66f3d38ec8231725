package stage

import (
	"context"
	"time"

	"discord-marketing/pipeline/llm"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
	"discord-marketing/pipeline/store"
	"discord-marketing/pipeline/validate"
)

// RunSummarizeAll runs the daily summarizer for every channel with
// keep=true messages, then the weekly roll-up, for the date/window
// implied by opts.Start/opts.End (defaulting to "yesterday" and the
// week containing it when unset).
func RunSummarizeAll(ctx context.Context, rc *runctx.Context, opts Options) (*Result, error) {
	result := newResult()

	date := opts.Start
	if date == nil {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		d := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
		date = &d
	}

	channels := []string{opts.ChannelID}
	if opts.ChannelID == "" {
		all, err := rc.Store.DistinctChannelIDs(ctx)
		if err != nil {
			return result, err
		}
		channels = all
	}

	for _, channelID := range channels {
		if err := runDailySummary(ctx, rc, opts, channelID, *date, result); err != nil {
			result.Errors = append(result.Errors, BatchError{Error: err.Error(), IDs: []string{channelID}})
		}
	}

	if err := runWeeklySummary(ctx, rc, opts, *date, result); err != nil {
		result.Errors = append(result.Errors, BatchError{Error: err.Error()})
	}

	return result, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// runDailySummary summarizes one channel-day, short-circuiting if a
// daily_summary row keyed channelId:date already exists (unless force).
func runDailySummary(ctx context.Context, rc *runctx.Context, opts Options, channelID string, date time.Time, result *Result) error {
	entityID := store.DailySummaryEntityID(channelID, dateKey(date))

	should, err := rc.Store.ShouldProcess(ctx, models.EntityDailySummary, entityID, models.StageSummarize, opts.Force, opts.ReprocessAfterDays)
	if err != nil {
		return err
	}
	if !should {
		return nil
	}

	start := date
	end := date.Add(24 * time.Hour)
	messages, err := rc.Store.MessagesInRange(ctx, channelID, start, end)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	if opts.DryRun {
		return nil
	}

	items := enrichWithAuthors(ctx, rc, messages)
	payload := messagePayloads(items, opts.AnonymizeInPrompts)

	promptText, err := rc.Prompts.Render("summarize_daily", map[string]any{
		"CHANNEL": channelID, "DATE": dateKey(date), "MESSAGES": payload,
	})
	if err != nil {
		return err
	}

	var resp validate.SummarizeResponse
	if err := rc.LLM.ProcessWithAI(ctx, promptText, llm.CallOptions{
		Model: opts.Model, MaxTokens: opts.MaxTokens, Operation: "summarize_daily",
	}, &resp); err != nil {
		return err
	}
	if err := validate.Struct(&resp); err != nil {
		return err
	}

	if err := rc.Store.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityDailySummary, EntityID: entityID, Stage: models.StageSummarize,
		Result: resp.Summary, ModelUsed: opts.Model,
	}); err != nil {
		return err
	}
	result.Processed++
	return nil
}

// runWeeklySummary aggregates a guild's daily summaries for the week
// containing `date` (Monday start) into one guild-level summary keyed
// on the dedicated (guild_id, week_start, channel_id) composite id.
func runWeeklySummary(ctx context.Context, rc *runctx.Context, opts Options, date time.Time, result *Result) error {
	weekStart := mondayOf(date)
	days := make([]string, 7)
	for i := 0; i < 7; i++ {
		days[i] = dateKey(weekStart.AddDate(0, 0, i))
	}

	channels := []string{opts.ChannelID}
	if opts.ChannelID == "" {
		all, err := rc.Store.DistinctChannelIDs(ctx)
		if err != nil {
			return err
		}
		channels = all
	}

	for _, channelID := range channels {
		entityID := store.WeeklySummaryEntityID(opts.GuildID, dateKey(weekStart), channelID)

		should, err := rc.Store.ShouldProcess(ctx, models.EntityWeeklySummary, entityID, models.StageSummarize, opts.Force, opts.ReprocessAfterDays)
		if err != nil {
			return err
		}
		if !should {
			continue
		}

		summaries, err := rc.Store.DailySummariesInWeek(ctx, channelID, days)
		if err != nil {
			return err
		}
		if len(summaries) == 0 || opts.DryRun {
			continue
		}

		promptText, err := rc.Prompts.Render("summarize_weekly", map[string]any{
			"WEEK_START": dateKey(weekStart), "SUMMARIES": summaries,
		})
		if err != nil {
			return err
		}

		var resp validate.SummarizeResponse
		if err := rc.LLM.ProcessWithAI(ctx, promptText, llm.CallOptions{
			Model: opts.Model, MaxTokens: opts.MaxTokens, Operation: "summarize_weekly",
		}, &resp); err != nil {
			return err
		}
		if err := validate.Struct(&resp); err != nil {
			return err
		}

		if err := rc.Store.WriteAIProcessing(ctx, store.AIProcessingRow{
			EntityType: models.EntityWeeklySummary, EntityID: entityID, Stage: models.StageSummarize,
			Result: resp.Summary, ModelUsed: opts.Model,
		}); err != nil {
			return err
		}
		result.Processed++
	}
	return nil
}

func mondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	// time.Sunday == 0; shift so Monday is the start of week.
	offset := (weekday + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
}
