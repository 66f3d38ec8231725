package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"discord-marketing/pipeline/llm/budget"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
	"discord-marketing/pipeline/stage"
	"discord-marketing/pipeline/store"
	"discord-marketing/pipeline/usage"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run AI pipeline stages over stored messages",
	}
	cmd.AddCommand(newProcessRunCommand(ctx))
	cmd.AddCommand(newProcessStatusCommand(ctx))
	cmd.AddCommand(newProcessResetCommand(ctx))
	return cmd
}

var allStages = []models.Stage{
	models.StageFilter, models.StageCategorize, models.StageSummarize, models.StageExtract, models.StageFormat,
}

func newProcessRunCommand(ctx *commandContext) *cobra.Command {
	var stageName string
	var all bool
	var channelID string
	var limit int
	var force bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one stage, or every enabled stage in order with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			opts := stageOptions(rc, channelID, limit, force, dryRun)
			runCtx := usage.WithTracker(cmd.Context(), rc.Usage)

			if all {
				enabled := enabledStages(rc)
				results := stage.RunAll(runCtx, rc, enabled, opts)
				for _, st := range allStages {
					if res, ok := results[st]; ok {
						printStageResult(string(st), res)
					}
				}
				printUsage(rc)
				return nil
			}

			if stageName == "" {
				return fmt.Errorf("--stage is required unless --all is set")
			}
			result, err := stage.Run(runCtx, rc, models.Stage(stageName), opts)
			if err != nil {
				return err
			}
			printStageResult(stageName, result)
			printUsage(rc)
			return nil
		},
	}

	cmd.Flags().StringVar(&stageName, "stage", "", "filter|categorize|summarize|extract|format")
	cmd.Flags().BoolVar(&all, "all", false, "run every enabled stage in dependency order")
	cmd.Flags().StringVar(&channelID, "channel", "", "narrow to one channel id")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of candidates (0 = unlimited)")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess even if a memoized result exists")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "select candidates and render prompts without calling the model")

	return cmd
}

func newProcessStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many messages are pending at each stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			var rows [][]string
			for _, st := range allStages {
				count := pendingCount(cmd, rc, st)
				rows = append(rows, []string{string(st), fmt.Sprint(count)})
			}
			fmt.Println(renderTable([]string{"stage", "pending"}, rows, []columnAlignment{alignLeft, alignRight}))
			printUsage(rc)
			return nil
		},
	}
}

func pendingCount(cmd *cobra.Command, rc *runctx.Context, st models.Stage) int {
	switch st {
	case models.StageFilter:
		msgs, err := rc.Store.GetUnprocessedMessages(cmd.Context(), models.StageFilter, store.UnprocessedQuery{})
		if err != nil {
			return -1
		}
		return len(msgs)
	case models.StageCategorize:
		msgs, err := rc.Store.CategorizeCandidates(cmd.Context(), 0)
		if err != nil {
			return -1
		}
		return len(msgs)
	case models.StageExtract:
		msgs, err := rc.Store.ExtractCandidates(cmd.Context(), 0)
		if err != nil {
			return -1
		}
		return len(msgs)
	default:
		return -1
	}
}

func newProcessResetCommand(ctx *commandContext) *cobra.Command {
	var stageName string
	var entityID string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a memoized ai_processing row so it will be reprocessed",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			if stageName == "" || entityID == "" {
				return fmt.Errorf("--stage and --entity are required")
			}
			_, err = rc.Store.ExecContext(cmd.Context(), `DELETE FROM ai_processing WHERE stage = ? AND entity_id = ?`, stageName, entityID)
			return err
		},
	}
	cmd.Flags().StringVar(&stageName, "stage", "", "stage name (required)")
	cmd.Flags().StringVar(&entityID, "entity", "", "entity id (required)")
	return cmd
}

func stageOptions(rc *runctx.Context, channelID string, limit int, force, dryRun bool) stage.Options {
	return stage.Options{
		GuildID:            rc.Config.Discord.GuildID,
		ChannelID:          channelID,
		Limit:              limit,
		Force:              force,
		DryRun:             dryRun,
		BatchSize:          rc.Config.AI.BatchSize,
		MaxTokensPerBatch:  rc.Config.AI.MaxTokensPerBatch,
		MaxTokens:          rc.Config.AI.MaxTokens,
		Workers:            rc.Config.AI.Workers,
		ReprocessAfterDays: rc.Config.AI.ReprocessAfterDays,
		AnonymizeInPrompts: rc.Config.Privacy.AnonymizeInPrompts,
		Model:              rc.Config.AI.Model,
	}
}

func enabledStages(rc *runctx.Context) map[string]bool {
	enabled := make(map[string]bool, len(allStages))
	for _, st := range allStages {
		cfg, ok := rc.Config.AI.Stages[string(st)]
		enabled[string(st)] = !ok || cfg.Enabled
	}
	return enabled
}

// printUsage renders the run's accumulated token usage and estimated
// cost. rc.Usage only accumulates within this process invocation, so
// "process status" run on its own (no preceding "process run" in the
// same invocation) shows zero rows.
func printUsage(rc *runctx.Context) {
	byOp := rc.Usage.ByOperation()
	if len(byOp) == 0 {
		return
	}

	var rows [][]string
	var usages []budget.Usage
	for _, op := range []string{"filter", "categorize", "summarize", "extract", "format"} {
		rec, ok := byOp[op]
		if !ok {
			continue
		}
		rows = append(rows, []string{op, fmt.Sprint(rec.InTokens), fmt.Sprint(rec.OutTokens)})
		usages = append(usages, budget.Usage{InputTokens: rec.InTokens, OutputTokens: rec.OutTokens})
	}

	inTokens, outTokens := rc.Usage.Totals()
	rows = append(rows, []string{"total", fmt.Sprint(inTokens), fmt.Sprint(outTokens)})

	fmt.Println(renderTable([]string{"operation", "tokens in", "tokens out"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))

	pricing := budget.Pricing{InputPerMToken: rc.Config.AI.Pricing.InputPerMToken, OutputPerMToken: rc.Config.AI.Pricing.OutputPerMToken}
	cost := budget.EstimateCost(usages, pricing)
	fmt.Printf("estimated cost: $%.4f\n", cost)
}

func printStageResult(name string, res *stage.Result) {
	fmt.Printf("%s: processed=%d kept=%d discarded=%d errors=%d\n", name, res.Processed, res.Kept, res.Discarded, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Printf("  batch %d: %s\n", e.BatchIndex, e.Error)
	}
}
