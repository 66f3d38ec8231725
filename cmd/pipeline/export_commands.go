package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"discord-marketing/pipeline/store"
)

func weekDays(weekStart string) []string {
	start, err := time.Parse("2006-01-02", weekStart)
	if err != nil {
		return nil
	}
	days := make([]string, 7)
	for i := 0; i < 7; i++ {
		days[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return days
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored data as JSON",
	}
	cmd.AddCommand(newExportMessagesCommand(ctx))
	cmd.AddCommand(newExportChannelsCommand(ctx))
	cmd.AddCommand(newExportSummaryCommand(ctx))
	return cmd
}

func newExportMessagesCommand(ctx *commandContext) *cobra.Command {
	var channelID string
	var keepOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Export filtered or raw messages for a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			messages, err := rc.Store.GetProcessedMessages(cmd.Context(), "filter", store.ProcessedQuery{
				ChannelID: channelID, KeepOnly: keepOnly, Limit: limit,
			})
			if err != nil {
				return err
			}
			return printJSON(messages)
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id (required)")
	cmd.Flags().BoolVar(&keepOnly, "keep-only", true, "only include messages the filter stage kept")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of messages (0 = unlimited)")
	cmd.MarkFlagRequired("channel")
	return cmd
}

func newExportChannelsCommand(ctx *commandContext) *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Export known channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			channels, err := rc.Store.ListChannels(cmd.Context(), guildID)
			if err != nil {
				return err
			}
			return printJSON(channels)
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "narrow to one guild id")
	return cmd
}

func newExportSummaryCommand(ctx *commandContext) *cobra.Command {
	var channelID string
	var week string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Export the daily summaries stored for a channel's week",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			if channelID == "" || week == "" {
				return fmt.Errorf("--channel and --week are required")
			}

			days := weekDays(week)
			payloads, err := rc.Store.DailySummariesInWeek(cmd.Context(), channelID, days)
			if err != nil {
				return err
			}

			var parsed []json.RawMessage
			for _, p := range payloads {
				parsed = append(parsed, json.RawMessage(p))
			}
			return printJSON(parsed)
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id (required)")
	cmd.Flags().StringVar(&week, "week", "", "week start date, YYYY-MM-DD Monday (required)")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
