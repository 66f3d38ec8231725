package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or initialize the local store",
	}
	cmd.AddCommand(newDBInitCommand(ctx))
	cmd.AddCommand(newDBStatsCommand(ctx))
	cmd.AddCommand(newDBPathCommand(ctx))
	return cmd
}

func newDBInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Open the store, applying any pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			fmt.Printf("store ready at %s\n", rc.Store.Path())
			return nil
		},
	}
}

func newDBPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the store's file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			fmt.Println(rc.Store.Path())
			return nil
		},
	}
}

func newDBStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts and time bounds for the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}
			stats, err := rc.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			rows := [][]string{
				{"guilds", fmt.Sprint(stats.GuildCount)},
				{"channels", fmt.Sprint(stats.ChannelCount)},
				{"messages", fmt.Sprint(stats.MessageCount)},
				{"marketing extracts", fmt.Sprint(stats.ExtractCount)},
				{"file size", stats.FileSizeHuman},
			}
			if stats.MinMessageTime != nil && stats.MaxMessageTime != nil {
				rows = append(rows, []string{"message range", stats.MinMessageTime.Format("2006-01-02") + " to " + stats.MaxMessageTime.Format("2006-01-02")})
			}

			fmt.Println(renderTable([]string{"metric", "value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
