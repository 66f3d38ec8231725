package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"discord-marketing/pipeline/discord"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var full bool
	var channels string
	var limit int
	var dryRun bool
	var daemon bool
	var scanAtStartup bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape Discord channel history into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := ctx.ensure()
			if err != nil {
				return err
			}

			sess, err := discord.Connect(cmd.Context(), rc.Config.Discord.Token)
			if err != nil {
				return err
			}
			defer sess.Close()

			opts := discord.DriveOptions{
				GuildID: rc.Config.Discord.GuildID,
				Full:    full,
				Limit:   limit,
				DelayMs: rc.Config.Scraper.DelayBetweenRequestsMs,
				DryRun:  dryRun,
			}
			if strings.TrimSpace(channels) != "" {
				opts.ChannelNames = strings.Split(channels, ",")
			}

			if !daemon {
				result, err := discord.Drive(cmd.Context(), sess, rc.Store, rc.Log, opts)
				if err != nil {
					return err
				}
				fmt.Printf("scraped %d channels, %d messages\n", result.ChannelsProcessed, result.MessagesProcessed)
				for ch, errMsg := range result.ChannelErrors {
					fmt.Fprintf(os.Stderr, "channel %s: %s\n", ch, errMsg)
				}
				return nil
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := discord.NewScheduler(rc.Log)
			if err := scheduler.Start(sigCtx, sess, rc.Store, opts, scanAtStartup); err != nil {
				return err
			}
			<-sigCtx.Done()
			scheduler.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "ignore stored watermarks and scan from newest")
	cmd.Flags().StringVar(&channels, "channels", "", "comma-separated channel names (default: all readable channels)")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many messages per channel (0 = unlimited)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch but do not persist")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "run the hourly incremental scheduler instead of a single pass")
	cmd.Flags().BoolVar(&scanAtStartup, "scan-at-startup", false, "with --daemon, also run a full pass immediately")

	return cmd
}
