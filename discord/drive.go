package discord

import (
	"context"
	"time"

	"go.uber.org/zap"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/store"
)

// DriveOptions narrows one scrape pass.
type DriveOptions struct {
	GuildID      string
	ChannelNames []string // empty means all readable channels
	Full         bool     // ignore stored watermark, page from newest
	Limit        int
	DelayMs      int
	DryRun       bool
}

// DriveResult summarizes one completed pass.
type DriveResult struct {
	SyncStateID       int64
	ChannelsProcessed int
	MessagesProcessed int64
	ChannelErrors     map[string]string
}

// Drive runs one full scrape pass: open a SyncState row, enumerate
// readable channels, and for each, stream and persist messages,
// advancing the per-channel watermark only on full completion. A
// per-channel error is non-fatal; the pass continues to the next
// channel and the error is recorded. Grounded on the teacher's
// scanner.StartScanning top-level loop.
func Drive(ctx context.Context, sess *Session, st *store.Store, log *zap.SugaredLogger, opts DriveOptions) (DriveResult, error) {
	result := DriveResult{ChannelErrors: map[string]string{}}

	guild, err := sess.Guild(opts.GuildID)
	if err != nil {
		return result, err
	}
	if !opts.DryRun {
		if err := st.UpsertGuild(ctx, guild); err != nil {
			return result, err
		}
	}

	syncType := models.SyncTypeIncremental
	if opts.Full {
		syncType = models.SyncTypeFull
	}
	if len(opts.ChannelNames) == 1 {
		syncType = models.SyncTypeChannel
	}

	var syncID int64
	if !opts.DryRun {
		syncID, err = st.InsertSyncState(ctx, models.SyncState{
			SyncType:  syncType,
			GuildID:   opts.GuildID,
			StartedAt: time.Now().UTC(),
		})
		if err != nil {
			return result, err
		}
		result.SyncStateID = syncID
	}

	channels, err := sess.ListTextChannels(opts.GuildID)
	if err != nil {
		if !opts.DryRun {
			_ = st.CompleteSyncState(ctx, syncID, models.SyncStatusFailed, result.MessagesProcessed, err.Error())
		}
		return result, err
	}
	channels = filterByName(channels, opts.ChannelNames)

	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			if !opts.DryRun {
				_ = st.CompleteSyncState(ctx, syncID, models.SyncStatusFailed, result.MessagesProcessed, "cancelled")
			}
			return result, errkind.Wrap(err, errkind.Cancelled, "scrape pass cancelled")
		}

		count, cursorErr := driveChannel(ctx, sess, st, log, ch, opts)
		result.ChannelsProcessed++
		result.MessagesProcessed += count
		if cursorErr != nil {
			log.Warnw("channel scrape failed, continuing", "channel", ch.Name, "error", cursorErr)
			result.ChannelErrors[ch.ID] = cursorErr.Error()
		}
	}

	if !opts.DryRun {
		if err := st.CompleteSyncState(ctx, syncID, models.SyncStatusCompleted, result.MessagesProcessed, ""); err != nil {
			return result, err
		}
	}
	return result, nil
}

func driveChannel(ctx context.Context, sess *Session, st *store.Store, log *zap.SugaredLogger, ch models.Channel, opts DriveOptions) (int64, error) {
	if !opts.DryRun {
		if err := st.UpsertChannel(ctx, ch); err != nil {
			return 0, err
		}
	}

	after := ""
	if !opts.Full {
		watermark, err := st.ChannelLastScrapedMessageID(ctx, ch.ID)
		if err != nil {
			return 0, err
		}
		after = watermark
	}

	var count int64
	var maxSeen string

	err := sess.FetchMessages(ctx, ch.ID, FetchOptions{After: after, Limit: opts.Limit, DelayMs: opts.DelayMs}, func(b MessageBundle) error {
		if opts.DryRun {
			count++
			if b.Message.ID > maxSeen {
				maxSeen = b.Message.ID
			}
			return nil
		}

		if err := st.UpsertUser(ctx, b.Author); err != nil {
			return err
		}
		if stored, ok, err := st.MessageContent(ctx, b.Message.ID); err != nil {
			return err
		} else if ok && stored != b.Message.Content {
			if err := st.RecordMessageEdit(ctx, models.MessageEdit{
				MessageID:       b.Message.ID,
				GuildID:         opts.GuildID,
				ChannelID:       ch.ID,
				OriginalContent: stored,
				EditedContent:   b.Message.Content,
				EditedAt:        time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		if err := st.UpsertMessage(ctx, b.Message); err != nil {
			return err
		}
		if err := st.ClearMessageChildren(ctx, b.Message.ID); err != nil {
			return err
		}
		for _, e := range b.Embeds {
			if err := st.UpsertEmbed(ctx, e); err != nil {
				return err
			}
		}
		for _, a := range b.Attachments {
			if err := st.UpsertAttachment(ctx, a); err != nil {
				return err
			}
		}
		for _, r := range b.Reactions {
			if err := st.UpsertReaction(ctx, r); err != nil {
				return err
			}
		}

		count++
		if b.Message.ID > maxSeen {
			maxSeen = b.Message.ID
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	if !opts.DryRun && maxSeen != "" {
		if err := st.UpdateChannelLastScraped(ctx, ch.ID, maxSeen, count); err != nil {
			return count, err
		}
	}
	return count, nil
}

func filterByName(channels []models.Channel, names []string) []models.Channel {
	if len(names) == 0 {
		return channels
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []models.Channel
	for _, ch := range channels {
		if want[ch.Name] {
			out = append(out, ch)
		}
	}
	return out
}
