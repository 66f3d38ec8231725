package store

import (
	"context"
	"encoding/json"
	"time"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/models"
)

// UpsertGuild inserts or updates a Guild row by natural id.
func (s *Store) UpsertGuild(ctx context.Context, g models.Guild) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (id, name, icon_url, member_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			icon_url = excluded.icon_url,
			member_count = excluded.member_count
	`, g.ID, g.Name, g.IconURL, g.MemberCount)
	return errkind.Wrap(err, errkind.Store, "upsert guild")
}

// UpsertChannel inserts or updates a Channel row. last_scraped_message_id
// and last_scraped_at are intentionally not part of this statement:
// they advance only via UpdateChannelLastScraped, after a channel
// completes a scrape pass.
func (s *Store) UpsertChannel(ctx context.Context, c models.Channel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, guild_id, name, type, parent_id, position, topic, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			parent_id = excluded.parent_id,
			position = excluded.position,
			topic = excluded.topic
	`, c.ID, c.GuildID, c.Name, int(c.Type), c.ParentID, c.Position, c.Topic, c.MessageCount)
	return errkind.Wrap(err, errkind.Store, "upsert channel")
}

// UpdateChannelLastScraped advances a channel's resume cursor. Callers
// must only invoke this after a channel's scrape pass completes in
// full: partial progress is never persisted (spec's resume semantics).
func (s *Store) UpdateChannelLastScraped(ctx context.Context, channelID, lastMessageID string, messageCount int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE channels
		SET last_scraped_message_id = ?, last_scraped_at = ?, message_count = message_count + ?
		WHERE id = ?
	`, lastMessageID, time.Now().UTC(), messageCount, channelID)
	return errkind.Wrap(err, errkind.Store, "update channel watermark")
}

// ChannelLastScrapedMessageID returns the stored high-watermark for a
// channel, or "" if the channel has no recorded cursor yet.
func (s *Store) ChannelLastScrapedMessageID(ctx context.Context, channelID string) (string, error) {
	var id *string
	row := s.db.QueryRowContext(ctx, `SELECT last_scraped_message_id FROM channels WHERE id = ?`, channelID)
	if err := row.Scan(&id); err != nil {
		return "", errkind.Wrap(err, errkind.Store, "read channel watermark")
	}
	if id == nil {
		return "", nil
	}
	return *id, nil
}

// DeleteChannel removes a channel and, via ON DELETE CASCADE, all of
// its messages and their embeds/attachments/reactions.
func (s *Store) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, channelID)
	return errkind.Wrap(err, errkind.Store, "delete channel")
}

// UpsertUser inserts or updates a User row by natural id.
func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, global_name, discriminator, avatar_url, is_bot)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			global_name = excluded.global_name,
			discriminator = excluded.discriminator,
			avatar_url = excluded.avatar_url,
			is_bot = excluded.is_bot
	`, u.ID, u.Username, u.GlobalName, u.Discriminator, u.AvatarURL, u.IsBot)
	return errkind.Wrap(err, errkind.Store, "upsert user")
}

// UpsertMessage inserts a Message row, or updates its mutable content
// fields if already present. timestamp is never rewritten on conflict.
// When the upsert updates existing content, the caller is expected to
// have already recorded a MessageEdit row for the diff (see
// RecordMessageEdit); UpsertMessage itself does not diff.
func (s *Store) UpsertMessage(ctx context.Context, m models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, channel_id, author_id, content, clean_content, timestamp,
			edited_timestamp, message_type, reference_id, thread_id,
			has_embeds, has_attachments, reaction_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			clean_content = excluded.clean_content,
			edited_timestamp = excluded.edited_timestamp,
			reference_id = excluded.reference_id,
			thread_id = excluded.thread_id,
			has_embeds = excluded.has_embeds,
			has_attachments = excluded.has_attachments,
			reaction_count = excluded.reaction_count
	`,
		m.ID, m.ChannelID, m.AuthorID, m.Content, m.CleanContent, m.Timestamp,
		m.EditedTimestamp, int(m.MessageType), m.ReferenceID, m.ThreadID,
		m.HasEmbeds, m.HasAttachments, m.ReactionCount,
	)
	return errkind.Wrap(err, errkind.Store, "upsert message")
}

// MessageContent returns the currently stored content for a message,
// used by the scraper to detect edits before overwriting. ok is false
// if the message has never been seen.
func (s *Store) MessageContent(ctx context.Context, messageID string) (content string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT content FROM messages WHERE id = ?`, messageID)
	if scanErr := row.Scan(&content); scanErr != nil {
		if scanErr.Error() == "sql: no rows in result set" {
			return "", false, nil
		}
		return "", false, errkind.Wrap(scanErr, errkind.Store, "read message content")
	}
	return content, true, nil
}

// RecordMessageEdit appends a message_edits row, preserving both the
// original and new content rather than discarding history on upsert.
func (s *Store) RecordMessageEdit(ctx context.Context, e models.MessageEdit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_edits (
			message_id, guild_id, channel_id, original_content, edited_content,
			original_attachments, edited_attachments, edited_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.MessageID, e.GuildID, e.ChannelID, e.OriginalContent, e.EditedContent,
		e.OriginalAttachments, e.EditedAttachments, e.EditedAt)
	return errkind.Wrap(err, errkind.Store, "record message edit")
}

// RecordMessageDeletion appends a message_deletions row. The system
// is poll-only; this is for operator visibility, never acted on to
// remove content retroactively.
func (s *Store) RecordMessageDeletion(ctx context.Context, d models.MessageDeletion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_deletions (message_id, guild_id, channel_id, deleted_at)
		VALUES (?, ?, ?, ?)
	`, d.MessageID, d.GuildID, d.ChannelID, d.DeletedAt)
	return errkind.Wrap(err, errkind.Store, "record message deletion")
}

// UpsertEmbed appends an embed row for a message. Embeds have no
// natural key upstream, so re-scraping a message re-inserts its
// embeds; callers scraping a previously-seen message should delete
// its children first if exact replacement is desired.
func (s *Store) UpsertEmbed(ctx context.Context, e models.Embed) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeds (message_id, title, url, raw_json) VALUES (?, ?, ?, ?)
	`, e.MessageID, e.Title, e.URL, e.RawJSON)
	return errkind.Wrap(err, errkind.Store, "insert embed")
}

// UpsertAttachment appends an attachment row for a message.
func (s *Store) UpsertAttachment(ctx context.Context, a models.Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (message_id, url, filename, size, content_type) VALUES (?, ?, ?, ?, ?)
	`, a.MessageID, a.URL, a.Filename, a.Size, a.ContentType)
	return errkind.Wrap(err, errkind.Store, "insert attachment")
}

// UpsertReaction inserts or updates a reaction count, unique per
// (message_id, emoji).
func (s *Store) UpsertReaction(ctx context.Context, r models.Reaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactions (message_id, emoji, count) VALUES (?, ?, ?)
		ON CONFLICT(message_id, emoji) DO UPDATE SET count = excluded.count
	`, r.MessageID, r.Emoji, r.Count)
	return errkind.Wrap(err, errkind.Store, "upsert reaction")
}

// ClearMessageChildren removes a message's embeds, attachments, and
// reactions so a re-scrape can replace them exactly instead of
// accumulating duplicates. Called before re-upserting an edited
// message's children.
func (s *Store) ClearMessageChildren(ctx context.Context, messageID string) error {
	for _, table := range []string{"embeds", "attachments", "reactions"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE message_id = ?`, messageID); err != nil {
			return errkind.Wrap(err, errkind.Store, "clear message children in "+table)
		}
	}
	return nil
}

// InsertSyncState opens a new in_progress SyncState row and returns its id.
func (s *Store) InsertSyncState(ctx context.Context, st models.SyncState) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_states (sync_type, guild_id, channel_id, started_at, status, messages_processed)
		VALUES (?, ?, ?, ?, ?, 0)
	`, string(st.SyncType), st.GuildID, st.ChannelID, st.StartedAt, string(models.SyncStatusInProgress))
	if err != nil {
		return 0, errkind.Wrap(err, errkind.Store, "insert sync state")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errkind.Wrap(err, errkind.Store, "read sync state id")
	}
	return id, nil
}

// CompleteSyncState marks a SyncState row terminal: completed with a
// count, or failed with an error message. Both transitions are
// terminal; the row is never reopened.
func (s *Store) CompleteSyncState(ctx context.Context, id int64, status models.SyncStatus, messagesProcessed int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_states SET status = ?, completed_at = ?, messages_processed = ?, error_message = ?
		WHERE id = ?
	`, string(status), time.Now().UTC(), messagesProcessed, errMsg, id)
	return errkind.Wrap(err, errkind.Store, "complete sync state")
}

// AIProcessingRow is the upsert payload for the memoization table.
type AIProcessingRow struct {
	EntityType models.EntityType
	EntityID   string
	Stage      models.Stage
	Result     any
	ModelUsed  string
	TokensIn   int
	TokensOut  int
}

// WriteAIProcessing writes the (entityType, entityId, stage) triple,
// replacing any prior row (last-write-wins), marshalling result to
// JSON for the result_json column.
func (s *Store) WriteAIProcessing(ctx context.Context, row AIProcessingRow) error {
	payload, err := json.Marshal(row.Result)
	if err != nil {
		return errkind.Wrap(err, errkind.Validation, "marshal ai_processing result")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_processing (entity_type, entity_id, stage, result_json, model_used, tokens_in, tokens_out, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, stage) DO UPDATE SET
			result_json = excluded.result_json,
			model_used = excluded.model_used,
			tokens_in = excluded.tokens_in,
			tokens_out = excluded.tokens_out,
			processed_at = excluded.processed_at
	`, string(row.EntityType), row.EntityID, string(row.Stage), string(payload), row.ModelUsed, row.TokensIn, row.TokensOut, time.Now().UTC())
	return errkind.Wrap(err, errkind.Store, "write ai_processing row")
}

// ShouldProcess implements the memoization gate: true if no row
// exists for (entityType, entityId, stage), or the existing row is
// older than reprocessAfterDays, or force is set.
func (s *Store) ShouldProcess(ctx context.Context, entityType models.EntityType, entityID string, stage models.Stage, force bool, reprocessAfterDays int) (bool, error) {
	if force {
		return true, nil
	}
	var processedAt time.Time
	row := s.db.QueryRowContext(ctx, `
		SELECT processed_at FROM ai_processing WHERE entity_type = ? AND entity_id = ? AND stage = ?
	`, string(entityType), entityID, string(stage))
	if err := row.Scan(&processedAt); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return true, nil
		}
		return false, errkind.Wrap(err, errkind.Store, "read ai_processing row")
	}
	if reprocessAfterDays <= 0 {
		return false, nil
	}
	age := time.Since(processedAt)
	return age > time.Duration(reprocessAfterDays)*24*time.Hour, nil
}

// InsertMarketingExtract appends a typed artifact row; extracts have
// no natural key, so this is always an insert, never an upsert.
func (s *Store) InsertMarketingExtract(ctx context.Context, e models.MarketingExtract) error {
	topics, err := json.Marshal(e.Topics)
	if err != nil {
		return errkind.Wrap(err, errkind.Validation, "marshal extract topics")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO marketing_extracts (
			source_type, source_id, extract_type, title, content, formatted_content,
			relevance_score, sentiment, topics, requires_permission, permission_granted, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.SourceType, e.SourceID, string(e.ExtractType), e.Title, e.Content, e.FormattedContent,
		e.RelevanceScore, string(e.Sentiment), string(topics), e.RequiresPermission, e.PermissionGranted, time.Now().UTC())
	return errkind.Wrap(err, errkind.Store, "insert marketing extract")
}

// ExtractsMissingFormat returns marketing_extracts rows with no
// formatted_content yet, for the format stage.
func (s *Store) ExtractsMissingFormat(ctx context.Context, limit int) ([]models.MarketingExtract, error) {
	query := `
		SELECT id, source_type, source_id, extract_type, title, content, formatted_content,
		       relevance_score, sentiment, topics, requires_permission, permission_granted, created_at
		FROM marketing_extracts
		WHERE formatted_content IS NULL OR formatted_content = ''
		ORDER BY created_at ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query extracts missing format")
	}
	defer rows.Close()

	var out []models.MarketingExtract
	for rows.Next() {
		var e models.MarketingExtract
		var topicsJSON string
		if err := rows.Scan(
			&e.ID, &e.SourceType, &e.SourceID, &e.ExtractType, &e.Title, &e.Content, &e.FormattedContent,
			&e.RelevanceScore, &e.Sentiment, &topicsJSON, &e.RequiresPermission, &e.PermissionGranted, &e.CreatedAt,
		); err != nil {
			return nil, errkind.Wrap(err, errkind.Store, "scan extract row")
		}
		if topicsJSON != "" {
			_ = json.Unmarshal([]byte(topicsJSON), &e.Topics)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateExtractFormattedContent sets one extract's rendered,
// publish-ready text.
func (s *Store) UpdateExtractFormattedContent(ctx context.Context, id int64, formatted string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE marketing_extracts SET formatted_content = ? WHERE id = ?`, formatted, id)
	return errkind.Wrap(err, errkind.Store, "update extract formatted content")
}
