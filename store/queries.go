package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/models"
)

// UnprocessedQuery narrows getUnprocessedMessages.
type UnprocessedQuery struct {
	ChannelID string
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// GetUnprocessedMessages returns messages with no AIProcessing row for
// stage, ordered by timestamp ascending.
func (s *Store) GetUnprocessedMessages(ctx context.Context, stage models.Stage, q UnprocessedQuery) ([]models.Message, error) {
	clauses := []string{"ap.entity_id IS NULL"}
	args := []any{string(stage)}
	if q.ChannelID != "" {
		clauses = append(clauses, "m.channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if q.Start != nil {
		clauses = append(clauses, "m.timestamp >= ?")
		args = append(args, *q.Start)
	}
	if q.End != nil {
		clauses = append(clauses, "m.timestamp < ?")
		args = append(args, *q.End)
	}

	query := `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.clean_content, m.timestamp,
		       m.edited_timestamp, m.message_type, m.reference_id, m.thread_id,
		       m.has_embeds, m.has_attachments, m.reaction_count
		FROM messages m
		LEFT JOIN ai_processing ap ON ap.entity_type = ? AND ap.entity_id = m.id AND ap.stage = ?
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY m.timestamp ASC
	`
	args = append([]any{string(models.EntityMessage)}, args...)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query unprocessed messages")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ProcessedQuery narrows getProcessedMessages.
type ProcessedQuery struct {
	ChannelID string
	KeepOnly  bool
	Limit     int
}

// GetProcessedMessages returns messages joined to their AIProcessing
// row for stage. When KeepOnly is set, the keep predicate is applied
// as a WHERE clause evaluated after the join, never substituted into
// the join condition itself.
func (s *Store) GetProcessedMessages(ctx context.Context, stage models.Stage, q ProcessedQuery) ([]models.Message, error) {
	query := `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.clean_content, m.timestamp,
		       m.edited_timestamp, m.message_type, m.reference_id, m.thread_id,
		       m.has_embeds, m.has_attachments, m.reaction_count
		FROM messages m
		JOIN ai_processing ap ON ap.entity_type = ? AND ap.entity_id = m.id AND ap.stage = ?
	`
	args := []any{string(models.EntityMessage), string(stage)}

	var where []string
	if q.ChannelID != "" {
		where = append(where, "m.channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if q.KeepOnly {
		where = append(where, "json_extract(ap.result_json, '$.keep') = 1")
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	query += ` ORDER BY m.timestamp ASC`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query processed messages")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CategorizeCandidates returns messages with filter.keep == 1 and no
// categorize row yet, ordered by timestamp ascending.
func (s *Store) CategorizeCandidates(ctx context.Context, limit int) ([]models.Message, error) {
	query := `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.clean_content, m.timestamp,
		       m.edited_timestamp, m.message_type, m.reference_id, m.thread_id,
		       m.has_embeds, m.has_attachments, m.reaction_count
		FROM messages m
		JOIN ai_processing f ON f.entity_type = ? AND f.entity_id = m.id AND f.stage = ?
		LEFT JOIN ai_processing c ON c.entity_type = ? AND c.entity_id = m.id AND c.stage = ?
		WHERE json_extract(f.result_json, '$.keep') = 1
		  AND c.entity_id IS NULL
		ORDER BY m.timestamp ASC
	`
	args := []any{
		string(models.EntityMessage), string(models.StageFilter),
		string(models.EntityMessage), string(models.StageCategorize),
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query categorize candidates")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DistinctChannelIDs returns every channel id that has at least one
// keep=true message, used by the daily summarizer to enumerate
// candidates without the caller naming channels up front.
func (s *Store) DistinctChannelIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT m.channel_id
		FROM messages m
		JOIN ai_processing f ON f.entity_type = ? AND f.entity_id = m.id AND f.stage = ?
		WHERE json_extract(f.result_json, '$.keep') = 1
	`, string(models.EntityMessage), string(models.StageFilter))
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query distinct channels")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errkind.Wrap(err, errkind.Store, "scan channel id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DailySummaryEntityID encodes the channel-day composite key used by
// the memoization table for daily summaries.
func DailySummaryEntityID(channelID, date string) string {
	return channelID + ":" + date
}

// WeeklySummaryEntityID encodes the dedicated (guild_id, week_start,
// channel_id) composite key decided for weekly summaries, avoiding a
// substring match on the daily key's date portion.
func WeeklySummaryEntityID(guildID, weekStart, channelID string) string {
	return guildID + ":" + weekStart + ":" + channelID
}

// DailySummariesInWeek returns the daily_summary AIProcessing rows for
// one channel whose date portion falls within [weekStart, weekStart+6].
func (s *Store) DailySummariesInWeek(ctx context.Context, channelID string, days []string) ([]string, error) {
	if len(days) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(days))
	args := make([]any, 0, len(days)+2)
	args = append(args, string(models.EntityDailySummary), string(models.StageSummarize))
	for i, d := range days {
		placeholders[i] = "?"
		args = append(args, DailySummaryEntityID(channelID, d))
	}
	query := `
		SELECT result_json FROM ai_processing
		WHERE entity_type = ? AND stage = ? AND entity_id IN (` + strings.Join(placeholders, ",") + `)
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query daily summaries in week")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errkind.Wrap(err, errkind.Store, "scan daily summary payload")
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

// MessagesInRange returns keep=true messages for one channel within
// [start, end), used by the daily summarizer.
func (s *Store) MessagesInRange(ctx context.Context, channelID string, start, end time.Time) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.clean_content, m.timestamp,
		       m.edited_timestamp, m.message_type, m.reference_id, m.thread_id,
		       m.has_embeds, m.has_attachments, m.reaction_count
		FROM messages m
		JOIN ai_processing ap ON ap.entity_type = ? AND ap.entity_id = m.id AND ap.stage = ?
		WHERE m.channel_id = ? AND m.timestamp >= ? AND m.timestamp < ?
		  AND json_extract(ap.result_json, '$.keep') = 1
		ORDER BY m.timestamp ASC
	`, string(models.EntityMessage), string(models.StageFilter), channelID, start, end)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query messages in range")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ExtractCandidates returns messages eligible for the extract stage:
// filter.keep == 1 and (categorize absent OR marketing_relevance in
// {high, medium}), newest first, bounded by limit.
func (s *Store) ExtractCandidates(ctx context.Context, limit int) ([]models.Message, error) {
	query := `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.clean_content, m.timestamp,
		       m.edited_timestamp, m.message_type, m.reference_id, m.thread_id,
		       m.has_embeds, m.has_attachments, m.reaction_count
		FROM messages m
		JOIN ai_processing f ON f.entity_type = ? AND f.entity_id = m.id AND f.stage = ?
		LEFT JOIN ai_processing c ON c.entity_type = ? AND c.entity_id = m.id AND c.stage = ?
		WHERE json_extract(f.result_json, '$.keep') = 1
		  AND (c.entity_id IS NULL OR json_extract(c.result_json, '$.marketing_relevance') IN ('high', 'medium'))
		ORDER BY m.timestamp DESC
	`
	args := []any{
		string(models.EntityMessage), string(models.StageFilter),
		string(models.EntityMessage), string(models.StageCategorize),
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query extract candidates")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// AuthorByID loads the author of one or more messages, used to enrich
// stage candidates before prompting.
func (s *Store) AuthorByID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, global_name, discriminator, avatar_url, is_bot FROM users WHERE id = ?
	`, userID)
	if err := row.Scan(&u.ID, &u.Username, &u.GlobalName, &u.Discriminator, &u.AvatarURL, &u.IsBot); err != nil {
		return models.User{}, errkind.Wrap(err, errkind.Store, "read author")
	}
	return u, nil
}

// ListChannels returns every known channel, optionally narrowed to
// one guild, ordered by position.
func (s *Store) ListChannels(ctx context.Context, guildID string) ([]models.Channel, error) {
	query := `
		SELECT id, guild_id, name, type, parent_id, position, topic,
		       last_scraped_message_id, last_scraped_at, message_count
		FROM channels
	`
	args := []any{}
	if guildID != "" {
		query += " WHERE guild_id = ?"
		args = append(args, guildID)
	}
	query += " ORDER BY position ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "query channels")
	}
	defer rows.Close()

	var out []models.Channel
	for rows.Next() {
		var c models.Channel
		var lastScrapedAt *time.Time
		if err := rows.Scan(
			&c.ID, &c.GuildID, &c.Name, &c.Type, &c.ParentID, &c.Position, &c.Topic,
			&c.LastScrapedMessageID, &lastScrapedAt, &c.MessageCount,
		); err != nil {
			return nil, errkind.Wrap(err, errkind.Store, "scan channel row")
		}
		if lastScrapedAt != nil {
			c.LastScrapedAt = *lastScrapedAt
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanMessages(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		var m models.Message
		var editedTS *time.Time
		if err := rows.Scan(
			&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CleanContent, &m.Timestamp,
			&editedTS, &m.MessageType, &m.ReferenceID, &m.ThreadID,
			&m.HasEmbeds, &m.HasAttachments, &m.ReactionCount,
		); err != nil {
			return nil, errkind.Wrap(err, errkind.Store, "scan message row")
		}
		m.EditedTimestamp = editedTS
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "iterate message rows")
	}
	return out, nil
}

// Stats summarizes the store for operator use: per-table row counts,
// the min/max message timestamp, and the file size on disk.
type Stats struct {
	GuildCount        int
	ChannelCount      int
	MessageCount      int
	ExtractCount      int
	MinMessageTime    *time.Time
	MaxMessageTime    *time.Time
	FileSizeHuman     string
	FileSizeBytes     int64
}

// Stats computes store-wide statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	counts := []struct {
		table string
		dest  *int
	}{
		{"guilds", &st.GuildCount},
		{"channels", &st.ChannelCount},
		{"messages", &st.MessageCount},
		{"marketing_extracts", &st.ExtractCount},
	}
	for _, c := range counts {
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(1) FROM %s", c.table))
		if err := row.Scan(c.dest); err != nil {
			return st, errkind.Wrap(err, errkind.Store, "count "+c.table)
		}
	}

	row := s.db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM messages`)
	var minTS, maxTS *time.Time
	if err := row.Scan(&minTS, &maxTS); err != nil {
		return st, errkind.Wrap(err, errkind.Store, "read message time bounds")
	}
	st.MinMessageTime = minTS
	st.MaxMessageTime = maxTS

	if info, err := os.Stat(s.path); err == nil {
		st.FileSizeBytes = info.Size()
		st.FileSizeHuman = humanize.Bytes(uint64(info.Size()))
	}

	return st, nil
}
