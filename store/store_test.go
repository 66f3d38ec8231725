package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedChannel(t *testing.T, s *store.Store, guildID, channelID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertGuild(ctx, models.Guild{ID: guildID, Name: "g"}))
	require.NoError(t, s.UpsertChannel(ctx, models.Channel{ID: channelID, GuildID: guildID, Name: "c"}))
}

func TestUpsertGuildIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := models.Guild{ID: "g1", Name: "Alpha", MemberCount: 10}
	require.NoError(t, s.UpsertGuild(ctx, g))
	require.NoError(t, s.UpsertGuild(ctx, g))

	var count int
	row, err := s.QueryContext(ctx, `SELECT COUNT(1) FROM guilds WHERE id = ?`, "g1")
	require.NoError(t, err)
	require.True(t, row.Next())
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)

	g.MemberCount = 20
	require.NoError(t, s.UpsertGuild(ctx, g))

	var memberCount int
	row2, err := s.QueryContext(ctx, `SELECT member_count FROM guilds WHERE id = ?`, "g1")
	require.NoError(t, err)
	require.True(t, row2.Next())
	require.NoError(t, row2.Scan(&memberCount))
	require.Equal(t, 20, memberCount)
}

func TestMessageUpsertPreservesTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedChannel(t, s, "g1", "c1")
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: "u1", Username: "alice"}))

	original := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	m := models.Message{ID: "m1", ChannelID: "c1", AuthorID: "u1", Content: "hello", Timestamp: original}
	require.NoError(t, s.UpsertMessage(ctx, m))

	m.Content = "hello edited"
	require.NoError(t, s.UpsertMessage(ctx, m))

	rows, err := s.QueryContext(ctx, `SELECT content, timestamp FROM messages WHERE id = ?`, "m1")
	require.NoError(t, err)
	require.True(t, rows.Next())
	var content string
	var ts time.Time
	require.NoError(t, rows.Scan(&content, &ts))
	require.Equal(t, "hello edited", content)
	require.True(t, ts.Equal(original))
}

func TestShouldProcessGating(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	should, err := s.ShouldProcess(ctx, models.EntityMessage, "m1", models.StageFilter, false, 30)
	require.NoError(t, err)
	require.True(t, should, "no prior row means should process")

	require.NoError(t, s.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityMessage,
		EntityID:   "m1",
		Stage:      models.StageFilter,
		Result:     map[string]any{"keep": true},
	}))

	should, err = s.ShouldProcess(ctx, models.EntityMessage, "m1", models.StageFilter, false, 30)
	require.NoError(t, err)
	require.False(t, should, "fresh row should short-circuit")

	should, err = s.ShouldProcess(ctx, models.EntityMessage, "m1", models.StageFilter, true, 30)
	require.NoError(t, err)
	require.True(t, should, "force always reprocesses")
}

func TestCascadeDeleteChannel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedChannel(t, s, "g1", "c1")
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: "u1", Username: "alice"}))
	require.NoError(t, s.UpsertMessage(ctx, models.Message{ID: "m1", ChannelID: "c1", AuthorID: "u1", Timestamp: time.Now().UTC()}))
	require.NoError(t, s.UpsertEmbed(ctx, models.Embed{MessageID: "m1", Title: "t"}))
	require.NoError(t, s.UpsertAttachment(ctx, models.Attachment{MessageID: "m1", URL: "u"}))
	require.NoError(t, s.UpsertReaction(ctx, models.Reaction{MessageID: "m1", Emoji: "👍", Count: 1}))

	require.NoError(t, s.DeleteChannel(ctx, "c1"))

	for _, table := range []string{"messages", "embeds", "attachments", "reactions"} {
		rows, err := s.QueryContext(ctx, "SELECT COUNT(1) FROM "+table)
		require.NoError(t, err)
		require.True(t, rows.Next())
		var count int
		require.NoError(t, rows.Scan(&count))
		require.Zero(t, count, "table %s should be empty after cascade delete", table)
	}
}

func TestGetUnprocessedMessagesExcludesProcessed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedChannel(t, s, "g1", "c1")
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: "u1", Username: "alice"}))

	base := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertMessage(ctx, models.Message{ID: "m1", ChannelID: "c1", AuthorID: "u1", Timestamp: base}))
	require.NoError(t, s.UpsertMessage(ctx, models.Message{ID: "m2", ChannelID: "c1", AuthorID: "u1", Timestamp: base.Add(time.Minute)}))

	require.NoError(t, s.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityMessage, EntityID: "m1", Stage: models.StageFilter,
		Result: map[string]any{"keep": true},
	}))

	msgs, err := s.GetUnprocessedMessages(ctx, models.StageFilter, store.UnprocessedQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "m2", msgs[0].ID)
}

func TestGetProcessedMessagesKeepOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedChannel(t, s, "g1", "c1")
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: "u1", Username: "alice"}))

	base := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertMessage(ctx, models.Message{ID: "m1", ChannelID: "c1", AuthorID: "u1", Timestamp: base}))
	require.NoError(t, s.UpsertMessage(ctx, models.Message{ID: "m2", ChannelID: "c1", AuthorID: "u1", Timestamp: base.Add(time.Minute)}))

	require.NoError(t, s.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityMessage, EntityID: "m1", Stage: models.StageFilter,
		Result: map[string]any{"keep": true},
	}))
	require.NoError(t, s.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityMessage, EntityID: "m2", Stage: models.StageFilter,
		Result: map[string]any{"keep": false},
	}))

	msgs, err := s.GetProcessedMessages(ctx, models.StageFilter, store.ProcessedQuery{KeepOnly: true})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "m1", msgs[0].ID)
}

func TestChannelWatermarkAdvancesOnlyOnCompletion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedChannel(t, s, "g1", "c1")

	id, err := s.ChannelLastScrapedMessageID(ctx, "c1")
	require.NoError(t, err)
	require.Empty(t, id)

	require.NoError(t, s.UpdateChannelLastScraped(ctx, "c1", "300", 3))

	id, err = s.ChannelLastScrapedMessageID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "300", id)
}
