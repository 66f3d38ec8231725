package stage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/llm"
	"discord-marketing/pipeline/logging"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/prompt"
	"discord-marketing/pipeline/runctx"
	"discord-marketing/pipeline/stage"
	"discord-marketing/pipeline/store"
)

func testRunCtx(t *testing.T, responder http.HandlerFunc) *runctx.Context {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	srv := httptest.NewServer(responder)
	t.Cleanup(srv.Close)

	client := llm.New(llm.Config{BaseURL: srv.URL, Model: "test-model", RetryAttempts: 1})
	builder := prompt.New(filepath.Join("..", "prompt", "templates"))

	return &runctx.Context{
		Store: s, LLM: client, Prompts: builder, Log: logging.NewNop(),
	}
}

func seedMessage(t *testing.T, s *store.Store, channelID, msgID, content string, ts time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertGuild(ctx, models.Guild{ID: "g1", Name: "g"}))
	require.NoError(t, s.UpsertChannel(ctx, models.Channel{ID: channelID, GuildID: "g1", Name: "c"}))
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: "u1", Username: "alice"}))
	require.NoError(t, s.UpsertMessage(ctx, models.Message{
		ID: msgID, ChannelID: channelID, AuthorID: "u1", Content: content, CleanContent: content, Timestamp: ts,
	}))
}

func jsonResponder(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// S2: filter then categorize — categorize only sees messages the
// filter stage kept.
func TestFilterThenCategorize(t *testing.T) {
	calls := 0
	rc := testRunCtx(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var content string
		if calls == 1 {
			content = `{"decisions":[{"id":"m1","keep":true},{"id":"m2","keep":false}]}`
		} else {
			content = `{"categorizations":[{"id":"m1","primary_topic":"general","sentiment":"positive","urgency":"low","marketing_relevance":"high"}]}`
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1},
		}
		json.NewEncoder(w).Encode(resp)
	})
	ctx := context.Background()
	now := time.Now().UTC()
	seedMessage(t, rc.Store, "c1", "m1", "hello", now)
	seedMessage(t, rc.Store, "c1", "m2", "bye", now.Add(time.Second))

	filterResult, err := stage.RunFilter(ctx, rc, stage.Options{Model: "test-model", MaxTokensPerBatch: 10000, BatchSize: 100})
	require.NoError(t, err)
	require.Equal(t, 2, filterResult.Processed)
	require.Equal(t, 1, filterResult.Kept)
	require.Equal(t, 1, filterResult.Discarded)

	catResult, err := stage.RunCategorize(ctx, rc, stage.Options{Model: "test-model", MaxTokensPerBatch: 10000, BatchSize: 100})
	require.NoError(t, err)
	require.Equal(t, 1, catResult.Processed)
	require.Equal(t, 1, catResult.RelevanceCounts["high"])
}

// S3: a daily summary persists under entity_id "C1:2024-06-15".
func TestDailySummaryEntityKey(t *testing.T) {
	rc := testRunCtx(t, jsonResponder(`{"summary":{"headline":"busy day","key_points":["a","b"]}}`))
	ctx := context.Background()
	day := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	seedMessage(t, rc.Store, "C1", "m1", "hello", day)

	require.NoError(t, rc.Store.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityMessage, EntityID: "m1", Stage: models.StageFilter,
		Result: map[string]any{"keep": true}, ModelUsed: "test-model",
	}))

	result, err := stage.RunSummarizeAll(ctx, rc, stage.Options{
		ChannelID: "C1",
		Start:     &day,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Processed, 1)

	var count int
	rows, err := rc.Store.QueryContext(ctx, `SELECT COUNT(1) FROM ai_processing WHERE entity_id = ? AND entity_type = ?`, "C1:2024-06-15", models.EntityDailySummary)
	require.NoError(t, err)
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&count))
	require.Equal(t, 1, count)
}

func TestExtractAndFormat(t *testing.T) {
	calls := 0
	rc := testRunCtx(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := `{"extracts":[{"id":"m1","type":"quote","content":"great project"}]}`
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1},
		}
		json.NewEncoder(w).Encode(resp)
	})
	ctx := context.Background()
	now := time.Now().UTC()
	seedMessage(t, rc.Store, "c1", "m1", "great project", now)
	require.NoError(t, rc.Store.WriteAIProcessing(ctx, store.AIProcessingRow{
		EntityType: models.EntityMessage, EntityID: "m1", Stage: models.StageFilter,
		Result: map[string]any{"keep": true}, ModelUsed: "test-model",
	}))

	result, err := stage.RunExtractAll(ctx, rc, stage.Options{Model: "test-model"})
	require.NoError(t, err)
	require.Equal(t, 3, calls, "one call per sub-extractor")
	require.Equal(t, 3, result.Processed)

	formatResult, err := stage.RunFormat(ctx, rc, stage.Options{})
	require.NoError(t, err)
	require.Equal(t, 3, formatResult.Processed)
}
