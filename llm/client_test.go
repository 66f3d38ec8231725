package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/llm"
)

func TestProcessWithAIParsesJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"decisions":[{"id":"1","keep":true}]}`}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := llm.New(llm.Config{BaseURL: srv.URL, Model: "test-model", RetryAttempts: 1})

	var out struct {
		Decisions []struct {
			ID   string `json:"id"`
			Keep bool   `json:"keep"`
		} `json:"decisions"`
	}
	err := client.ProcessWithAI(context.Background(), "prompt", llm.CallOptions{Operation: "filter"}, &out)
	require.NoError(t, err)
	require.Len(t, out.Decisions, 1)
	require.True(t, out.Decisions[0].Keep)
}

func TestProcessWithAIRetriesOn429ThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := llm.New(llm.Config{BaseURL: srv.URL, Model: "test-model", RetryAttempts: 3, RetryDelayMs: 1})

	var out map[string]any
	err := client.ProcessWithAI(context.Background(), "prompt", llm.CallOptions{}, &out)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.Transient))
	require.Equal(t, int32(3), calls.Load(), "should attempt exactly maxRetries times")
}

func TestProcessWithAIDoesNotRetryOnNonTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := llm.New(llm.Config{BaseURL: srv.URL, Model: "test-model", RetryAttempts: 3, RetryDelayMs: 1})

	var out map[string]any
	err := client.ProcessWithAI(context.Background(), "prompt", llm.CallOptions{}, &out)
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load(), "non-retryable errors should not be retried")
}

func TestProcessWithAIBadJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `not valid json`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := llm.New(llm.Config{BaseURL: srv.URL, Model: "test-model", RetryAttempts: 1})

	var out map[string]any
	err := client.ProcessWithAI(context.Background(), "prompt", llm.CallOptions{}, &out)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.Validation))
}
