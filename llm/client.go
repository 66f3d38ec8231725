// Package llm is the chat-completion driver: a single-call contract
// to the LLM endpoint with JSON-mode responses, retry policy, and
// usage accounting. Grounded on
// theRebelliousNerd-codenerd/internal/perception/client_zai.go's
// HTTP+retry shape, generalized to the parametric exponential
// backoff and bounded concurrency this system requires.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/usage"
)

// Config configures the driver's endpoint, credentials, and retry policy.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	RetryAttempts int
	RetryDelayMs  int
	BackoffMultiplier float64
	HTTPClient    *http.Client
}

// Client issues chat-completion requests against a JSON-mode endpoint.
type Client struct {
	cfg Config
	http *http.Client
}

// New builds a Client from cfg, defaulting the HTTP client if absent.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 1000
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	return &Client{cfg: cfg, http: httpClient}
}

type chatRequest struct {
	Model          string            `json:"model"`
	MaxTokens      int               `json:"max_tokens"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// CallOptions narrows one ProcessWithAI invocation.
type CallOptions struct {
	Model     string
	MaxTokens int
	Operation string // attributed to the usage tracker
}

// badResponseError is raised when the model's response cannot be
// parsed as JSON; it carries a truncated excerpt for diagnostics.
type badResponseError struct {
	excerpt string
}

func (e *badResponseError) Error() string {
	return fmt.Sprintf("llm response was not valid JSON, excerpt: %q", e.excerpt)
}

// ProcessWithAI issues one chat-completion request in JSON-response
// mode with a single user message, parses the textual response as
// JSON into v, and records usage against the context's tracker (if
// any) under opts.Operation. The retry policy in retry.go wraps this
// call.
func (c *Client) ProcessWithAI(ctx context.Context, prompt string, opts CallOptions, v any) error {
	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}

	reqBody := chatRequest{
		Model:     model,
		MaxTokens: opts.MaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	return withRetry(ctx, c.cfg.RetryAttempts, c.cfg.RetryDelayMs, c.cfg.BackoffMultiplier, func() error {
		return c.doCall(ctx, reqBody, opts, v)
	})
}

func (c *Client) doCall(ctx context.Context, reqBody chatRequest, opts CallOptions, v any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errkind.Wrap(err, errkind.Validation, "marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return errkind.Wrap(err, errkind.Configuration, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyStatusError(resp.StatusCode, body)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return errkind.Wrap(err, errkind.Validation, "unmarshal chat response envelope")
	}
	if len(decoded.Choices) == 0 {
		return errkind.New(errkind.Validation, "chat response had no choices")
	}

	content := decoded.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), v); err != nil {
		excerpt := content
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return errkind.Wrap(&badResponseError{excerpt: excerpt}, errkind.Validation, "parse model JSON content")
	}

	if tr := usage.FromContext(ctx); tr != nil {
		tr.Track(ctx, decoded.Model, "llm", decoded.Usage.PromptTokens, decoded.Usage.CompletionTokens, opts.Operation)
	}
	return nil
}
