package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/errors"
)

func TestClientConfiguration(t *testing.T) {
	c := NewClient(Config{APIKey: "test-key"})

	assert.True(t, c.IsConfigured())
	assert.Equal(t, DefaultModel, c.config.Model)
	require.NotNil(t, c.config.Temperature)
	assert.InDelta(t, 0.2, *c.config.Temperature, 1e-9)
	require.NotNil(t, c.config.MaxTokens)
	assert.Equal(t, 256, *c.config.MaxTokens)

	assert.False(t, NewClient(Config{}).IsConfigured())
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{APIKey: "test-key"})
	client.baseURL = server.URL
	client.SetHTTPClient(server.Client()) // bypass SSRF guard for localhost testing
	return server, client
}

func TestChatSuccess(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := ChatCompletionResponse{
			ID:      "test-id",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []Choice{{
				Message:      Message{Role: "assistant", Content: "  IBM  "},
				FinishReason: "stop",
			}},
			Usage: Usage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		SystemPrompt: "You rename entities.",
		UserPrompt:   "International Business Machines",
	})
	require.NoError(t, err)
	assert.Equal(t, "IBM", resp.Content, "response is trimmed")
	assert.Equal(t, 13, resp.Usage.TotalTokens)
}

func TestChatMissingAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestChatServerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestChatEmptyChoices(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(ChatCompletionResponse{}))
	})

	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}

func TestCalculateCost(t *testing.T) {
	cost := CalculateCost("openai/gpt-4o-mini", 1_000_000, 1_000_000)
	assert.InDelta(t, 0.75, cost, 1e-9)

	// Unknown models fall back to conservative defaults.
	cost = CalculateCost("unknown/model", 1_000_000, 0)
	assert.InDelta(t, 1.00, cost, 1e-9)
}
