package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/ai/openrouter"
	"github.com/entalign/kgmorph/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{APIKey: "test-key"})
	client.baseURL = server.URL
	client.SetHTTPClient(server.Client())
	return client
}

func TestChatSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req MessagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rename this entity", req.Messages[0].Content)
		assert.Equal(t, "you rename things", req.System)

		resp := MessagesResponse{
			Content: []ContentBlock{{Type: "text", Text: "  OpenAI Inc.  "}},
			Model:   req.Model,
			Usage:   UsageInfo{InputTokens: 40, OutputTokens: 8},
		}
		json.NewEncoder(w).Encode(resp)
	})

	resp, err := client.Chat(context.Background(), openrouter.ChatRequest{
		SystemPrompt: "you rename things",
		UserPrompt:   "rename this entity",
	})
	require.NoError(t, err)
	assert.Equal(t, "OpenAI Inc.", resp.Content)
	assert.Equal(t, 48, resp.Usage.TotalTokens)
}

func TestChatMissingAPIKey(t *testing.T) {
	client := NewClient(Config{})
	assert.False(t, client.IsConfigured())

	_, err := client.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestChatOverloaded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"overloaded_error"}}`, http.StatusTooManyRequests)
	})

	_, err := client.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)

	var statusErr *openrouter.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestChatEmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MessagesResponse{})
	})

	_, err := client.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestCalculateCost(t *testing.T) {
	cost := CalculateCost("claude-3-5-haiku-latest", 1_000_000, 1_000_000)
	assert.InDelta(t, 4.80, cost, 1e-9)

	unknown := CalculateCost("mystery-model", 1_000_000, 0)
	assert.InDelta(t, 3.00, unknown, 1e-9)
}
