package provider

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

func newLocalTestClient(t *testing.T, handler http.HandlerFunc) *LocalClientAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewLocalClient(LocalClientConfig{
		BaseURL:        server.URL,
		Model:          "llama3.2:3b",
		TimeoutSeconds: 5,
	})
}

func TestLocalChatSuccess(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req localChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2:3b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model,
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": " Big Blue "}},
			},
			"usage": map[string]int{"prompt_tokens": 20, "completion_tokens": 3, "total_tokens": 23},
		})
	})

	resp, err := client.Chat(context.Background(), openrouter.ChatRequest{
		SystemPrompt: "rewrite labels",
		UserPrompt:   "rename IBM",
	})
	require.NoError(t, err)
	assert.Equal(t, "Big Blue", resp.Content)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
}

func TestLocalChatServerError(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := client.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)

	var statusErr *openrouter.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestLocalChatNoChoices(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := client.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion choices")
}
