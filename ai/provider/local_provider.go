package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/entalign/kgmorph/ai/openrouter"
	"github.com/entalign/kgmorph/errors"
	"github.com/entalign/kgmorph/internal/httpclient"
)

// LocalClientConfig configures a local inference client.
type LocalClientConfig struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
	Logger         *zap.SugaredLogger
}

// LocalClientAdapter speaks the OpenAI-compatible chat endpoint exposed by
// Ollama and LocalAI. Local servers live on private addresses, so the
// underlying client allows them.
type LocalClientAdapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewLocalClient creates a client for a local OpenAI-compatible server.
func NewLocalClient(cfg LocalClientConfig) *LocalClientAdapter {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	safer := httpclient.New(timeout, httpclient.Options{AllowPrivate: true})

	return &LocalClientAdapter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: safer.Client,
		logger:     logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client (testing hook).
func (lca *LocalClientAdapter) SetHTTPClient(hc *http.Client) {
	lca.httpClient = hc
}

type localChatRequest struct {
	Model    string         `json:"model"`
	Messages []localMessage `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *localOptions  `json:"options,omitempty"`
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	// Ollama names the completion cap num_predict.
	MaxTokens int `json:"num_predict,omitempty"`
}

type localChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      localMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Chat sends one request to the local /v1/chat/completions endpoint.
func (lca *LocalClientAdapter) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	messages := []localMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, localMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, localMessage{Role: "user", Content: req.UserPrompt})

	var opts *localOptions
	if req.Temperature != nil || req.MaxTokens != nil {
		opts = &localOptions{}
		if req.Temperature != nil {
			opts.Temperature = *req.Temperature
		}
		if req.MaxTokens != nil {
			opts.MaxTokens = *req.MaxTokens
		}
	}

	model := lca.model
	if req.Model != nil {
		model = *req.Model
	}

	reqBody, err := json.Marshal(localChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	endpoint := lca.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := lca.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "local inference request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.WithStack(&openrouter.StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	var completion localChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	out := &openrouter.ChatResponse{Content: content, Model: model}
	if completion.Usage != nil {
		out.Usage = openrouter.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		}
	}
	return out, nil
}
