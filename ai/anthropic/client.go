// Package anthropic implements a direct Anthropic Messages API client.
package anthropic

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

const (
	// DefaultModel is the default Claude model.
	DefaultModel = "claude-3-5-haiku-latest"

	// BaseURL is the Anthropic API endpoint.
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header.
	APIVersion = "2023-06-01"
)

// Client is an Anthropic API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds Anthropic client configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64 // 0 = default 0.2
	MaxTokens   int     // 0 = default 256
	Logger      *zap.SugaredLogger
}

// NewClient creates a new Anthropic client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 256
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	safer := httpclient.New(120*time.Second, httpclient.Options{})

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    BaseURL,
		httpClient: safer.Client,
		config:     config,
		logger:     logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client (testing hook).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// IsConfigured reports whether the client has credentials.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// MessagesRequest is the Anthropic Messages API wire format.
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message is a conversation message.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesResponse is the Messages API wire response.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      UsageInfo      `json:"usage"`
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// UsageInfo reports Anthropic token usage.
type UsageInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chat sends a single request to the Messages API and adapts the result to
// the shared ChatResponse shape. One attempt; retries live with the caller.
func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("Anthropic API key not configured")
	}

	temperature := c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	apiReq := MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    []Message{{Role: "user", Content: req.UserPrompt}},
		System:      req.SystemPrompt,
		Temperature: temperature,
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithStack(&openrouter.StatusError{Code: resp.StatusCode, Body: string(respBody)})
	}

	var apiResp MessagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, errors.New("no text content from Anthropic")
	}

	c.logger.Debugw("Anthropic chat response",
		"content_length", len(content),
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)

	return &openrouter.ChatResponse{
		Content: content,
		Model:   model,
		Usage: openrouter.Usage{
			PromptTokens:     apiResp.Usage.InputTokens,
			CompletionTokens: apiResp.Usage.OutputTokens,
			TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
	}, nil
}
