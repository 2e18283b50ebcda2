// Package openrouter implements the OpenRouter.ai chat-completions client.
// It also defines the ChatRequest/ChatResponse types shared by every
// provider client.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/entalign/kgmorph/errors"
	"github.com/entalign/kgmorph/internal/httpclient"
)

const (
	// DefaultModel is the fallback model when none is specified.
	DefaultModel = "openai/gpt-4o-mini"

	// BaseURL is the OpenRouter API endpoint.
	BaseURL = "https://openrouter.ai/api/v1"
)

// Client is an OpenRouter.ai API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds OpenRouter client configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature *float64           // nil = default 0.2
	MaxTokens   *int               // nil = default 256
	Logger      *zap.SugaredLogger // nil = nop logger
}

// NewClient creates a new OpenRouter client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		defaultTemp := 0.2
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 256
		config.MaxTokens = &defaultTokens
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

// SetHTTPClient replaces the underlying HTTP client. Tests use this to
// point at local servers the SSRF-guarded default would block.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// IsConfigured reports whether the client has credentials.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// ChatRequest is a high-level request to a chat model. All provider
// clients accept this shape.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // override default temperature
	MaxTokens    *int     // override default max tokens
	Model        *string  // override default model
}

// ChatResponse is a provider-agnostic chat result.
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Message is a chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusError is returned for non-2xx API responses. The status code
// drives transient-vs-permanent classification upstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "API request failed with status " + http.StatusText(e.Code) + ": " + e.Body
}

// ChatCompletionRequest is the chat completions wire format.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse is the chat completions wire response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// CreateChatCompletion sends a raw chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", "kgmorph")

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
		return nil, errors.WithStack(&StatusError{Code: resp.StatusCode, Body: string(respBody)})
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &chatResp, nil
}

// Chat sends a single chat request and returns the trimmed assistant
// response. Retry policy lives with the caller; Chat itself makes exactly
// one attempt.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("OpenRouter API key not configured")
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	c.logger.Debugw("OpenRouter chat request",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
	)

	resp, err := c.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, "OpenRouter API error")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response choices from OpenRouter")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debugw("OpenRouter chat response",
		"content_length", len(content),
		"total_tokens", resp.Usage.TotalTokens,
	)

	return &ChatResponse{
		Content: content,
		Model:   model,
		Usage:   resp.Usage,
	}, nil
}
