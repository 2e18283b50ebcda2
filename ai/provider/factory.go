// Package provider selects and adapts LLM backends behind a single
// chat interface, and layers text-variant generation on top of it.
package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/entalign/kgmorph/ai/anthropic"
	"github.com/entalign/kgmorph/ai/openrouter"
	"github.com/entalign/kgmorph/config"
	"github.com/entalign/kgmorph/errors"
)

// Provider identifies an LLM backend.
type Provider string

const (
	// ProviderLocal uses a local OpenAI-compatible server (Ollama, LocalAI).
	ProviderLocal Provider = "local"
	// ProviderOpenRouter uses the OpenRouter.ai API.
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAnthropic uses the Anthropic API directly.
	ProviderAnthropic Provider = "anthropic"
)

// AIClient is the common chat surface all backends implement.
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// ParseProvider converts a configuration string to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "openrouter", "or", "":
		return ProviderOpenRouter, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: local, openrouter, anthropic)", s)
	}
}

// NewAIClient builds a client for the provider named in cfg. Selection is
// explicit: an unknown provider string is an error, never a silent fallback.
func NewAIClient(cfg *config.LLM, logger *zap.SugaredLogger) (AIClient, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	p, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	switch p {
	case ProviderLocal:
		return NewLocalClient(LocalClientConfig{
			BaseURL:        cfg.LocalInference.BaseURL,
			Model:          cfg.LocalInference.Model,
			TimeoutSeconds: cfg.LocalInference.TimeoutSeconds,
			Logger:         logger,
		}), nil
	case ProviderAnthropic:
		var maxTokens int
		if cfg.Anthropic.MaxTokens != nil {
			maxTokens = *cfg.Anthropic.MaxTokens
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: maxTokens,
			Logger:    logger,
		}), nil
	default:
		// NewClient applies the nil defaults, so the pointers pass through.
		return openrouter.NewClient(openrouter.Config{
			APIKey:      cfg.OpenRouter.APIKey,
			Model:       cfg.OpenRouter.Model,
			Temperature: cfg.OpenRouter.Temperature,
			MaxTokens:   cfg.OpenRouter.MaxTokens,
			Logger:      logger,
		}), nil
	}
}

// ModelName reports the model a configuration would use with its provider.
func ModelName(cfg *config.LLM) string {
	p, err := ParseProvider(cfg.Provider)
	if err != nil {
		return ""
	}
	switch p {
	case ProviderLocal:
		return cfg.LocalInference.Model
	case ProviderAnthropic:
		return cfg.Anthropic.Model
	default:
		return cfg.OpenRouter.Model
	}
}

var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*anthropic.Client)(nil)
var _ AIClient = (*LocalClientAdapter)(nil)
