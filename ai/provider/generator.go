package provider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/entalign/kgmorph/ai/anthropic"
	"github.com/entalign/kgmorph/ai/openrouter"
	"github.com/entalign/kgmorph/ai/tracker"
	"github.com/entalign/kgmorph/config"
	"github.com/entalign/kgmorph/db"
	"github.com/entalign/kgmorph/errors"
)

// VariantRequest asks for an alternative rendering of one graph attribute.
type VariantRequest struct {
	// CurrentValue is the text to generate a variant for.
	CurrentValue string
	// Attribute says which attribute CurrentValue is.
	Attribute AttributeKind
	// Instruction is the transformation angle, one of Instructions(Attribute).
	// Empty means the default phrasing for the attribute.
	Instruction string

	// Entity context, used by description synthesis.
	EntityID   string
	EntityName string
	EntityType string
	Context    map[string]string
}

// TextGenerator produces alternative attribute text. Implementations must be
// safe for concurrent use.
type TextGenerator interface {
	GenerateVariant(ctx context.Context, req VariantRequest) (string, error)
}

// descriptionTemperature is raised above the default so synthesized
// descriptions vary in framing, not just wording.
const descriptionTemperature = 0.8

// Generator implements TextGenerator over an AIClient, optionally recording
// each call in a usage tracker.
type Generator struct {
	client   AIClient
	provider Provider
	model    string
	runID    string
	usage    *tracker.UsageTracker
	logger   *zap.SugaredLogger
	costFn   func(model string, promptTokens, completionTokens int) float64
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Client   AIClient
	Provider Provider
	Model    string
	RunID    string
	Usage    *tracker.UsageTracker // nil disables tracking
	Logger   *zap.SugaredLogger
	// CostFn estimates USD cost per call. nil means zero cost.
	CostFn func(model string, promptTokens, completionTokens int) float64
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	costFn := cfg.CostFn
	if costFn == nil {
		costFn = func(string, int, int) float64 { return 0 }
	}
	return &Generator{
		client:   cfg.Client,
		provider: cfg.Provider,
		model:    cfg.Model,
		runID:    cfg.RunID,
		usage:    cfg.Usage,
		logger:   logger,
		costFn:   costFn,
	}
}

// NewGeneratorFromConfig builds the client for cfg and wraps it.
func NewGeneratorFromConfig(cfg *GeneratorFromConfig) (*Generator, error) {
	client, err := NewAIClient(cfg.LLM, cfg.Logger)
	if err != nil {
		return nil, err
	}
	p, _ := ParseProvider(cfg.LLM.Provider)
	return NewGenerator(GeneratorConfig{
		Client:   client,
		Provider: p,
		Model:    ModelName(cfg.LLM),
		RunID:    cfg.RunID,
		Usage:    cfg.Usage,
		Logger:   cfg.Logger,
		CostFn:   costFnFor(p),
	}), nil
}

// GeneratorFromConfig bundles the inputs NewGeneratorFromConfig needs.
type GeneratorFromConfig struct {
	LLM    *config.LLM
	RunID  string
	Usage  *tracker.UsageTracker
	Logger *zap.SugaredLogger
}

func costFnFor(p Provider) func(string, int, int) float64 {
	switch p {
	case ProviderAnthropic:
		return anthropic.CalculateCost
	case ProviderOpenRouter:
		return openrouter.CalculateCost
	default:
		// Local inference has no API cost.
		return func(string, int, int) float64 { return 0 }
	}
}

// GenerateVariant makes exactly one LLM call for the requested attribute.
// Retryable failures come back marked with ErrTransient.
func (g *Generator) GenerateVariant(ctx context.Context, req VariantRequest) (string, error) {
	if req.CurrentValue == "" && req.Attribute != AttributeDescription {
		return "", errors.New("cannot generate a variant for empty text")
	}

	chatReq := openrouter.ChatRequest{
		SystemPrompt: variantSystemPrompt,
		UserPrompt:   buildVariantPrompt(req),
	}
	if req.Attribute == AttributeDescription {
		temp := descriptionTemperature
		chatReq.Temperature = &temp
	}

	requestedAt := time.Now()
	resp, err := g.client.Chat(ctx, chatReq)
	respondedAt := time.Now()

	if err != nil {
		err = classify(err)
		g.track(req, requestedAt, respondedAt, nil, err)
		return "", errors.Wrapf(err, "variant generation failed for %s", req.Attribute)
	}

	variant := sanitizeVariant(resp.Content)
	if variant == "" {
		err := errors.Newf("empty variant for %s", req.Attribute)
		g.track(req, requestedAt, respondedAt, resp, err)
		return "", err
	}

	g.track(req, requestedAt, respondedAt, resp, nil)
	return variant, nil
}

// sanitizeVariant strips the wrapping LLMs tend to add around short answers.
func sanitizeVariant(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	if idx := strings.IndexAny(s, "\n"); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}

func (g *Generator) track(req VariantRequest, requestedAt, respondedAt time.Time, resp *openrouter.ChatResponse, callErr error) {
	if g.usage == nil {
		return
	}

	usage := &tracker.ModelUsage{
		RunID:             g.runID,
		OperationType:     operationFor(req.Attribute),
		EntityID:          req.EntityID,
		ModelName:         g.model,
		ModelProvider:     string(g.provider),
		RequestTimestamp:  requestedAt,
		ResponseTimestamp: &respondedAt,
		Success:           callErr == nil,
	}
	if callErr != nil {
		msg := callErr.Error()
		usage.ErrorMessage = &msg
	}
	if resp != nil {
		tokens := resp.Usage.TotalTokens
		cost := g.costFn(g.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		usage.TokensUsed = &tokens
		usage.Cost = &cost
	}

	if err := g.usage.TrackUsage(usage); err != nil {
		if db.IsDatabaseClosed(err) {
			g.logger.Debugw("Usage database closed before record landed", "error", err)
			return
		}
		g.logger.Warnw("Failed to record LLM usage", "error", err)
	}
}

func operationFor(kind AttributeKind) string {
	switch kind {
	case AttributeDescription:
		return "synthesize_description"
	case AttributePredicate:
		return "rename_relation"
	case AttributeType:
		return "retype_entity"
	default:
		return "rename_entity"
	}
}
