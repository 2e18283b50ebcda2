package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/ai/openrouter"
	"github.com/entalign/kgmorph/ai/tracker"
	"github.com/entalign/kgmorph/errors"
)

type stubClient struct {
	responses []string
	errs      []error
	requests  []openrouter.ChatRequest
}

func (s *stubClient) Chat(_ context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	content := "variant"
	if i < len(s.responses) {
		content = s.responses[i]
	}
	return &openrouter.ChatResponse{
		Content: content,
		Model:   "stub-model",
		Usage:   openrouter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func TestGenerateVariantName(t *testing.T) {
	stub := &stubClient{responses: []string{`"IBM"`}}
	gen := NewGenerator(GeneratorConfig{Client: stub, Provider: ProviderOpenRouter, Model: "stub-model"})

	variant, err := gen.GenerateVariant(context.Background(), VariantRequest{
		CurrentValue: "International Business Machines",
		Attribute:    AttributeName,
		EntityID:     "e1",
		EntityType:   "Organization",
	})
	require.NoError(t, err)
	assert.Equal(t, "IBM", variant)

	require.Len(t, stub.requests, 1)
	assert.Contains(t, stub.requests[0].UserPrompt, "International Business Machines")
	assert.Contains(t, stub.requests[0].UserPrompt, "Organization")
	assert.Nil(t, stub.requests[0].Temperature)
}

func TestGenerateVariantDescriptionTemperature(t *testing.T) {
	stub := &stubClient{responses: []string{"A storied maker of business computers."}}
	gen := NewGenerator(GeneratorConfig{Client: stub})

	_, err := gen.GenerateVariant(context.Background(), VariantRequest{
		Attribute:  AttributeDescription,
		EntityID:   "e1",
		EntityName: "IBM",
		EntityType: "Organization",
		Context:    map[string]string{"founded": "1911"},
	})
	require.NoError(t, err)

	require.NotNil(t, stub.requests[0].Temperature)
	assert.InDelta(t, descriptionTemperature, *stub.requests[0].Temperature, 1e-9)
	assert.Contains(t, stub.requests[0].UserPrompt, "founded: 1911")
}

func TestGenerateVariantEmptyInput(t *testing.T) {
	gen := NewGenerator(GeneratorConfig{Client: &stubClient{}})
	_, err := gen.GenerateVariant(context.Background(), VariantRequest{Attribute: AttributeName})
	require.Error(t, err)
}

func TestGenerateVariantTransientMark(t *testing.T) {
	stub := &stubClient{errs: []error{errors.WithStack(&openrouter.StatusError{Code: 503})}}
	gen := NewGenerator(GeneratorConfig{Client: stub})

	_, err := gen.GenerateVariant(context.Background(), VariantRequest{
		CurrentValue: "works_for",
		Attribute:    AttributePredicate,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
}

func TestGenerateVariantRecordsUsage(t *testing.T) {
	usage, err := tracker.Open(":memory:")
	require.NoError(t, err)
	defer usage.Close()

	stub := &stubClient{responses: []string{"Big Blue"}}
	gen := NewGenerator(GeneratorConfig{
		Client:   stub,
		Provider: ProviderOpenRouter,
		Model:    "stub-model",
		RunID:    "run-7",
		Usage:    usage,
	})

	_, err = gen.GenerateVariant(context.Background(), VariantRequest{
		CurrentValue: "IBM",
		Attribute:    AttributeName,
		EntityID:     "e1",
	})
	require.NoError(t, err)

	stats, err := usage.GetUsageStats(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.SuccessfulRequests)
	assert.Equal(t, 15, stats.TotalTokens)
}

func TestSanitizeVariant(t *testing.T) {
	assert.Equal(t, "IBM", sanitizeVariant("  \"IBM\"  "))
	assert.Equal(t, "Big Blue", sanitizeVariant("Big Blue\nAlso known as IBM."))
	assert.Equal(t, "", sanitizeVariant("   "))
}
