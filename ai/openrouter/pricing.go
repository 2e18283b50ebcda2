package openrouter

// ModelPricing contains per-token pricing for OpenRouter models.
// Prices are in USD per million tokens.
type ModelPricing struct {
	PromptPrice     float64 // USD per 1M prompt tokens
	CompletionPrice float64 // USD per 1M completion tokens
}

// modelPricing holds hardcoded pricing for commonly used models.
var modelPricing = map[string]ModelPricing{
	"openai/gpt-4o": {
		PromptPrice:     2.50,
		CompletionPrice: 10.00,
	},
	"openai/gpt-4o-mini": {
		PromptPrice:     0.15,
		CompletionPrice: 0.60,
	},
	"openai/gpt-3.5-turbo": {
		PromptPrice:     0.50,
		CompletionPrice: 1.50,
	},
	"anthropic/claude-3.5-sonnet": {
		PromptPrice:     3.00,
		CompletionPrice: 15.00,
	},
	"anthropic/claude-3-haiku": {
		PromptPrice:     0.25,
		CompletionPrice: 1.25,
	},
	"google/gemini-flash-1.5": {
		PromptPrice:     0.075,
		CompletionPrice: 0.30,
	},
	"meta-llama/llama-3.1-8b-instruct": {
		PromptPrice:     0.055,
		CompletionPrice: 0.055,
	},
}

// defaultPricing is a conservative estimate for unknown models.
var defaultPricing = ModelPricing{
	PromptPrice:     1.00,
	CompletionPrice: 3.00,
}

// CalculateCost computes the USD cost of a request given token counts.
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = defaultPricing
	}
	promptCost := float64(promptTokens) / 1_000_000 * pricing.PromptPrice
	completionCost := float64(completionTokens) / 1_000_000 * pricing.CompletionPrice
	return promptCost + completionCost
}
