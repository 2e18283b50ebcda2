package anthropic

// ModelPricing holds per-million-token pricing in USD.
type ModelPricing struct {
	PromptPrice     float64
	CompletionPrice float64
}

var modelPricing = map[string]ModelPricing{
	"claude-3-5-haiku-latest":  {0.80, 4.00},
	"claude-3-5-sonnet-latest": {3.00, 15.00},
	"claude-3-opus-latest":     {15.00, 75.00},
}

var defaultPricing = ModelPricing{3.00, 15.00}

// CalculateCost returns the USD cost for a completed request.
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = defaultPricing
	}
	promptCost := float64(promptTokens) / 1_000_000 * pricing.PromptPrice
	completionCost := float64(completionTokens) / 1_000_000 * pricing.CompletionPrice
	return promptCost + completionCost
}
