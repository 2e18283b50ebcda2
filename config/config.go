// Package config defines the kgmorph configuration surface: the perturbation
// config (counts, toggles, seed) and the LLM config (provider selection,
// credentials, retry policy). Both load from YAML via viper with environment
// overrides under the KGMORPH_ prefix.
package config

// Perturbation is one run's requested perturbations. It is immutable for the
// duration of a run; the engine receives it by value and never mutates it.
type Perturbation struct {
	Seed           int64 `mapstructure:"seed" yaml:"seed"`
	RemoveEntities int   `mapstructure:"remove_entities" yaml:"remove_entities"`
	AddEntities    int   `mapstructure:"add_entities" yaml:"add_entities"`
	RemoveEdges    int   `mapstructure:"remove_edges" yaml:"remove_edges"`
	AddEdges       int   `mapstructure:"add_edges" yaml:"add_edges"`

	// ReassignIDs renumbers surviving entities to fresh sequential ids
	// (e{N+1}...) so the two graphs share no id space.
	ReassignIDs bool `mapstructure:"reassign_ids" yaml:"reassign_ids"`

	// AllowSelfLoops permits added edges with identical endpoints.
	AllowSelfLoops bool `mapstructure:"allow_self_loops" yaml:"allow_self_loops"`

	// EdgeRetryLimit bounds redraw attempts per requested edge before the
	// edge is skipped with a diagnostic.
	EdgeRetryLimit int `mapstructure:"edge_retry_limit" yaml:"edge_retry_limit"`

	LLMPerturbEntities EntityPerturb `mapstructure:"llm_perturb_entities" yaml:"llm_perturb_entities"`

	// LLMRenameRelations offers each relation's predicate label to the LLM
	// for an alternative. Relations are not mapping-tracked.
	LLMRenameRelations bool `mapstructure:"llm_rename_relations" yaml:"llm_rename_relations"`
}

// EntityPerturb toggles LLM-based rewriting of entity attributes.
type EntityPerturb struct {
	UpdateName        bool `mapstructure:"update_name" yaml:"update_name"`
	UpdateDescription bool `mapstructure:"update_description" yaml:"update_description"`
	UpdateType        bool `mapstructure:"update_type" yaml:"update_type"`
}

// Enabled reports whether any entity attribute toggle is on.
func (e EntityPerturb) Enabled() bool {
	return e.UpdateName || e.UpdateDescription || e.UpdateType
}

// LLM configures the text-perturbation adapter.
type LLM struct {
	// Provider selects the backing client: "openrouter", "anthropic" or
	// "local". Selection is explicit; there is no runtime sniffing.
	Provider string `mapstructure:"provider" yaml:"provider"`

	OpenRouter     OpenRouter     `mapstructure:"openrouter" yaml:"openrouter"`
	Anthropic      Anthropic      `mapstructure:"anthropic" yaml:"anthropic"`
	LocalInference LocalInference `mapstructure:"local_inference" yaml:"local_inference"`

	Retry Retry `mapstructure:"retry" yaml:"retry"`

	// RateLimitPerMinute caps adapter calls across all workers. 0 disables
	// the limiter.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Workers is the concurrency of the LLM perturbation phase.
	Workers int `mapstructure:"workers" yaml:"workers"`

	Database Database `mapstructure:"database" yaml:"database"`
}

// OpenRouter configures OpenRouter.ai API access.
type OpenRouter struct {
	APIKey      string   `mapstructure:"api_key" yaml:"api_key"`
	Model       string   `mapstructure:"model" yaml:"model"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature"` // nil = default 0.2
	MaxTokens   *int     `mapstructure:"max_tokens" yaml:"max_tokens"`  // nil = default 256
}

// Anthropic configures direct Anthropic API access.
type Anthropic struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens *int   `mapstructure:"max_tokens" yaml:"max_tokens"` // nil = default 256
}

// LocalInference configures an OpenAI-compatible local server (Ollama,
// LocalAI).
type LocalInference struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Model          string `mapstructure:"model" yaml:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Retry bounds per-call retries against the adapter. Only transient
// failures are retried; permanent ones fail immediately.
type Retry struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffMS   int `mapstructure:"backoff_ms" yaml:"backoff_ms"`
}

// Database configures the optional LLM usage-tracking store. An empty path
// disables tracking.
type Database struct {
	Path string `mapstructure:"path" yaml:"path"`
}
