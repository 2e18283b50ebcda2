package config

import "github.com/spf13/viper"

// SetPerturbationDefaults configures defaults for the perturbation config.
// Missing counts default to zero: no perturbation of that kind.
func SetPerturbationDefaults(v *viper.Viper) {
	v.SetDefault("seed", 0)
	v.SetDefault("remove_entities", 0)
	v.SetDefault("add_entities", 0)
	v.SetDefault("remove_edges", 0)
	v.SetDefault("add_edges", 0)
	v.SetDefault("reassign_ids", false)
	v.SetDefault("allow_self_loops", false)
	v.SetDefault("edge_retry_limit", 10)
	v.SetDefault("llm_perturb_entities.update_name", false)
	v.SetDefault("llm_perturb_entities.update_description", false)
	v.SetDefault("llm_perturb_entities.update_type", false)
	v.SetDefault("llm_rename_relations", false)
}

// SetLLMDefaults configures defaults for the LLM adapter config.
func SetLLMDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openrouter")

	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.temperature", 0.2)
	v.SetDefault("openrouter.max_tokens", 256)

	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.max_tokens", 256)

	v.SetDefault("local_inference.base_url", "http://localhost:11434")
	v.SetDefault("local_inference.model", "llama3.2:3b")
	v.SetDefault("local_inference.timeout_seconds", 120)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_ms", 500)

	v.SetDefault("rate_limit_per_minute", 30)
	v.SetDefault("workers", 4)

	v.SetDefault("database.path", "")
}
