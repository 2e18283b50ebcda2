package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/entalign/kgmorph/errors"
)

// LoadPerturbation reads a perturbation config from a YAML file.
// Unrecognized keys are ignored; missing keys take their defaults.
func LoadPerturbation(path string) (*Perturbation, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	SetPerturbationDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading perturbation config %s", path)
	}

	var cfg Perturbation
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshaling perturbation config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid perturbation config %s", path)
	}
	return &cfg, nil
}

// Validate rejects configurations no run could honor.
func (c *Perturbation) Validate() error {
	for _, count := range []struct {
		name  string
		value int
	}{
		{"remove_entities", c.RemoveEntities},
		{"add_entities", c.AddEntities},
		{"remove_edges", c.RemoveEdges},
		{"add_edges", c.AddEdges},
	} {
		if count.value < 0 {
			return errors.Newf("%s must not be negative, got %d", count.name, count.value)
		}
	}
	if c.EdgeRetryLimit < 1 {
		return errors.Newf("edge_retry_limit must be at least 1, got %d", c.EdgeRetryLimit)
	}
	return nil
}

// LoadLLM reads the LLM adapter config from a YAML file, with environment
// overrides under the KGMORPH_ prefix (e.g. KGMORPH_OPENROUTER_API_KEY).
// A missing file is not an error: defaults plus environment apply, matching
// runs that do not enable any LLM perturbation.
func LoadLLM(path string) (*LLM, error) {
	v := viper.New()
	v.SetEnvPrefix("KGMORPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSensitiveEnvVars(v)
	SetLLMDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "reading LLM config %s", path)
			}
		}
	}

	var cfg LLM
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling LLM config")
	}
	return &cfg, nil
}

// bindSensitiveEnvVars maps credentials to their conventional environment
// variable names so keys never need to live in config files.
func bindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("openrouter.api_key", "KGMORPH_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("anthropic.api_key", "KGMORPH_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}
