package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/entalign/kgmorph/config"
	"github.com/entalign/kgmorph/errors"
)

var (
	configPerturbPath string
	configLLMPath     string
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect kgmorph configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the effective perturbation and LLM configuration after defaults,
file values and environment overrides are merged. Credentials are redacted.

Examples:
  kgmorph config show --config perturb.yaml
  kgmorph config show --llm-config llm.yaml`,
	RunE: runConfigShow,
}

func init() {
	configShowCmd.Flags().StringVarP(&configPerturbPath, "config", "c", "", "Perturbation config YAML")
	configShowCmd.Flags().StringVar(&configLLMPath, "llm-config", "", "LLM adapter config YAML")
	ConfigCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configPerturbPath != "" {
		cfg, err := config.LoadPerturbation(configPerturbPath)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "rendering perturbation config")
		}
		fmt.Println("# perturbation")
		fmt.Print(string(out))
	}

	llmCfg, err := config.LoadLLM(configLLMPath)
	if err != nil {
		return err
	}
	llmCfg.OpenRouter.APIKey = redact(llmCfg.OpenRouter.APIKey)
	llmCfg.Anthropic.APIKey = redact(llmCfg.Anthropic.APIKey)

	out, err := yaml.Marshal(llmCfg)
	if err != nil {
		return errors.Wrap(err, "rendering LLM config")
	}
	fmt.Println("# llm")
	fmt.Print(string(out))
	return nil
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	return "[redacted]"
}
