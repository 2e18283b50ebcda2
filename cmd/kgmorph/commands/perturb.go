package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/entalign/kgmorph/ai/provider"
	"github.com/entalign/kgmorph/ai/tracker"
	"github.com/entalign/kgmorph/config"
	"github.com/entalign/kgmorph/errors"
	"github.com/entalign/kgmorph/kg"
	"github.com/entalign/kgmorph/logger"
	"github.com/entalign/kgmorph/perturb"
)

var (
	perturbConfigPath  string
	perturbLLMConfig   string
	perturbOutput      string
	perturbMappingPath string
)

// PerturbCmd represents the perturb command
var PerturbCmd = &cobra.Command{
	Use:   "perturb <kg.json>",
	Short: "Apply seeded perturbations to a knowledge graph",
	Long: `Apply the perturbations described by a config file to a JSON knowledge
graph. Writes the perturbed graph and the ground-truth entity mapping.

Structural operations (remove/add entities and edges) draw from a seeded
sampler and are reproducible. LLM operations require an adapter; configure
one with --llm-config or the KGMORPH_* environment variables.

Examples:
  kgmorph perturb kg.json --config perturb.yaml
  kgmorph perturb kg.json -c perturb.yaml -o kg2.json -m mapping.json
  kgmorph perturb kg.json -c perturb.yaml --llm-config llm.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPerturb,
}

func init() {
	PerturbCmd.Flags().StringVarP(&perturbConfigPath, "config", "c", "", "Perturbation config YAML (required)")
	PerturbCmd.Flags().StringVar(&perturbLLMConfig, "llm-config", "", "LLM adapter config YAML")
	PerturbCmd.Flags().StringVarP(&perturbOutput, "output", "o", "", "Perturbed graph path (default: <input>.perturbed.json)")
	PerturbCmd.Flags().StringVarP(&perturbMappingPath, "mapping", "m", "", "Mapping path (default: <input>.mapping.json)")
	_ = PerturbCmd.MarkFlagRequired("config")
}

func runPerturb(cmd *cobra.Command, args []string) error {
	input := args[0]

	result, cleanup, err := perturbFile(cmd.Context(), input, perturbConfigPath, perturbLLMConfig)
	if err != nil {
		return err
	}
	defer cleanup()

	outPath := perturbOutput
	if outPath == "" {
		outPath = derivedPath(input, ".perturbed.json")
	}
	mappingPath := perturbMappingPath
	if mappingPath == "" {
		mappingPath = derivedPath(input, ".mapping.json")
	}

	graphJSON, err := kg.Dump(result.Graph)
	if err != nil {
		return errors.Wrap(err, "serializing perturbed graph")
	}
	if err := os.WriteFile(outPath, graphJSON, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", outPath)
	}

	mappingJSON, err := json.MarshalIndent(result.Mapping, "", "  ")
	if err != nil {
		return errors.Wrap(err, "serializing mapping")
	}
	mappingJSON = append(mappingJSON, '\n')
	if err := os.WriteFile(mappingPath, mappingJSON, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", mappingPath)
	}

	fmt.Printf("✓ Perturbed graph written to %s (%d entities, %d relations)\n",
		outPath, result.Graph.EntityCount(), result.Graph.RelationCount())
	fmt.Printf("✓ Mapping written to %s (%d entries)\n", mappingPath, len(result.Mapping))
	reportDiagnostics(result.Diagnostics)
	return nil
}

// perturbFile runs one perturbation over the graph at path. The returned
// cleanup closes the usage tracker, if one was opened.
func perturbFile(ctx context.Context, path, cfgPath, llmCfgPath string) (*perturb.Result, func(), error) {
	noop := func() {}

	cfg, err := config.LoadPerturbation(cfgPath)
	if err != nil {
		return nil, noop, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, noop, errors.Wrapf(err, "reading %s", path)
	}
	graph, err := kg.Load(data)
	if err != nil {
		return nil, noop, err
	}

	opts := perturb.Options{
		Logger: logger.Logger,
		RunID:  uuid.New().String(),
	}
	cleanup := noop

	if cfg.LLMPerturbEntities.Enabled() || cfg.LLMRenameRelations {
		llmCfg, err := config.LoadLLM(llmCfgPath)
		if err != nil {
			return nil, noop, err
		}

		var usage *tracker.UsageTracker
		if llmCfg.Database.Path != "" {
			usage, err = tracker.Open(llmCfg.Database.Path)
			if err != nil {
				return nil, noop, err
			}
			cleanup = func() {
				if err := usage.Close(); err != nil {
					logger.Logger.Warnw("Failed to close usage tracker", "error", err)
				}
			}
		}

		generator, err := provider.NewGeneratorFromConfig(&provider.GeneratorFromConfig{
			LLM:    llmCfg,
			RunID:  opts.RunID,
			Usage:  usage,
			Logger: logger.Logger,
		})
		if err != nil {
			cleanup()
			return nil, noop, err
		}

		opts.Generator = generator
		opts.Workers = llmCfg.Workers
		opts.RateLimitPerMinute = llmCfg.RateLimitPerMinute
		opts.Retry = llmCfg.Retry
	}

	result, err := perturb.NewEngine(*cfg, opts).Perturb(ctx, graph)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return result, cleanup, nil
}

func derivedPath(input, suffix string) string {
	base := strings.TrimSuffix(input, ".json")
	return base + suffix
}

func reportDiagnostics(diags []perturb.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d)
	}
}
