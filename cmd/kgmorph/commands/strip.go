package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entalign/kgmorph/errors"
	"github.com/entalign/kgmorph/kg"
)

var stripOutput string

// StripCmd represents the strip command
var StripCmd = &cobra.Command{
	Use:   "strip <kg.json>",
	Short: "Reduce a knowledge graph to its perturbable core",
	Long: `Strip a knowledge graph down to the fields the perturbation pipeline
consumes: entity ids, names, descriptions and types, and relation triplets.
Provenance spans, source values and other exporter metadata are dropped.

Examples:
  kgmorph strip full_kg.json -o slim_kg.json`,
	Args: cobra.ExactArgs(1),
	RunE: runStrip,
}

func init() {
	StripCmd.Flags().StringVarP(&stripOutput, "output", "o", "", "Output path (default: <input>.stripped.json)")
}

func runStrip(cmd *cobra.Command, args []string) error {
	input := args[0]

	data, err := os.ReadFile(input)
	if err != nil {
		return errors.Wrapf(err, "reading %s", input)
	}
	stripped, err := kg.Strip(data)
	if err != nil {
		return err
	}

	outPath := stripOutput
	if outPath == "" {
		outPath = derivedPath(input, ".stripped.json")
	}
	if err := os.WriteFile(outPath, stripped, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", outPath)
	}

	fmt.Printf("✓ Stripped graph written to %s\n", outPath)
	return nil
}
