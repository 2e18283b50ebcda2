package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entalign/kgmorph/cmd/kgmorph/commands"
	"github.com/entalign/kgmorph/logger"
)

var verbosity int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kgmorph",
	Short: "Seeded perturbation of JSON knowledge graphs",
	Long: `kgmorph applies structural and LLM-driven textual perturbations to a
JSON knowledge graph and emits the perturbed graph together with an exact
ground-truth entity mapping.

Structural perturbations (entity and edge removal and addition) are fully
deterministic for a given seed. Textual perturbations route each attribute
through a configured LLM adapter; the set of attempted rewrites is seeded
even though adapter output is not.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Initialize(false, verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v for debug, -vv for trace)")

	rootCmd.AddCommand(commands.PerturbCmd)
	rootCmd.AddCommand(commands.AlignCmd)
	rootCmd.AddCommand(commands.StripCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
