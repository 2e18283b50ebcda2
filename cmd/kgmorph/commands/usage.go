package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entalign/kgmorph/ai/tracker"
	"github.com/entalign/kgmorph/errors"
)

var (
	usageDBPath string
	usageSince  string
	usageRunID  string
)

// UsageCmd represents the usage command
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show LLM usage and cost statistics",
	Long: `Report aggregate LLM call statistics from the usage-tracking database,
or a per-operation breakdown for a single run.

Examples:
  kgmorph usage --db kgmorph.db
  kgmorph usage --db kgmorph.db --since 168h
  kgmorph usage --db kgmorph.db --run-id 6f1b...`,
	RunE: runUsage,
}

func init() {
	UsageCmd.Flags().StringVar(&usageDBPath, "db", "", "Usage-tracking database path (required)")
	UsageCmd.Flags().StringVar(&usageSince, "since", "24h", "Window for aggregate stats (Go duration)")
	UsageCmd.Flags().StringVar(&usageRunID, "run-id", "", "Show per-operation breakdown for one run")
	_ = UsageCmd.MarkFlagRequired("db")
}

func runUsage(cmd *cobra.Command, args []string) error {
	usage, err := tracker.Open(usageDBPath)
	if err != nil {
		return err
	}
	defer usage.Close()

	if usageRunID != "" {
		breakdown, err := usage.GetRunBreakdown(usageRunID)
		if err != nil {
			return err
		}
		if len(breakdown) == 0 {
			fmt.Printf("No successful calls recorded for run %s\n", usageRunID)
			return nil
		}
		fmt.Printf("Run %s:\n", usageRunID)
		for _, op := range breakdown {
			fmt.Printf("  %-24s %5d calls  %8d tokens  $%.4f\n",
				op.OperationType, op.RequestCount, op.TotalTokens, op.TotalCost)
		}
		return nil
	}

	window, err := time.ParseDuration(usageSince)
	if err != nil {
		return errors.Wrapf(err, "invalid --since duration %q", usageSince)
	}
	stats, err := usage.GetUsageStats(time.Now().Add(-window))
	if err != nil {
		return err
	}

	fmt.Printf("LLM usage over the last %s:\n", usageSince)
	fmt.Printf("  Requests:     %d (%d successful, %.1f%%)\n",
		stats.TotalRequests, stats.SuccessfulRequests, stats.SuccessRate*100)
	fmt.Printf("  Tokens:       %d\n", stats.TotalTokens)
	fmt.Printf("  Cost:         $%.4f\n", stats.TotalCost)
	fmt.Printf("  Models used:  %d\n", stats.UniqueModels)
	return nil
}
