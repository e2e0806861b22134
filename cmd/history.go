package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BondSpread/iol-arb/pkg/formatters"
)

func init() {
	historyCmd.Flags().Int("limit", 30, "number of most recent points to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [pair-id]",
	Short: "Show the ratio history for one pair",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	report, err := mon.PairHistory(args[0], limit)
	if err != nil {
		return fmt.Errorf("history for %s: %w", args[0], err)
	}

	fmt.Printf("📈 %s — showing %d points\n", report.PairLabel, len(report.History))
	if report.Stats != nil {
		fmt.Printf("mean=%.5f std=%.5f z=%s window=%d\n",
			report.Stats.Mean,
			report.Stats.Std,
			formatters.FormatZScore(report.Stats.ZScore),
			report.Stats.WindowSize)
	}
	fmt.Println(formatters.FormatHistoryTable(report, 0))
	return nil
}
