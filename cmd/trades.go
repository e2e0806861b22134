package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BondSpread/iol-arb/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().Int("limit", 0, "Show only the N most recent closed trades (0 = all)")
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Show the paper trading book and its performance",
	RunE:  runTrades,
}

func runTrades(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	report := paperEngine.Report(limit)

	fmt.Printf("📒 Paper trading — notional ARS %.0f per trade\n\n", report.Notional.InexactFloat64())

	if len(report.OpenTrades) > 0 {
		fmt.Printf("Open positions (%d):\n", len(report.OpenTrades))
		fmt.Println(formatters.FormatTradesTable(report.OpenTrades))
		fmt.Println()
	}

	fmt.Printf("Closed trades (%d):\n", len(report.ClosedTrades))
	fmt.Println(formatters.FormatTradesTable(report.ClosedTrades))
	fmt.Println()
	fmt.Println(formatters.FormatTradeStats(report.Stats))
	return nil
}
