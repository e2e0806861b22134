package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BondSpread/iol-arb/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(quoteCmd)
}

var quoteCmd = &cobra.Command{
	Use:   "quote [symbol...]",
	Short: "Fetch a live quote for one or more bond symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuote,
}

func runQuote(cmd *cobra.Command, args []string) error {
	for _, symbol := range args {
		q, err := client.GetQuote(cmd.Context(), symbol)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", symbol, err)
			continue
		}

		line := fmt.Sprintf("%s  last=%.2f", q.Symbol, q.Price.InexactFloat64())
		if q.Bid != nil && q.Ask != nil {
			line += fmt.Sprintf("  bid=%s ask=%s",
				formatters.ColorGreen.Sprintf("%.2f", q.Bid.InexactFloat64()),
				formatters.ColorRed.Sprintf("%.2f", q.Ask.InexactFloat64()))
		}
		if q.Volume != nil {
			line += fmt.Sprintf("  vol=%.0f", *q.Volume)
		}
		fmt.Println(line)
	}
	return nil
}
