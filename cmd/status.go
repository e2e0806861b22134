package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BondSpread/iol-arb/pkg/formatters"
)

func init() {
	statusCmd.Flags().Bool("refresh", false, "fetch fresh quotes before printing")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of every monitored pair",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	if refresh {
		if !mon.RefreshAll(cmd.Context()) {
			fmt.Println("⏳ A refresh cycle is already running, showing current state")
		}
	}

	report := mon.Status()
	report.Authenticated = creds.Authenticated()

	market := formatters.ColorRed.Sprint("CLOSED")
	if report.MarketOpen {
		market = formatters.ColorGreen.Sprint("OPEN")
	}
	fmt.Printf("📊 Bond Pair Monitor — market %s", market)
	if report.EODSignal {
		fmt.Printf(" — %s", formatters.ColorYellow.Sprint("EOD window"))
	}
	fmt.Println()

	if report.LastRefreshAt != nil {
		fmt.Printf("Last refresh: %s", formatters.FormatTimestamp(*report.LastRefreshAt))
		if report.NextRefreshAt != nil {
			fmt.Printf(" | next: %s", formatters.FormatTimestamp(*report.NextRefreshAt))
		}
		fmt.Println()
	}
	session := "not authenticated"
	if report.Authenticated {
		session = "authenticated"
	}
	fmt.Printf("Round-trip commission: %.2f%% | IOL session: %s\n\n",
		report.CommissionRate*100, session)

	fmt.Println(formatters.FormatStatusTable(report))

	for _, ps := range report.Pairs {
		if ps.Alert != nil {
			fmt.Printf("🔔 %s: %s\n", ps.Config.Label, ps.Alert.Description)
		}
	}
	return nil
}
