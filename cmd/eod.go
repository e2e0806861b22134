package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BondSpread/iol-arb/internal/models"
)

func init() {
	rootCmd.AddCommand(eodCmd)
}

var eodCmd = &cobra.Command{
	Use:   "eod [on|off]",
	Short: "Manually toggle the end-of-day window",
	Long: `Forces the end-of-day window on or off. Turning it on immediately
re-evaluates every pair: converged paper trades are closed with reason
eod_close, wide spreads are marked to hold overnight. The monitor loop
manages this automatically; the command exists for manual operation.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runEOD,
}

func runEOD(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "on":
		mon.SetEODSignal(true)
	case "off":
		mon.SetEODSignal(false)
	default:
		return fmt.Errorf("invalid argument %q, want on or off", args[0])
	}

	report := mon.Status()
	fmt.Printf("🌆 EOD window: %v\n", report.EODSignal)
	for _, ps := range report.Pairs {
		if ps.EODAction != models.EODNone {
			fmt.Printf("  • %s: %s\n", ps.Config.Label, ps.EODAction)
		}
	}
	return nil
}
