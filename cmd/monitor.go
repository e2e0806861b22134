package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/monitor"
)

// eodLeadTime is how long before the session close the EOD window activates
const eodLeadTime = 10 * time.Minute

func init() {
	monitorCmd.Flags().Bool("ignore-market-hours", false, "refresh even while the market is closed")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the continuous bond-pair refresh loop",
	Long: `Polls both legs of every configured pair on the refresh interval,
updating ratio history, statistics and alerts. Ten minutes before the
session close the end-of-day window activates: converged paper trades
are flattened and wide spreads are held overnight. Ctrl-C stops the loop.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ignoreHours, _ := cmd.Flags().GetBool("ignore-market-hours")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📡 Monitoring %d bond pairs every %s\n", len(cfg.Pairs), cfg.RefreshInterval)
	if ignoreHours {
		fmt.Println("   Market-hours gating disabled")
	}

	// First cycle immediately, then on the ticker
	runCycle(ctx, ignoreHours)

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		mon.SetNextRefreshAt(time.Now().Add(cfg.RefreshInterval))
		select {
		case <-ctx.Done():
			fmt.Println("\n👋 Monitor stopped")
			return nil
		case <-ticker.C:
			runCycle(ctx, ignoreHours)
		}
	}
}

// runCycle runs one refresh pass and manages the EOD window around it
func runCycle(ctx context.Context, ignoreHours bool) {
	now := time.Now()
	open := monitor.MarketOpen(now)

	if open || ignoreHours {
		updateEODWindow(now, open)
		mon.RefreshAll(ctx)
		return
	}

	// Outside the session: make sure the EOD flag from the previous day
	// does not leak into the next one
	if mon.EODSignal() {
		mon.SetEODSignal(false)
	}
	logger.Debug("market closed, skipping refresh")
}

// updateEODWindow activates the EOD signal inside the lead window before
// close and clears it once a new session is underway.
func updateEODWindow(now time.Time, open bool) {
	if !open {
		return
	}
	closeAt := monitor.CloseTime(now)
	inWindow := now.After(closeAt.Add(-eodLeadTime))

	switch {
	case inWindow && !mon.EODSignal():
		logger.Info("entering end-of-day window", zap.Time("close", closeAt))
		mon.SetEODSignal(true)
	case !inWindow && mon.EODSignal():
		mon.SetEODSignal(false)
	}
}
