package formatters

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/BondSpread/iol-arb/internal/models"
)

// Colors for different values
var (
	ColorGreen  = text.FgGreen
	ColorRed    = text.FgRed
	ColorYellow = text.FgYellow
	ColorBlue   = text.FgCyan
	ColorWhite  = text.FgWhite
	ColorGray   = text.FgHiBlack
)

// FormatZScore colors a z-score by how stretched the spread is
func FormatZScore(z float64) string {
	s := fmt.Sprintf("%+.2f", z)
	abs := z
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 2.0:
		return ColorRed.Sprint(s)
	case abs >= 1.0:
		return ColorYellow.Sprint(s)
	}
	return s
}

// FormatPnLPct colors a percentage P&L value (already in percent)
func FormatPnLPct(pct float64) string {
	s := fmt.Sprintf("%+.3f%%", pct)
	if pct >= 0 {
		return ColorGreen.Sprint(s)
	}
	return ColorRed.Sprint(s)
}

// FormatPnLAmount colors a currency P&L value
func FormatPnLAmount(amount decimal.Decimal) string {
	s := fmt.Sprintf("ARS %.2f", amount.Abs().InexactFloat64())
	if amount.IsNegative() {
		return ColorRed.Sprint("-" + s)
	}
	return ColorGreen.Sprint(s)
}

// FormatStatusTable renders one row per monitored pair
func FormatStatusTable(report models.StatusReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"Pair", "Local", "Foreign", "Ratio", "Mean", "Z-Score", "Net Edge", "Alert", "EOD"})

	for _, ps := range report.Pairs {
		if ps.LastFetchError != "" && ps.Latest == nil {
			t.AppendRow(table.Row{
				ps.Config.Label, "-", "-", "-", "-", "-", "-",
				ColorRed.Sprint("FETCH ERROR"), "-"})
			continue
		}
		if ps.Latest == nil {
			t.AppendRow(table.Row{
				ps.Config.Label, "-", "-", "-", "-", "-", "-",
				ColorGray.Sprint("no data"), "-"})
			continue
		}

		mean, z, netEdge := "-", "-", "-"
		if ps.Stats != nil {
			mean = fmt.Sprintf("%.4f", ps.Stats.Mean)
			z = FormatZScore(ps.Stats.ZScore)
		}
		if ps.Commission != nil {
			edge := fmt.Sprintf("%+.3f%%", ps.Commission.NetSpreadPct)
			if ps.Commission.IsProfitable {
				netEdge = ColorGreen.Sprint(edge)
			} else {
				netEdge = ColorGray.Sprint(edge)
			}
		}

		alert := ""
		if ps.Alert != nil {
			alert = ColorRed.Sprint(string(ps.Alert.Direction))
		}
		if ps.LastFetchError != "" {
			alert = ColorYellow.Sprint("STALE")
		}

		eod := ""
		if ps.EODAction != models.EODNone {
			eod = string(ps.EODAction)
		}

		t.AppendRow(table.Row{
			ps.Config.Label,
			fmt.Sprintf("%.2f", ps.Latest.LocalPrice.InexactFloat64()),
			fmt.Sprintf("%.2f", ps.Latest.ForeignPrice.InexactFloat64()),
			fmt.Sprintf("%.4f", ps.Latest.Ratio),
			mean,
			z,
			netEdge,
			alert,
			eod,
		})
	}

	return t.Render()
}

// FormatHistoryTable renders the most recent ratio snapshots, oldest first
func FormatHistoryTable(report models.HistoryReport, tail int) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Time", "Local", "Foreign", "Ratio"})

	history := report.History
	if tail > 0 && len(history) > tail {
		history = history[len(history)-tail:]
	}
	for _, snap := range history {
		t.AppendRow(table.Row{
			snap.Timestamp.Format("01-02 15:04:05"),
			fmt.Sprintf("%.2f", snap.LocalPrice.InexactFloat64()),
			fmt.Sprintf("%.2f", snap.ForeignPrice.InexactFloat64()),
			fmt.Sprintf("%.5f", snap.Ratio),
		})
	}
	if len(history) == 0 {
		t.AppendRow(table.Row{"No history", "", "", ""})
	}

	return t.Render()
}

// FormatTradesTable renders open and closed paper trades
func FormatTradesTable(trades []models.PaperTrade) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"Opened", "Pair", "Direction", "Open Ratio", "Close Ratio", "Net P&L %", "Net P&L", "Reason"})

	for _, tr := range trades {
		closeRatio, netPct, netAmount, reason := "-", "-", "-", ""
		if tr.Status == models.TradeClosed {
			if tr.CloseRatio != nil {
				closeRatio = fmt.Sprintf("%.5f", *tr.CloseRatio)
			}
			if tr.NetPnLPct != nil {
				netPct = FormatPnLPct(*tr.NetPnLPct * 100)
			}
			if tr.NetPnL != nil {
				netAmount = FormatPnLAmount(*tr.NetPnL)
			}
			reason = tr.CloseReason
		} else {
			reason = ColorBlue.Sprint("open")
		}

		t.AppendRow(table.Row{
			tr.OpenedAt.Format("01-02 15:04"),
			tr.PairLabel,
			tr.Direction,
			fmt.Sprintf("%.5f", tr.OpenRatio),
			closeRatio,
			netPct,
			netAmount,
			reason,
		})
	}
	if len(trades) == 0 {
		t.AppendRow(table.Row{"No trades", "", "", "", "", "", "", ""})
	}

	return t.Render()
}

// FormatTradeStats renders the aggregate paper trading summary
func FormatTradeStats(stats *models.PaperTradeStats) string {
	if stats == nil {
		return "No closed trades yet"
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Closed Trades", stats.TotalTrades})
	t.AppendRow(table.Row{"Win Rate", fmt.Sprintf("%.1f%% (%d W / %d L)",
		stats.WinRatePct, stats.WinningTrades, stats.LosingTrades)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Avg Gross P&L", FormatPnLPct(stats.AvgGrossPnLPct)})
	t.AppendRow(table.Row{"Avg Net P&L", FormatPnLPct(stats.AvgNetPnLPct)})
	t.AppendRow(table.Row{"Total Net P&L", FormatPnLAmount(stats.TotalNetPnL)})
	t.AppendRow(table.Row{"Avg Duration", fmt.Sprintf("%.1fh", stats.AvgDurationHours)})

	return t.Render()
}

// FormatOrderLogTable renders executed orders, newest first
func FormatOrderLogTable(entries []models.OrderLogEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"Time", "Symbol", "Side", "Qty", "Price", "Settle", "Mode", "Result"})

	for _, e := range entries {
		sideColor := ColorGreen
		if e.Side == models.Sell {
			sideColor = ColorRed
		}

		mode := ColorYellow.Sprint("sandbox")
		if !e.Sandbox {
			mode = ColorRed.Sprint("LIVE")
		}

		result := ColorGreen.Sprint("ok " + e.OrderID)
		if !e.Success {
			result = ColorRed.Sprint(e.Message)
		}

		t.AppendRow(table.Row{
			e.Timestamp.Format("01-02 15:04:05"),
			e.Symbol,
			sideColor.Sprint(e.Side),
			e.Quantity,
			fmt.Sprintf("%.2f", e.Price.InexactFloat64()),
			e.Settlement,
			mode,
			result,
		})
	}
	if len(entries) == 0 {
		t.AppendRow(table.Row{"No orders", "", "", "", "", "", "", ""})
	}

	return t.Render()
}

// FormatTimestamp formats a timestamp for display
func FormatTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
