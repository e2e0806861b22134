// Package paper simulates the pair trade the monitor is signalling: open a
// position when the z-score breaches the alert threshold, close it when the
// ratio reverts, and keep a running P&L without touching the broker.
package paper

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/models"
	"github.com/BondSpread/iol-arb/internal/stats"
	"github.com/BondSpread/iol-arb/internal/store"
)

const tradesKey = "paper_trades"

// Engine tracks simulated trades across refresh cycles.
// At most one trade is open per pair at any time.
type Engine struct {
	cfg    *config.Config
	store  *store.Store
	logger *zap.Logger

	mu     sync.Mutex
	trades []models.PaperTrade
}

// NewEngine loads any previously persisted trades and returns the engine
func NewEngine(cfg *config.Config, st *store.Store, logger *zap.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  st,
		logger: logger.With(zap.String("component", "paper")),
	}
	if err := st.Load(tradesKey, &e.trades); err != nil {
		logger.Warn("could not load paper trades", zap.Error(err))
	}
	return e
}

// Process evaluates one fresh snapshot against the open/close rules.
// A |z| at or above the alert threshold opens a trade if the pair has none;
// a |z| at or below the close threshold converges any open trade.
func (e *Engine) Process(pair models.PairConfig, snap models.RatioSnapshot, rs *models.RatioStats) {
	if rs == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	absZ := rs.ZScore
	if absZ < 0 {
		absZ = -absZ
	}

	idx := e.openTradeIndex(pair.ID)

	switch {
	case idx < 0 && absZ >= e.cfg.AlertZThreshold:
		trade := models.PaperTrade{
			ID:             uuid.New().String(),
			PairID:         pair.ID,
			PairLabel:      pair.Label,
			OpenedAt:       snap.Timestamp,
			OpenRatio:      snap.Ratio,
			OpenZScore:     rs.ZScore,
			Direction:      stats.DirectionFor(rs.ZScore),
			Notional:       decimal.NewFromFloat(e.cfg.PaperNotional),
			CommissionRate: e.cfg.RoundtripCommission,
			Status:         models.TradeOpen,
		}
		e.trades = append(e.trades, trade)
		e.trim()
		e.persist()
		e.logger.Info("paper trade opened",
			zap.String("pair", pair.ID),
			zap.Float64("ratio", snap.Ratio),
			zap.Float64("z_score", rs.ZScore),
			zap.String("direction", string(trade.Direction)))

	case idx >= 0 && absZ <= e.cfg.PaperCloseZThreshold:
		e.closeAt(idx, snap, rs, "convergence")
		e.persist()
	}
}

// ForceClose closes the open trade for a pair regardless of z-score,
// recording the given reason. Used by the end-of-day controller.
func (e *Engine) ForceClose(pairID string, snap models.RatioSnapshot, rs *models.RatioStats, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.openTradeIndex(pairID)
	if idx < 0 {
		return false
	}
	e.closeAt(idx, snap, rs, reason)
	e.persist()
	return true
}

// Report returns open trades, the most recent closed trades (newest first,
// limit 0 means all) and aggregate stats over every closed trade.
func (e *Engine) Report(limit int) models.PaperTradeReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := models.PaperTradeReport{
		OpenTrades:   []models.PaperTrade{},
		ClosedTrades: []models.PaperTrade{},
		Notional:     decimal.NewFromFloat(e.cfg.PaperNotional),
	}
	var closed []models.PaperTrade
	for _, tr := range e.trades {
		if tr.Status == models.TradeOpen {
			report.OpenTrades = append(report.OpenTrades, tr)
		} else {
			closed = append(closed, tr)
		}
	}
	report.Stats = aggregate(closed)
	for i := len(closed) - 1; i >= 0; i-- {
		if limit > 0 && len(report.ClosedTrades) == limit {
			break
		}
		report.ClosedTrades = append(report.ClosedTrades, closed[i])
	}
	return report
}

// openTradeIndex returns the index of the open trade for pairID, or -1.
// Caller must hold e.mu.
func (e *Engine) openTradeIndex(pairID string) int {
	for i, tr := range e.trades {
		if tr.PairID == pairID && tr.Status == models.TradeOpen {
			return i
		}
	}
	return -1
}

// closeAt settles the trade at index idx against the latest ratio.
// Gross P&L is the favorable move of the ratio relative to entry; the
// direction decides which way counts as favorable. Caller must hold e.mu.
func (e *Engine) closeAt(idx int, snap models.RatioSnapshot, rs *models.RatioStats, reason string) {
	tr := &e.trades[idx]

	var grossPct float64
	if tr.OpenRatio != 0 {
		if tr.Direction == models.LocalCheap {
			grossPct = (snap.Ratio - tr.OpenRatio) / tr.OpenRatio
		} else {
			grossPct = (tr.OpenRatio - snap.Ratio) / tr.OpenRatio
		}
	}
	netPct := grossPct - tr.CommissionRate

	closedAt := snap.Timestamp
	closeRatio := snap.Ratio
	gross := tr.Notional.Mul(decimal.NewFromFloat(grossPct))
	net := tr.Notional.Mul(decimal.NewFromFloat(netPct))

	tr.ClosedAt = &closedAt
	tr.CloseRatio = &closeRatio
	if rs != nil {
		z := rs.ZScore
		tr.CloseZScore = &z
	}
	tr.CloseReason = reason
	tr.GrossPnLPct = &grossPct
	tr.NetPnLPct = &netPct
	tr.GrossPnL = &gross
	tr.NetPnL = &net
	tr.Status = models.TradeClosed

	e.logger.Info("paper trade closed",
		zap.String("pair", tr.PairID),
		zap.String("reason", reason),
		zap.Float64("open_ratio", tr.OpenRatio),
		zap.Float64("close_ratio", closeRatio),
		zap.Float64("net_pnl_pct", netPct*100))
}

// trim drops the oldest closed trades once the log exceeds its cap.
// Open trades are never dropped. Caller must hold e.mu.
func (e *Engine) trim() {
	max := e.cfg.MaxPaperTrades
	if max <= 0 || len(e.trades) <= max {
		return
	}
	excess := len(e.trades) - max
	kept := make([]models.PaperTrade, 0, max)
	for _, tr := range e.trades {
		if excess > 0 && tr.Status == models.TradeClosed {
			excess--
			continue
		}
		kept = append(kept, tr)
	}
	e.trades = kept
}

// persist writes the trade log. Caller must hold e.mu.
func (e *Engine) persist() {
	if err := e.store.Save(tradesKey, e.trades); err != nil {
		e.logger.Error("could not persist paper trades", zap.Error(err))
	}
}

// aggregate computes summary statistics over closed trades
func aggregate(closed []models.PaperTrade) *models.PaperTradeStats {
	if len(closed) == 0 {
		return nil
	}

	agg := &models.PaperTradeStats{TotalTrades: len(closed)}
	var grossPctSum, netPctSum, durationSum float64
	for _, tr := range closed {
		if tr.NetPnLPct != nil {
			netPctSum += *tr.NetPnLPct
			if *tr.NetPnLPct > 0 {
				agg.WinningTrades++
			} else {
				agg.LosingTrades++
			}
		}
		if tr.GrossPnLPct != nil {
			grossPctSum += *tr.GrossPnLPct
		}
		if tr.GrossPnL != nil {
			agg.TotalGrossPnL = agg.TotalGrossPnL.Add(*tr.GrossPnL)
		}
		if tr.NetPnL != nil {
			agg.TotalNetPnL = agg.TotalNetPnL.Add(*tr.NetPnL)
		}
		if tr.ClosedAt != nil {
			durationSum += tr.ClosedAt.Sub(tr.OpenedAt).Hours()
		}
	}

	n := float64(len(closed))
	agg.WinRatePct = float64(agg.WinningTrades) / n * 100
	agg.AvgGrossPnLPct = grossPctSum / n * 100
	agg.AvgNetPnLPct = netPctSum / n * 100
	agg.AvgDurationHours = durationSum / n
	return agg
}
