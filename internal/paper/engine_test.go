package paper

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/models"
	"github.com/BondSpread/iol-arb/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		AlertZThreshold:      2.0,
		PaperCloseZThreshold: 0.5,
		RoundtripCommission:  0.005,
		PaperNotional:        100000.0,
		MaxPaperTrades:       500,
	}
}

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return NewEngine(cfg, st, zap.NewNop())
}

var testPair = models.PairConfig{
	ID:            "AL30_GD30",
	Label:         "AL30 / GD30",
	LocalSymbol:   "AL30D",
	ForeignSymbol: "GD30D",
}

func snapshot(ratio float64, at time.Time) models.RatioSnapshot {
	return models.RatioSnapshot{PairID: testPair.ID, Timestamp: at, Ratio: ratio}
}

func TestProcessOpensOnHighZScore(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	now := time.Now().UTC()

	engine.Process(testPair, snapshot(1.10, now), &models.RatioStats{ZScore: 4.25, Mean: 1.005})

	report := engine.Report(0)
	if len(report.OpenTrades) != 1 {
		t.Fatalf("Expected 1 open trade, got %d", len(report.OpenTrades))
	}

	trade := report.OpenTrades[0]
	if trade.Direction != models.ForeignCheap {
		t.Errorf("Expected direction=%s, got %s", models.ForeignCheap, trade.Direction)
	}
	if trade.OpenRatio != 1.10 {
		t.Errorf("Expected open ratio=1.10, got %v", trade.OpenRatio)
	}
	if trade.OpenZScore != 4.25 {
		t.Errorf("Expected open z-score=4.25, got %v", trade.OpenZScore)
	}
	if trade.Status != models.TradeOpen {
		t.Errorf("Expected status=open, got %s", trade.Status)
	}
	if trade.ID == "" {
		t.Error("Expected trade to have an ID")
	}
}

func TestProcessIgnoresLowZScore(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	engine.Process(testPair, snapshot(1.01, time.Now()), &models.RatioStats{ZScore: 1.5})

	report := engine.Report(0)
	if len(report.OpenTrades) != 0 {
		t.Errorf("Expected no open trades below threshold, got %d", len(report.OpenTrades))
	}
}

func TestProcessOpensOnNegativeZScore(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	engine.Process(testPair, snapshot(0.92, time.Now()), &models.RatioStats{ZScore: -3.1})

	report := engine.Report(0)
	if len(report.OpenTrades) != 1 {
		t.Fatalf("Expected 1 open trade, got %d", len(report.OpenTrades))
	}
	if report.OpenTrades[0].Direction != models.LocalCheap {
		t.Errorf("Expected direction=%s, got %s", models.LocalCheap, report.OpenTrades[0].Direction)
	}
}

func TestOnlyOneOpenTradePerPair(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	now := time.Now()

	engine.Process(testPair, snapshot(1.10, now), &models.RatioStats{ZScore: 4.25})
	engine.Process(testPair, snapshot(1.11, now.Add(time.Minute)), &models.RatioStats{ZScore: 4.50})
	engine.Process(testPair, snapshot(1.12, now.Add(2*time.Minute)), &models.RatioStats{ZScore: 4.75})

	report := engine.Report(0)
	if len(report.OpenTrades) != 1 {
		t.Errorf("Expected 1 open trade regardless of repeated signals, got %d", len(report.OpenTrades))
	}
}

func TestProcessClosesOnConvergence(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	openedAt := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	closedAt := openedAt.Add(3 * time.Hour)

	engine.Process(testPair, snapshot(1.10, openedAt), &models.RatioStats{ZScore: 4.25})
	engine.Process(testPair, snapshot(1.02, closedAt), &models.RatioStats{ZScore: 0.3})

	report := engine.Report(0)
	if len(report.OpenTrades) != 0 {
		t.Fatalf("Expected no open trades after convergence, got %d", len(report.OpenTrades))
	}
	if len(report.ClosedTrades) != 1 {
		t.Fatalf("Expected 1 closed trade, got %d", len(report.ClosedTrades))
	}

	trade := report.ClosedTrades[0]
	if trade.CloseReason != "convergence" {
		t.Errorf("Expected close reason=convergence, got %s", trade.CloseReason)
	}
	if trade.CloseRatio == nil || *trade.CloseRatio != 1.02 {
		t.Fatalf("Expected close ratio=1.02, got %v", trade.CloseRatio)
	}

	// Short the ratio from 1.10, covered at 1.02: gross (1.10-1.02)/1.10
	wantGross := 0.08 / 1.10
	if math.Abs(*trade.GrossPnLPct-wantGross) > 1e-9 {
		t.Errorf("Expected gross pnl pct=%v, got %v", wantGross, *trade.GrossPnLPct)
	}
	wantNet := wantGross - 0.005
	if math.Abs(*trade.NetPnLPct-wantNet) > 1e-9 {
		t.Errorf("Expected net pnl pct=%v, got %v", wantNet, *trade.NetPnLPct)
	}

	wantNetARS := wantNet * 100000.0
	gotNetARS, _ := trade.NetPnL.Float64()
	if math.Abs(gotNetARS-wantNetARS) > 0.01 {
		t.Errorf("Expected net pnl ARS=%v, got %v", wantNetARS, gotNetARS)
	}
}

func TestLocalCheapPnLSign(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	now := time.Now()

	// Long the ratio from 0.92, ratio rises to 0.99: profitable
	engine.Process(testPair, snapshot(0.92, now), &models.RatioStats{ZScore: -3.0})
	engine.Process(testPair, snapshot(0.99, now.Add(time.Hour)), &models.RatioStats{ZScore: 0.1})

	report := engine.Report(0)
	if len(report.ClosedTrades) != 1 {
		t.Fatalf("Expected 1 closed trade, got %d", len(report.ClosedTrades))
	}
	trade := report.ClosedTrades[0]
	wantGross := (0.99 - 0.92) / 0.92
	if math.Abs(*trade.GrossPnLPct-wantGross) > 1e-9 {
		t.Errorf("Expected gross pnl pct=%v, got %v", wantGross, *trade.GrossPnLPct)
	}
	if !trade.NetPnL.IsPositive() {
		t.Errorf("Expected positive net pnl, got %s", trade.NetPnL.String())
	}
}

func TestForceClose(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	now := time.Now()

	engine.Process(testPair, snapshot(1.10, now), &models.RatioStats{ZScore: 4.25})

	// Still above the convergence threshold; only the EOD controller closes here
	closed := engine.ForceClose(testPair.ID, snapshot(1.08, now.Add(4*time.Hour)), &models.RatioStats{ZScore: 0.8}, "eod_close")
	if !closed {
		t.Fatal("Expected ForceClose to close the open trade")
	}

	report := engine.Report(0)
	if len(report.ClosedTrades) != 1 {
		t.Fatalf("Expected 1 closed trade, got %d", len(report.ClosedTrades))
	}
	if report.ClosedTrades[0].CloseReason != "eod_close" {
		t.Errorf("Expected close reason=eod_close, got %s", report.ClosedTrades[0].CloseReason)
	}
}

func TestForceCloseWithoutOpenTrade(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	if engine.ForceClose(testPair.ID, snapshot(1.0, time.Now()), nil, "eod_close") {
		t.Error("Expected ForceClose to report false with no open trade")
	}
}

func TestTradesPersistAcrossEngines(t *testing.T) {
	cfg := testConfig()
	st, err := store.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}

	engine := NewEngine(cfg, st, zap.NewNop())
	engine.Process(testPair, snapshot(1.10, time.Now()), &models.RatioStats{ZScore: 4.25})

	reloaded := NewEngine(cfg, st, zap.NewNop())
	report := reloaded.Report(0)
	if len(report.OpenTrades) != 1 {
		t.Fatalf("Expected reloaded engine to see 1 open trade, got %d", len(report.OpenTrades))
	}
	if report.OpenTrades[0].OpenRatio != 1.10 {
		t.Errorf("Expected open ratio=1.10, got %v", report.OpenTrades[0].OpenRatio)
	}
}

func TestAggregateStats(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	// Winner: short from 1.10 to 1.02
	engine.Process(testPair, snapshot(1.10, base), &models.RatioStats{ZScore: 4.25})
	engine.Process(testPair, snapshot(1.02, base.Add(2*time.Hour)), &models.RatioStats{ZScore: 0.3})

	// Loser: short from 1.10, forced out higher at EOD
	engine.Process(testPair, snapshot(1.10, base.Add(3*time.Hour)), &models.RatioStats{ZScore: 3.0})
	engine.ForceClose(testPair.ID, snapshot(1.105, base.Add(4*time.Hour)), &models.RatioStats{ZScore: 2.8}, "eod_close")

	report := engine.Report(0)
	if report.Stats == nil {
		t.Fatal("Expected aggregate stats with closed trades present")
	}
	if report.Stats.TotalTrades != 2 {
		t.Errorf("Expected 2 total trades, got %d", report.Stats.TotalTrades)
	}
	if report.Stats.WinningTrades != 1 || report.Stats.LosingTrades != 1 {
		t.Errorf("Expected 1 winner and 1 loser, got %d/%d", report.Stats.WinningTrades, report.Stats.LosingTrades)
	}
	if report.Stats.WinRatePct != 50.0 {
		t.Errorf("Expected win rate=50%%, got %v", report.Stats.WinRatePct)
	}
	wantAvgDuration := 1.5 // (2h + 1h) / 2
	if math.Abs(report.Stats.AvgDurationHours-wantAvgDuration) > 1e-9 {
		t.Errorf("Expected avg duration=%vh, got %v", wantAvgDuration, report.Stats.AvgDurationHours)
	}
}

func TestReportWithoutClosedTradesHasNoStats(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	engine.Process(testPair, snapshot(1.10, time.Now()), &models.RatioStats{ZScore: 4.25})

	report := engine.Report(0)
	if report.Stats != nil {
		t.Error("Expected nil stats with no closed trades")
	}
}

func TestReportClosedNewestFirstWithLimit(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	ratios := []float64{1.10, 1.11, 1.12}
	for i, r := range ratios {
		at := base.Add(time.Duration(i) * time.Hour)
		engine.Process(testPair, snapshot(r, at), &models.RatioStats{ZScore: 3.0})
		engine.Process(testPair, snapshot(1.0, at.Add(30*time.Minute)), &models.RatioStats{ZScore: 0.1})
	}

	report := engine.Report(2)
	if len(report.ClosedTrades) != 2 {
		t.Fatalf("Expected 2 closed trades with limit=2, got %d", len(report.ClosedTrades))
	}
	if report.ClosedTrades[0].OpenRatio != 1.12 {
		t.Errorf("Expected newest trade first, got open ratio %v", report.ClosedTrades[0].OpenRatio)
	}
	// Aggregate stats still cover all closed trades, not just the page
	if report.Stats == nil || report.Stats.TotalTrades != 3 {
		t.Errorf("Expected stats over all 3 closed trades, got %+v", report.Stats)
	}
}

func TestTrimDropsOldestClosedTrades(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPaperTrades = 3
	engine := newTestEngine(t, cfg)
	base := time.Now()

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		engine.Process(testPair, snapshot(1.10, at), &models.RatioStats{ZScore: 3.0})
		engine.Process(testPair, snapshot(1.0, at.Add(30*time.Minute)), &models.RatioStats{ZScore: 0.1})
	}
	// One still open on top of the closed ones
	engine.Process(testPair, snapshot(1.10, base.Add(10*time.Hour)), &models.RatioStats{ZScore: 3.0})

	report := engine.Report(0)
	total := len(report.OpenTrades) + len(report.ClosedTrades)
	if total > cfg.MaxPaperTrades {
		t.Errorf("Expected at most %d trades after trim, got %d", cfg.MaxPaperTrades, total)
	}
	if len(report.OpenTrades) != 1 {
		t.Errorf("Expected the open trade to survive trimming, got %d open", len(report.OpenTrades))
	}
}
