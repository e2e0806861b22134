package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates which leg of a pair trades cheap relative to the other
type Direction string

const (
	LocalCheap   Direction = "LOCAL_CHEAP"   // local-law leg cheap (z < 0)
	ForeignCheap Direction = "FOREIGN_CHEAP" // foreign-law leg cheap (z >= 0)
)

// EODAction is the per-pair decision taken when the EOD window activates
type EODAction string

const (
	EODNone  EODAction = "none"
	EODHold  EODAction = "hold"  // spread persists, carry overnight
	EODClose EODAction = "close" // spread converged, force close
)

// TradeStatus represents the lifecycle state of a paper trade
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// PairConfig defines one local-law vs foreign-law bond pair to monitor.
// Configured once at startup and never mutated.
type PairConfig struct {
	ID            string `json:"id" mapstructure:"id"`
	Label         string `json:"label" mapstructure:"label"`
	LocalSymbol   string `json:"local_symbol" mapstructure:"local_symbol"`
	ForeignSymbol string `json:"foreign_symbol" mapstructure:"foreign_symbol"`
	Description   string `json:"description" mapstructure:"description"`
}

// Quote is a single price snapshot for one instrument
type Quote struct {
	Symbol    string           `json:"symbol"`
	Price     decimal.Decimal  `json:"price"`
	Bid       *decimal.Decimal `json:"bid,omitempty"`
	Ask       *decimal.Decimal `json:"ask,omitempty"`
	Volume    *float64         `json:"volume,omitempty"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// RatioSnapshot records ratio = local price / foreign price at a point in time
type RatioSnapshot struct {
	PairID       string          `json:"pair_id"`
	Timestamp    time.Time       `json:"timestamp"`
	LocalPrice   decimal.Decimal `json:"local_price"`
	ForeignPrice decimal.Decimal `json:"foreign_price"`
	Ratio        float64         `json:"ratio"`

	LocalBid   *decimal.Decimal `json:"local_bid,omitempty"`
	LocalAsk   *decimal.Decimal `json:"local_ask,omitempty"`
	ForeignBid *decimal.Decimal `json:"foreign_bid,omitempty"`
	ForeignAsk *decimal.Decimal `json:"foreign_ask,omitempty"`
}

// RatioStats holds rolling statistics over the most recent ratio window
type RatioStats struct {
	Mean            float64 `json:"mean"`
	Std             float64 `json:"std"` // sample std, n-1 divisor
	ZScore          float64 `json:"z_score"`
	UpperBand       float64 `json:"upper_band"` // mean + 2*std
	LowerBand       float64 `json:"lower_band"` // mean - 2*std
	UpperBand1Sigma float64 `json:"upper_band_1sigma"`
	LowerBand1Sigma float64 `json:"lower_band_1sigma"`
	WindowSize      int     `json:"window_size"` // observations actually used
}

// CommissionInfo converts a statistical edge into a cost-adjusted verdict.
// Percentage fields are expressed in percent (0.5 means 0.5%).
type CommissionInfo struct {
	RoundtripCostPct float64 `json:"roundtrip_cost_pct"`
	GrossSpreadPct   float64 `json:"gross_spread_pct"`
	NetSpreadPct     float64 `json:"net_spread_pct"`
	IsProfitable     bool    `json:"is_profitable"`
	BreakevenRatio   float64 `json:"breakeven_ratio"`
}

// Alert fires when the ratio z-score crosses the alert threshold
type Alert struct {
	PairID      string          `json:"pair_id"`
	PairLabel   string          `json:"pair_label"`
	Timestamp   time.Time       `json:"timestamp"`
	Ratio       float64         `json:"ratio"`
	ZScore      float64         `json:"z_score"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
	Commission  *CommissionInfo `json:"commission,omitempty"`
}

// PairState aggregates everything the monitor knows about one pair
type PairState struct {
	Config         PairConfig      `json:"config"`
	Latest         *RatioSnapshot  `json:"latest,omitempty"`
	Stats          *RatioStats     `json:"stats,omitempty"`
	Alert          *Alert          `json:"alert,omitempty"`
	Commission     *CommissionInfo `json:"commission,omitempty"`
	History        []RatioSnapshot `json:"history"`
	LastFetchError string          `json:"last_fetch_error,omitempty"`
	EODSignal      bool            `json:"eod_signal"`
	EODAction      EODAction       `json:"eod_action"`
}

// PaperTrade is one simulated round-trip. Created on an open signal and
// transitioned to closed exactly once; the trade log is append-only.
type PaperTrade struct {
	ID          string     `json:"id"`
	PairID      string     `json:"pair_id"`
	PairLabel   string     `json:"pair_label"`
	OpenedAt    time.Time  `json:"opened_at"`
	OpenRatio   float64    `json:"open_ratio"`
	OpenZScore  float64    `json:"open_z_score"`
	Direction   Direction  `json:"direction"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseRatio  *float64   `json:"close_ratio,omitempty"`
	CloseZScore *float64   `json:"close_z_score,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`

	Notional       decimal.Decimal `json:"notional_ars"`
	CommissionRate float64         `json:"roundtrip_commission"` // fraction, 0.005 = 0.5%

	GrossPnLPct *float64         `json:"gross_pnl_pct,omitempty"`
	NetPnLPct   *float64         `json:"net_pnl_pct,omitempty"`
	GrossPnL    *decimal.Decimal `json:"gross_pnl_ars,omitempty"`
	NetPnL      *decimal.Decimal `json:"net_pnl_ars,omitempty"`

	Status TradeStatus `json:"status"`
}

// PaperTradeStats aggregates closed trades; derived on demand, never stored
type PaperTradeStats struct {
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	WinRatePct       float64         `json:"win_rate_pct"`
	AvgGrossPnLPct   float64         `json:"avg_gross_pnl_pct"`
	AvgNetPnLPct     float64         `json:"avg_net_pnl_pct"`
	TotalGrossPnL    decimal.Decimal `json:"total_gross_pnl_ars"`
	TotalNetPnL      decimal.Decimal `json:"total_net_pnl_ars"`
	AvgDurationHours float64         `json:"avg_duration_hours"`
}

// OrderRequest places a limit order on one leg of a pair
type OrderRequest struct {
	PairID     string          `json:"pair_id"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Settlement string          `json:"settlement"` // "t0" | "t1" | "t2"
	Sandbox    bool            `json:"sandbox"`
}

// OrderResponse is the result of a placed order
type OrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
	Sandbox bool   `json:"sandbox"`
}

// OrderLogEntry is one executed order, persisted to the operations log
type OrderLogEntry struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	PairID     string          `json:"pair_id"`
	PairLabel  string          `json:"pair_label"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Settlement string          `json:"settlement"`
	Sandbox    bool            `json:"sandbox"`
	Success    bool            `json:"success"`
	OrderID    string          `json:"order_id,omitempty"`
	Message    string          `json:"message"`
}

// StatusReport is the read-only projection of the whole monitor
type StatusReport struct {
	Pairs          []PairState `json:"pairs"`
	LastRefreshAt  *time.Time  `json:"last_refresh_at,omitempty"`
	NextRefreshAt  *time.Time  `json:"next_refresh_at,omitempty"`
	RefreshRunning bool        `json:"refresh_running"`
	Authenticated  bool        `json:"authenticated"`
	MarketOpen     bool        `json:"market_open"`
	EODSignal      bool        `json:"eod_signal"`
	CommissionRate float64     `json:"commission_rate"`
}

// HistoryReport is the bounded ratio history for one pair
type HistoryReport struct {
	PairID    string          `json:"pair_id"`
	PairLabel string          `json:"pair_label"`
	History   []RatioSnapshot `json:"history"`
	Stats     *RatioStats     `json:"stats,omitempty"`
}

// PaperTradeReport lists open and closed paper trades with aggregate stats
type PaperTradeReport struct {
	OpenTrades   []PaperTrade     `json:"open_trades"`
	ClosedTrades []PaperTrade     `json:"closed_trades"`
	Stats        *PaperTradeStats `json:"stats,omitempty"`
	Notional     decimal.Decimal  `json:"notional_ars"`
}
