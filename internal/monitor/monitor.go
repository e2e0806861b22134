// Package monitor drives the bond-pair ratio watch: it fetches both legs of
// each configured pair, maintains bounded ratio history with rolling
// statistics, raises commission-aware alerts and feeds the paper engine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BondSpread/iol-arb/internal/cache"
	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/models"
	"github.com/BondSpread/iol-arb/internal/stats"
	"github.com/BondSpread/iol-arb/internal/store"
)

// ErrUnknownPair is returned when a pair ID is not in the configured universe
var ErrUnknownPair = errors.New("unknown pair")

// Argentina has not observed DST since 2009, so a fixed offset is
// correct year-round.
var artZone = time.FixedZone("ART", -3*60*60)

const (
	marketOpenHour  = 11
	marketCloseHour = 17
)

// QuoteSource fetches a market quote for one symbol
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// PaperEngine receives fresh snapshots and EOD close instructions
type PaperEngine interface {
	Process(pair models.PairConfig, snap models.RatioSnapshot, rs *models.RatioStats)
	ForceClose(pairID string, snap models.RatioSnapshot, rs *models.RatioStats, reason string) bool
}

// Monitor owns the per-pair state and the refresh cycle
type Monitor struct {
	cfg    *config.Config
	source QuoteSource
	quotes *cache.Cache
	paper  PaperEngine
	store  *store.Store
	logger *zap.Logger

	mu            sync.RWMutex
	pairs         map[string]*models.PairState
	order         []string
	lastRefreshAt *time.Time
	nextRefreshAt *time.Time
	eodSignal     bool

	refreshing atomic.Bool
}

// New builds a monitor over the configured pair universe
func New(cfg *config.Config, source QuoteSource, quotes *cache.Cache, paper PaperEngine, st *store.Store, logger *zap.Logger) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		source: source,
		quotes: quotes,
		paper:  paper,
		store:  st,
		logger: logger.With(zap.String("component", "monitor")),
		pairs:  make(map[string]*models.PairState, len(cfg.Pairs)),
		order:  make([]string, 0, len(cfg.Pairs)),
	}
	for _, pc := range cfg.Pairs {
		m.pairs[pc.ID] = &models.PairState{
			Config:    pc,
			History:   []models.RatioSnapshot{},
			EODAction: models.EODNone,
		}
		m.order = append(m.order, pc.ID)
	}
	return m
}

// WarmFromDisk restores persisted ratio history so statistics survive a
// restart instead of rebuilding from an empty window.
func (m *Monitor) WarmFromDisk() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ps := range m.pairs {
		var history []models.RatioSnapshot
		if err := m.store.Load(id, &history); err != nil || len(history) == 0 {
			continue
		}
		if len(history) > m.cfg.MaxHistoryPoints {
			history = history[len(history)-m.cfg.MaxHistoryPoints:]
		}
		ps.History = history
		last := history[len(history)-1]
		ps.Latest = &last
		if rs, ok := stats.Compute(history, m.cfg.RollingWindow); ok {
			ps.Stats = rs
			ci := stats.ComputeCommission(last.Ratio, rs.Mean, m.cfg.RoundtripCommission)
			ps.Commission = &ci
		}
		m.logger.Info("restored history",
			zap.String("pair", id),
			zap.Int("points", len(history)))
	}
}

// RefreshAll refreshes every configured pair. It is single-flight: when a
// cycle is already running the call returns false immediately instead of
// queueing behind it.
func (m *Monitor) RefreshAll(ctx context.Context) bool {
	if !m.refreshing.CompareAndSwap(false, true) {
		m.logger.Debug("refresh already running, skipping")
		return false
	}
	defer m.refreshing.Store(false)

	// Pairs refresh concurrently and independently: one pair failing must
	// not cancel or delay its siblings.
	var wg sync.WaitGroup
	for _, id := range m.order {
		wg.Add(1)
		go func(pairID string) {
			defer wg.Done()
			if err := m.refreshPair(ctx, pairID); err != nil {
				m.logger.Warn("pair refresh failed",
					zap.String("pair", pairID),
					zap.Error(err))
			}
		}(id)
	}
	wg.Wait()

	now := time.Now().UTC()
	m.mu.Lock()
	m.lastRefreshAt = &now
	m.mu.Unlock()
	return true
}

// RefreshPair refreshes one pair outside the regular cycle
func (m *Monitor) RefreshPair(ctx context.Context, pairID string) error {
	m.mu.RLock()
	_, ok := m.pairs[pairID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPair, pairID)
	}
	return m.refreshPair(ctx, pairID)
}

// refreshPair fetches both legs, appends a snapshot, re-evaluates
// statistics and alerts and feeds the paper engine. A fetch failure records
// the error and leaves all previously computed state in place. End-of-day
// classification is not part of the refresh; it happens when the signal
// toggles.
func (m *Monitor) refreshPair(ctx context.Context, pairID string) error {
	m.mu.RLock()
	pc := m.pairs[pairID].Config
	m.mu.RUnlock()

	var localQ, foreignQ *models.Quote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := m.getQuote(gctx, pc.LocalSymbol)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", pc.LocalSymbol, err)
		}
		localQ = q
		return nil
	})
	g.Go(func() error {
		q, err := m.getQuote(gctx, pc.ForeignSymbol)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", pc.ForeignSymbol, err)
		}
		foreignQ = q
		return nil
	})
	if err := g.Wait(); err != nil {
		m.setFetchError(pairID, err)
		return err
	}

	if foreignQ.Price.IsZero() {
		err := fmt.Errorf("zero price for %s, ratio undefined", pc.ForeignSymbol)
		m.setFetchError(pairID, err)
		return err
	}

	localPx, _ := localQ.Price.Float64()
	foreignPx, _ := foreignQ.Price.Float64()
	snap := models.RatioSnapshot{
		PairID:       pairID,
		Timestamp:    time.Now().UTC(),
		LocalPrice:   localQ.Price,
		ForeignPrice: foreignQ.Price,
		Ratio:        localPx / foreignPx,
		LocalBid:     localQ.Bid,
		LocalAsk:     localQ.Ask,
		ForeignBid:   foreignQ.Bid,
		ForeignAsk:   foreignQ.Ask,
	}

	m.mu.Lock()
	ps := m.pairs[pairID]
	ps.LastFetchError = ""
	ps.Latest = &snap
	ps.History = append(ps.History, snap)
	if len(ps.History) > m.cfg.MaxHistoryPoints {
		ps.History = ps.History[len(ps.History)-m.cfg.MaxHistoryPoints:]
	}

	rs, ok := stats.Compute(ps.History, m.cfg.RollingWindow)
	if ok {
		ps.Stats = rs
		ci := stats.ComputeCommission(snap.Ratio, rs.Mean, m.cfg.RoundtripCommission)
		ps.Commission = &ci
		m.evaluateAlertLocked(ps, snap, rs, &ci)
	}
	history := make([]models.RatioSnapshot, len(ps.History))
	copy(history, ps.History)
	m.mu.Unlock()

	if err := m.store.Save(pairID, history); err != nil {
		m.logger.Error("could not persist history", zap.String("pair", pairID), zap.Error(err))
	}

	if ok && m.paper != nil {
		m.paper.Process(pc, snap, rs)
	}

	m.logger.Debug("pair refreshed",
		zap.String("pair", pairID),
		zap.Float64("ratio", snap.Ratio))
	return nil
}

// evaluateAlertLocked raises or clears the alert from the fresh statistics.
// Caller must hold m.mu.
func (m *Monitor) evaluateAlertLocked(ps *models.PairState, snap models.RatioSnapshot, rs *models.RatioStats, ci *models.CommissionInfo) {
	if math.Abs(rs.ZScore) < m.cfg.AlertZThreshold {
		ps.Alert = nil
		return
	}

	direction := stats.DirectionFor(rs.ZScore)
	cheap, rich := ps.Config.LocalSymbol, ps.Config.ForeignSymbol
	if direction == models.ForeignCheap {
		cheap, rich = ps.Config.ForeignSymbol, ps.Config.LocalSymbol
	}
	ps.Alert = &models.Alert{
		PairID:      ps.Config.ID,
		PairLabel:   ps.Config.Label,
		Timestamp:   snap.Timestamp,
		Ratio:       snap.Ratio,
		ZScore:      rs.ZScore,
		Direction:   direction,
		Description: fmt.Sprintf("%s rich vs %s (z=%.2f)", rich, cheap, rs.ZScore),
		Commission:  ci,
	}
	m.logger.Info("ratio alert",
		zap.String("pair", ps.Config.ID),
		zap.Float64("z_score", rs.ZScore),
		zap.String("direction", string(direction)),
		zap.Bool("profitable", ci.IsProfitable))
}

// evaluateEODLocked classifies one pair as the end-of-day window activates:
// a spread still wide enough is carried overnight, a converged one is
// flattened. Caller must hold m.mu.
func (m *Monitor) evaluateEODLocked(ps *models.PairState, snap models.RatioSnapshot, rs *models.RatioStats) {
	ps.EODSignal = true
	if math.Abs(rs.ZScore) >= m.cfg.EODHoldThreshold {
		ps.EODAction = models.EODHold
		return
	}

	ps.EODAction = models.EODClose
	if m.paper != nil && m.paper.ForceClose(ps.Config.ID, snap, rs, "eod_close") {
		m.logger.Info("EOD close",
			zap.String("pair", ps.Config.ID),
			zap.Float64("z_score", rs.ZScore))
	}
}

func (m *Monitor) setFetchError(pairID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[pairID].LastFetchError = err.Error()
}

// getQuote consults the short-lived quote cache before hitting the API
func (m *Monitor) getQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.quotes != nil {
		if q, found := m.quotes.GetQuote(symbol); found {
			return q, nil
		}
	}
	q, err := m.source.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if m.quotes != nil {
		m.quotes.SetQuote(symbol, q)
	}
	return q, nil
}

// SetEODSignal toggles the end-of-day window. Turning it on re-evaluates
// every pair immediately with its latest statistics; turning it off clears
// the per-pair actions for the next session.
func (m *Monitor) SetEODSignal(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eodSignal = on
	for _, ps := range m.pairs {
		if !on {
			ps.EODSignal = false
			ps.EODAction = models.EODNone
			continue
		}
		if ps.Latest == nil || ps.Stats == nil {
			// No statistics means no divergence to hold for: treat as
			// converged (z of zero) and flatten anything open.
			ps.EODSignal = true
			ps.EODAction = models.EODClose
			if ps.Latest != nil && m.paper != nil {
				m.paper.ForceClose(ps.Config.ID, *ps.Latest, nil, "eod_close")
			}
			continue
		}
		m.evaluateEODLocked(ps, *ps.Latest, ps.Stats)
	}
	m.logger.Info("EOD signal set", zap.Bool("active", on))
}

// EODSignal reports whether the EOD window is active
func (m *Monitor) EODSignal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eodSignal
}

// SetNextRefreshAt records when the scheduler will run next, for display
func (m *Monitor) SetNextRefreshAt(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRefreshAt = &t
}

// Status returns a point-in-time projection of all pair state
func (m *Monitor) Status() models.StatusReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := models.StatusReport{
		Pairs:          make([]models.PairState, 0, len(m.order)),
		LastRefreshAt:  m.lastRefreshAt,
		NextRefreshAt:  m.nextRefreshAt,
		RefreshRunning: m.refreshing.Load(),
		MarketOpen:     MarketOpen(time.Now()),
		EODSignal:      m.eodSignal,
		CommissionRate: m.cfg.RoundtripCommission,
	}
	for _, id := range m.order {
		ps := m.pairs[id]
		cp := *ps
		cp.History = nil // history has its own query
		report.Pairs = append(report.Pairs, cp)
	}
	return report
}

// PairHistory returns the most recent limit points and current stats for one
// pair. A limit of 0 returns the whole bounded history.
func (m *Monitor) PairHistory(pairID string, limit int) (models.HistoryReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ps, ok := m.pairs[pairID]
	if !ok {
		return models.HistoryReport{}, fmt.Errorf("%w: %s", ErrUnknownPair, pairID)
	}

	src := ps.History
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	history := make([]models.RatioSnapshot, len(src))
	copy(history, src)
	return models.HistoryReport{
		PairID:    ps.Config.ID,
		PairLabel: ps.Config.Label,
		History:   history,
		Stats:     ps.Stats,
	}, nil
}

// MarketOpen reports whether BYMA bond trading is open at t:
// Monday to Friday, 11:00 to 17:00 Buenos Aires time.
func MarketOpen(t time.Time) bool {
	local := t.In(artZone)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := local.Hour()
	return h >= marketOpenHour && h < marketCloseHour
}

// CloseTime returns the session close on t's trading day, Buenos Aires time
func CloseTime(t time.Time) time.Time {
	local := t.In(artZone)
	return time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, 0, 0, 0, artZone)
}
