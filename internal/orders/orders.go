// Package orders executes real limit orders on a pair leg and keeps a
// bounded, persisted log of every attempt. Orders run in sandbox mode unless
// live trading is explicitly requested.
package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/models"
	"github.com/BondSpread/iol-arb/internal/store"
)

const logKey = "order_log"

// Broker places an order with the upstream API
type Broker interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error)
}

// Service validates, executes and logs orders
type Service struct {
	cfg    *config.Config
	broker Broker
	store  *store.Store
	logger *zap.Logger

	mu      sync.Mutex
	entries []models.OrderLogEntry
}

// NewService loads the persisted order log and returns the service
func NewService(cfg *config.Config, broker Broker, st *store.Store, logger *zap.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		broker: broker,
		store:  st,
		logger: logger.With(zap.String("component", "orders")),
	}
	if err := st.Load(logKey, &s.entries); err != nil {
		logger.Warn("could not load order log", zap.Error(err))
	}
	return s
}

// Execute places the order and appends the outcome to the log. Every attempt
// is logged, successful or not; sandbox orders never reach the broker.
func (s *Service) Execute(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	resp := &models.OrderResponse{Sandbox: req.Sandbox}
	var execErr error
	if req.Sandbox {
		resp.Success = true
		resp.OrderID = "sandbox-" + uuid.New().String()[:8]
		resp.Message = fmt.Sprintf("sandbox %s %d x %s @ %s accepted, not sent",
			req.Side, req.Quantity, req.Symbol, req.Price.StringFixed(2))
	} else {
		orderID, err := s.broker.PlaceOrder(ctx, req)
		if err != nil {
			execErr = err
			resp.Success = false
			resp.Message = err.Error()
		} else {
			resp.Success = true
			resp.OrderID = orderID
			resp.Message = fmt.Sprintf("order %s accepted", orderID)
		}
	}

	s.append(req, resp)

	if execErr != nil {
		s.logger.Error("order failed",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Error(execErr))
		return resp, execErr
	}
	s.logger.Info("order executed",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.Int64("quantity", req.Quantity),
		zap.Bool("sandbox", req.Sandbox),
		zap.String("order_id", resp.OrderID))
	return resp, nil
}

// Log returns up to limit entries from the order log, newest first.
// A limit of 0 returns everything.
func (s *Service) Log(limit int) []models.OrderLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.OrderLogEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

func (s *Service) validate(req models.OrderRequest) error {
	if req.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", req.Quantity)
	}
	if !req.Price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", req.Price.String())
	}
	switch req.Side {
	case models.Buy, models.Sell:
	default:
		return fmt.Errorf("invalid side %q", req.Side)
	}
	switch req.Settlement {
	case "t0", "t1", "t2":
	default:
		return fmt.Errorf("invalid settlement %q, want t0, t1 or t2", req.Settlement)
	}
	return nil
}

func (s *Service) append(req models.OrderRequest, resp *models.OrderResponse) {
	entry := models.OrderLogEntry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		PairID:     req.PairID,
		PairLabel:  s.pairLabel(req.PairID),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Settlement: req.Settlement,
		Sandbox:    req.Sandbox,
		Success:    resp.Success,
		OrderID:    resp.OrderID,
		Message:    resp.Message,
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if max := s.cfg.MaxOrderLogEntries; max > 0 && len(s.entries) > max {
		s.entries = s.entries[len(s.entries)-max:]
	}
	if err := s.store.Save(logKey, s.entries); err != nil {
		s.logger.Error("could not persist order log", zap.Error(err))
	}
	s.mu.Unlock()
}

func (s *Service) pairLabel(pairID string) string {
	for _, p := range s.cfg.Pairs {
		if p.ID == pairID {
			return p.Label
		}
	}
	return ""
}
