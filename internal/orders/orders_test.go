package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/models"
	"github.com/BondSpread/iol-arb/internal/store"
)

type fakeBroker struct {
	calls   int
	lastReq models.OrderRequest
	orderID string
	err     error
}

func (b *fakeBroker) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	b.calls++
	b.lastReq = req
	if b.err != nil {
		return "", b.err
	}
	return b.orderID, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxOrderLogEntries: 200,
		Pairs: []models.PairConfig{
			{ID: "AL30_GD30", Label: "AL30 / GD30", LocalSymbol: "AL30D", ForeignSymbol: "GD30D"},
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config, broker Broker) *Service {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return NewService(cfg, broker, st, zap.NewNop())
}

func validRequest() models.OrderRequest {
	return models.OrderRequest{
		PairID:     "AL30_GD30",
		Symbol:     "AL30D",
		Side:       models.Buy,
		Quantity:   100,
		Price:      decimal.NewFromFloat(58.10),
		Settlement: "t1",
		Sandbox:    true,
	}
}

func TestExecuteSandboxSkipsBroker(t *testing.T) {
	broker := &fakeBroker{orderID: "123456"}
	svc := newTestService(t, testConfig(), broker)

	resp, err := svc.Execute(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !resp.Success {
		t.Error("Expected sandbox order to succeed")
	}
	if !resp.Sandbox {
		t.Error("Expected sandbox flag on response")
	}
	if broker.calls != 0 {
		t.Errorf("Expected broker untouched in sandbox mode, got %d calls", broker.calls)
	}
}

func TestExecuteLivePlacesOrder(t *testing.T) {
	broker := &fakeBroker{orderID: "987654"}
	svc := newTestService(t, testConfig(), broker)

	req := validRequest()
	req.Sandbox = false
	req.Side = models.Sell

	resp, err := svc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if broker.calls != 1 {
		t.Fatalf("Expected 1 broker call, got %d", broker.calls)
	}
	if broker.lastReq.Side != models.Sell {
		t.Errorf("Expected side=sell passed through, got %s", broker.lastReq.Side)
	}
	if resp.OrderID != "987654" {
		t.Errorf("Expected order ID=987654, got %s", resp.OrderID)
	}
}

func TestExecuteFailureStillLogged(t *testing.T) {
	broker := &fakeBroker{err: errors.New("API error 400: insufficient funds")}
	svc := newTestService(t, testConfig(), broker)

	req := validRequest()
	req.Sandbox = false

	resp, err := svc.Execute(context.Background(), req)
	if err == nil {
		t.Fatal("Expected broker error to propagate")
	}
	if resp == nil || resp.Success {
		t.Error("Expected unsuccessful response alongside the error")
	}

	log := svc.Log(0)
	if len(log) != 1 {
		t.Fatalf("Expected failed order in log, got %d entries", len(log))
	}
	if log[0].Success {
		t.Error("Expected logged entry marked unsuccessful")
	}
	if log[0].Message == "" {
		t.Error("Expected error message recorded in log entry")
	}
}

func TestExecuteValidation(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeBroker{})

	tests := []struct {
		name   string
		mutate func(*models.OrderRequest)
	}{
		{"missing symbol", func(r *models.OrderRequest) { r.Symbol = "" }},
		{"zero quantity", func(r *models.OrderRequest) { r.Quantity = 0 }},
		{"negative quantity", func(r *models.OrderRequest) { r.Quantity = -5 }},
		{"zero price", func(r *models.OrderRequest) { r.Price = decimal.Zero }},
		{"bad side", func(r *models.OrderRequest) { r.Side = "hold" }},
		{"bad settlement", func(r *models.OrderRequest) { r.Settlement = "t3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := svc.Execute(context.Background(), req); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	if len(svc.Log(0)) != 0 {
		t.Errorf("Expected rejected orders kept out of the log, got %d entries", len(svc.Log(0)))
	}
}

func TestLogNewestFirst(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeBroker{})

	first := validRequest()
	second := validRequest()
	second.Symbol = "GD30D"

	if _, err := svc.Execute(context.Background(), first); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := svc.Execute(context.Background(), second); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	log := svc.Log(0)
	if len(log) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(log))
	}
	if log[0].Symbol != "GD30D" {
		t.Errorf("Expected newest entry first, got %s", log[0].Symbol)
	}
	if log[0].PairLabel != "AL30 / GD30" {
		t.Errorf("Expected pair label resolved, got %q", log[0].PairLabel)
	}
}

func TestLogCapped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrderLogEntries = 3
	svc := newTestService(t, cfg, &fakeBroker{})

	for i := 0; i < 5; i++ {
		if _, err := svc.Execute(context.Background(), validRequest()); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	if got := len(svc.Log(0)); got != 3 {
		t.Errorf("Expected log capped at 3, got %d", got)
	}
	if got := len(svc.Log(2)); got != 2 {
		t.Errorf("Expected limit=2 to return 2 entries, got %d", got)
	}
}

func TestLogPersistsAcrossServices(t *testing.T) {
	cfg := testConfig()
	st, err := store.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}

	svc := NewService(cfg, &fakeBroker{}, st, zap.NewNop())
	if _, err := svc.Execute(context.Background(), validRequest()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	reloaded := NewService(cfg, &fakeBroker{}, st, zap.NewNop())
	if got := len(reloaded.Log(0)); got != 1 {
		t.Errorf("Expected reloaded service to see 1 entry, got %d", got)
	}
}
