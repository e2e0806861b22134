package iol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/models"
)

// MercadoBCBA is the market code for the Buenos Aires exchange
const MercadoBCBA = "bCBA"

// TokenSource supplies bearer tokens and accepts invalidation after a 401
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client is a thin wrapper around the IOL REST API
type Client struct {
	cfg        *config.Config
	creds      TokenSource
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a new IOL client
func NewClient(cfg *config.Config, creds TokenSource, logger *zap.Logger) *Client {
	return &Client{
		cfg:   cfg,
		creds: creds,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL: cfg.IOLBaseURL,
		logger:  logger.With(zap.String("component", "iol")),
	}
}

// request performs an authenticated request and unmarshals the response into
// target. On a 401 it invalidates the credential state and retries exactly
// once; a second 401 propagates.
func (c *Client) request(ctx context.Context, method, path string, body, target interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return fmt.Errorf("obtain token: %w", err)
		}

		var bodyReader io.Reader
		if body != nil {
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.logger.Warn("API returned 401, invalidating token and retrying")
			c.creds.Invalidate()
			continue
		}

		return parseResponse(resp, target)
	}

	return fmt.Errorf("authentication failed after retry")
}

// parseResponse reads and unmarshals the response
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// quoteDetail mirrors the fields we read from CotizacionDetalle
type quoteDetail struct {
	UltimoPrecio    *float64 `json:"ultimoPrecio"`
	Ultimo          *float64 `json:"ultimo"`
	Precio          *float64 `json:"precio"`
	Volumen         *float64 `json:"volumen"`
	CantidadNominal *float64 `json:"cantidadNominal"`
	Puntas          []struct {
		PrecioCompra *float64 `json:"precioCompra"`
		PrecioVenta  *float64 `json:"precioVenta"`
	} `json:"puntas"`
}

// GetQuote retrieves the current detailed quote for a symbol.
// A response without a last price is a fetch error.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	path := fmt.Sprintf("/%s/Titulos/%s/CotizacionDetalle", MercadoBCBA, url.PathEscape(symbol))

	var detail quoteDetail
	if err := c.request(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}

	price := firstPrice(detail.UltimoPrecio, detail.Ultimo, detail.Precio)
	if price == nil {
		return nil, fmt.Errorf("no price for %s", symbol)
	}

	quote := &models.Quote{
		Symbol:    symbol,
		Price:     decimal.NewFromFloat(*price),
		FetchedAt: time.Now().UTC(),
	}
	if detail.Volumen != nil {
		quote.Volume = detail.Volumen
	} else if detail.CantidadNominal != nil {
		quote.Volume = detail.CantidadNominal
	}
	if len(detail.Puntas) > 0 {
		top := detail.Puntas[0]
		if top.PrecioCompra != nil {
			bid := decimal.NewFromFloat(*top.PrecioCompra)
			quote.Bid = &bid
		}
		if top.PrecioVenta != nil {
			ask := decimal.NewFromFloat(*top.PrecioVenta)
			quote.Ask = &ask
		}
	}

	return quote, nil
}

// firstPrice returns the first non-nil, non-zero price candidate
func firstPrice(candidates ...*float64) *float64 {
	for _, p := range candidates {
		if p != nil && *p != 0 {
			return p
		}
	}
	return nil
}

// PlaceOrder submits a limit order. Buy and sell use distinct endpoints.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	path := "/operar/Comprar"
	if req.Side == models.Sell {
		path = "/operar/Vender"
	}

	payload := map[string]interface{}{
		"mercado":   MercadoBCBA,
		"simbolo":   req.Symbol,
		"cantidad":  req.Quantity,
		"precio":    req.Price,
		"plazo":     req.Settlement,
		"validez":   "hoy",
		"tipoOrden": "precioLimite",
	}

	var result struct {
		NroOperacion json.Number `json:"nroOperacion"`
		ID           json.Number `json:"id"`
	}
	if err := c.request(ctx, http.MethodPost, path, payload, &result); err != nil {
		return "", fmt.Errorf("place order for %s: %w", req.Symbol, err)
	}

	if s := result.NroOperacion.String(); s != "" {
		return s, nil
	}
	return result.ID.String(), nil
}
