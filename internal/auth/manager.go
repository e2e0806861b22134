package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BondSpread/iol-arb/internal/config"
)

// Manager owns the IOL bearer/refresh token pair and serializes renewal.
// All callers go through one mutex so concurrent demand never issues two
// simultaneous login or refresh calls.
type Manager struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	obtainedAt   time.Time
}

// NewManager creates a new credential manager
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger.With(zap.String("component", "auth")),
	}
}

// Token returns a valid bearer token, performing login or refresh as needed.
// Failure to obtain credentials is propagated, never swallowed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.accessToken == "":
		if err := m.login(ctx); err != nil {
			return "", err
		}
	case m.expired():
		if m.refreshToken != "" {
			if err := m.refresh(ctx); err != nil {
				m.logger.Warn("token refresh failed, falling back to login", zap.Error(err))
				if err := m.login(ctx); err != nil {
					return "", err
				}
			}
		} else {
			if err := m.login(ctx); err != nil {
				return "", err
			}
		}
	}

	return m.accessToken, nil
}

// Invalidate forces the next Token call to re-authenticate.
// Call after the API rejects a request with 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accessToken = ""
	m.refreshToken = ""
	m.obtainedAt = time.Time{}
	m.logger.Info("token invalidated, will re-authenticate on next request")
}

// Authenticated reports whether a live token is currently held
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken != "" && !m.expired()
}

// expired reports whether the held token has outlived the TTL margin.
// Caller must hold m.mu.
func (m *Manager) expired() bool {
	return time.Since(m.obtainedAt) >= m.cfg.TokenTTL
}

func (m *Manager) login(ctx context.Context) error {
	if m.cfg.IOLUsername == "" || m.cfg.IOLPassword == "" {
		return fmt.Errorf("IOL credentials not configured")
	}

	m.logger.Info("logging in with credentials")
	form := url.Values{}
	form.Set("username", m.cfg.IOLUsername)
	form.Set("password", m.cfg.IOLPassword)
	form.Set("grant_type", "password")

	if err := m.postToken(ctx, form); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	m.logger.Info("login successful, token obtained")
	return nil
}

func (m *Manager) refresh(ctx context.Context) error {
	m.logger.Info("refreshing token")
	form := url.Values{}
	form.Set("refresh_token", m.refreshToken)
	form.Set("grant_type", "refresh_token")

	if err := m.postToken(ctx, form); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	m.logger.Info("token refreshed")
	return nil
}

// postToken POSTs a form-encoded grant to the token endpoint and stores the
// returned token pair. Caller must hold m.mu.
func (m *Manager) postToken(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.IOLTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access token")
	}

	m.accessToken = tokens.AccessToken
	m.refreshToken = tokens.RefreshToken
	m.obtainedAt = time.Now()
	return nil
}
