package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/BondSpread/iol-arb/internal/models"
)

// Config holds all application configuration
type Config struct {
	// IOL API
	IOLUsername string
	IOLPassword string
	IOLBaseURL  string
	IOLTokenURL string

	// Credential lifecycle. TokenTTL stays under the provider's 15-minute
	// token lifetime so a token is never presented right at expiry.
	TokenTTL time.Duration

	// Monitoring
	RefreshInterval  time.Duration
	RollingWindow    int
	MaxHistoryPoints int
	AlertZThreshold  float64
	EODHoldThreshold float64

	// Costs: total end-to-end round-trip cost as a fraction (0.005 = 0.5%)
	RoundtripCommission float64

	// Paper trading
	PaperCloseZThreshold float64
	PaperNotional        float64
	MaxPaperTrades       int

	// Orders
	MaxOrderLogEntries int

	// Performance
	HTTPTimeout   time.Duration
	QuoteCacheTTL time.Duration

	// Storage
	CacheDir string

	// Pair universe
	PairsFile string
	Pairs     []models.PairConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		IOLUsername: getEnv("IOL_USERNAME", ""),
		IOLPassword: getEnv("IOL_PASSWORD", ""),
		IOLBaseURL:  getEnv("IOL_BASE_URL", "https://api.invertironline.com/api/v2"),
		IOLTokenURL: getEnv("IOL_TOKEN_URL", "https://api.invertironline.com/token"),

		TokenTTL: getEnvDuration("IOL_TOKEN_TTL_MS", 14*60*1000) * time.Millisecond,

		RefreshInterval:  getEnvDuration("BOND_REFRESH_INTERVAL_MS", 120000) * time.Millisecond,
		RollingWindow:    getEnvInt("BOND_ROLLING_WINDOW", 20),
		MaxHistoryPoints: getEnvInt("BOND_MAX_HISTORY_POINTS", 500),
		AlertZThreshold:  getEnvFloat("BOND_ALERT_Z_THRESHOLD", 2.0),
		EODHoldThreshold: getEnvFloat("BOND_EOD_HOLD_Z_THRESHOLD", 1.0),

		RoundtripCommission: getEnvFloat("IOL_ROUNDTRIP_COMMISSION", 0.005),

		PaperCloseZThreshold: getEnvFloat("PAPER_CLOSE_Z_THRESHOLD", 0.5),
		PaperNotional:        getEnvFloat("PAPER_TRADE_NOTIONAL", 100000.0),
		MaxPaperTrades:       getEnvInt("MAX_PAPER_TRADES", 500),

		MaxOrderLogEntries: getEnvInt("MAX_ORDER_LOG_ENTRIES", 200),

		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT_MS", 20000) * time.Millisecond,
		QuoteCacheTTL: getEnvDuration("QUOTE_CACHE_TTL_MS", 30000) * time.Millisecond,

		CacheDir:  getEnv("BOND_CACHE_DIR", defaultCacheDir()),
		PairsFile: getEnv("BOND_PAIRS_FILE", ""),
	}

	// Validate required fields
	if cfg.IOLUsername == "" || cfg.IOLPassword == "" {
		return nil, fmt.Errorf("IOL_USERNAME and IOL_PASSWORD must be set")
	}

	pairs, err := loadPairs(cfg.PairsFile)
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}
	cfg.Pairs = pairs

	return cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".iol-arb", "bonds")
	}
	return filepath.Join(home, ".iol-arb", "bonds")
}

// loadPairs reads the pair universe from a YAML file when one is configured,
// otherwise falls back to the built-in AL/GD sovereign pairs.
func loadPairs(path string) ([]models.PairConfig, error) {
	if path == "" {
		return DefaultPairs(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var out struct {
		Pairs []models.PairConfig `mapstructure:"pairs"`
	}
	if err := v.Unmarshal(&out); err != nil {
		return nil, err
	}
	if len(out.Pairs) == 0 {
		return nil, fmt.Errorf("pairs file %s defines no pairs", path)
	}
	for _, p := range out.Pairs {
		if p.ID == "" || p.LocalSymbol == "" || p.ForeignSymbol == "" {
			return nil, fmt.Errorf("pair %q missing id or symbols", p.ID)
		}
	}
	return out.Pairs, nil
}

// DefaultPairs returns the built-in local-law vs NY-law sovereign bond pairs
func DefaultPairs() []models.PairConfig {
	return []models.PairConfig{
		{
			ID:            "AL30_GD30",
			Label:         "AL30 / GD30",
			LocalSymbol:   "AL30D",
			ForeignSymbol: "GD30D",
			Description:   "Bonar 2030 — local law vs New York law",
		},
		{
			ID:            "AL35_GD35",
			Label:         "AL35 / GD35",
			LocalSymbol:   "AL35D",
			ForeignSymbol: "GD35D",
			Description:   "Bonar 2035 — local law vs New York law",
		},
		{
			ID:            "AE38_GD38",
			Label:         "AE38 / GD38",
			LocalSymbol:   "AE38D",
			ForeignSymbol: "GD38D",
			Description:   "Bonar 2038 — local law vs New York law",
		},
		{
			ID:            "AL29_GD29",
			Label:         "AL29 / GD29",
			LocalSymbol:   "AL29D",
			ForeignSymbol: "GD29D",
			Description:   "Bonar 2029 — local law vs New York law",
		},
		{
			ID:            "AL41_GD41",
			Label:         "AL41 / GD41",
			LocalSymbol:   "AL41D",
			ForeignSymbol: "GD41D",
			Description:   "Bonar 2041 — local law vs New York law",
		},
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(defaultValue)
}
