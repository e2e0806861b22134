package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BondSpread/iol-arb/internal/auth"
	"github.com/BondSpread/iol-arb/internal/cache"
	"github.com/BondSpread/iol-arb/internal/config"
	"github.com/BondSpread/iol-arb/internal/iol"
	"github.com/BondSpread/iol-arb/internal/monitor"
	"github.com/BondSpread/iol-arb/internal/orders"
	"github.com/BondSpread/iol-arb/internal/paper"
	"github.com/BondSpread/iol-arb/internal/store"
)

var (
	// Global instances
	cfg         *config.Config
	creds       *auth.Manager
	client      *iol.Client
	quoteCache  *cache.Cache
	stateStore  *store.Store
	paperEngine *paper.Engine
	mon         *monitor.Monitor
	orderSvc    *orders.Service
	logger      *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iol-arb",
	Short: "Local-law vs NY-law bond spread monitor for IOL",
	Long: `iol-arb watches Argentine sovereign bond pairs on InvertirOnline,
tracking the local-law / NY-law price ratio with rolling z-score
statistics. It raises commission-aware alerts when the spread widens,
runs a paper trading book against the signals, and can place real
limit orders on either leg.`,
	PersistentPreRunE: initializeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Configure logger: default INFO, DEBUG if DEBUG env is truthy
	verbose := false
	if v := os.Getenv("DEBUG"); v == "true" || v == "1" || v == "yes" {
		verbose = true
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	var err error
	logger, err = zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// initializeApp sets up all dependencies
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	stateStore, err = store.New(cfg.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	creds = auth.NewManager(cfg, logger)
	client = iol.NewClient(cfg, creds, logger)
	quoteCache = cache.NewCache(cfg.QuoteCacheTTL)
	paperEngine = paper.NewEngine(cfg, stateStore, logger)
	mon = monitor.New(cfg, client, quoteCache, paperEngine, stateStore, logger)
	orderSvc = orders.NewService(cfg, client, stateStore, logger)

	mon.WarmFromDisk()

	return nil
}

// confirmLive gates live order placement behind an explicit confirmation
func confirmLive() error {
	fmt.Println("⚠️  WARNING: this places a REAL order on your IOL account!")
	fmt.Print("Type 'confirm-live' to proceed: ")

	var confirm string
	fmt.Scanln(&confirm)

	if confirm != "confirm-live" {
		return fmt.Errorf("live order not confirmed")
	}
	return nil
}
