// Package main provides the heliassets CLI.
// Uses Cobra for command parsing. Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/heliassets fetch --only h125,nh90
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/config"
	"github.com/fleveque/heliassets/internal/httpclient"
	"github.com/fleveque/heliassets/internal/storage"
)

// version is overwritten at build time: -ldflags "-X main.version=v1.2.3"
var version = "dev"

func main() {
	// Partial failures inside a batch are reported in the summary and still
	// exit 0. Only setup errors (config, credentials, unreadable input) get here.
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// heliassets fetch --only h125
// heliassets extract --no-images
func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "heliassets",
		Short:        "Fetch, generate, and extract helicopter catalog assets",
		SilenceUsage: true, // don't dump usage on runtime errors
	}

	// Persistent flags are inherited by every subcommand.
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("HELI_CONFIG_PATH"), "Path to config.yaml")

	cfgPath := func() string { return configPath }
	root.AddCommand(
		fetchCmd(cfgPath),
		generateCmd(cfgPath),
		extractCmd(cfgPath),
		convertCmd(cfgPath),
		historyCmd(cfgPath),
		versionCmd(),
	)
	return root
}

// app bundles what every command needs: config, logger, run ID, and the call ledger.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string
	calls  storage.CallRepository
	db     *sqlx.DB // nil when the ledger is disabled
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, runID: uuid.NewString()}

	// The ledger is optional: an empty path keeps calls in memory for this run only.
	if cfg.Storage.DatabasePath == "" {
		a.calls = storage.NewMemoryCallRepository()
	} else {
		db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		a.calls = storage.NewCallRepository(db)
	}

	logger.Debug("starting run", zap.String("run_id", a.runID))
	return a, nil
}

// Close flushes the logger and closes the database.
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	// Sync commonly fails on stdout/stderr (not a real problem).
	_ = a.logger.Sync()
}

// newLogger builds a human-readable console logger by default, or zap's
// production JSON logger when log.format is "json".
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}

// httpClient builds the shared HTTP client from config.
func (a *app) httpClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		UserAgent:          a.cfg.HTTP.UserAgent,
		Timeout:            a.cfg.HTTP.Timeout,
		InsecureSkipVerify: a.cfg.HTTP.InsecureSkipVerify,
		MaxBodyBytes:       a.cfg.HTTP.MaxBodyBytes,
	}, a.logger)
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM. The item in
// flight is aborted and the remaining items are recorded as failures.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("cancelling run...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
