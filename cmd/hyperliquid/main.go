// Command hyperliquid fetches the clearinghouse state for a set of wallets
// from the Hyperliquid info endpoint and writes one row per wallet to
// Postgres, with equity and position count extracted from the raw document.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wallet-snapshots/internal/adapter"
	"github.com/wallet-snapshots/internal/config"
	"github.com/wallet-snapshots/internal/logging"
	"github.com/wallet-snapshots/internal/models"
	"github.com/wallet-snapshots/internal/service"
	"github.com/wallet-snapshots/internal/storage"
)

func main() {
	var (
		walletsFlag = flag.String("wallets", "", "Comma-separated wallet addresses (overrides WALLETS_HL)")
		modeFlag    = flag.String("mode", "", "Write mode: append or upsert_snapshot (overrides WRITE_MODE)")
		pathFlag    = flag.String("equity-path", "", "Dot-separated equity path hint (overrides HL_EQUITY_PATH)")
	)
	flag.Parse()

	if err := run(*walletsFlag, *modeFlag, *pathFlag); err != nil {
		fmt.Fprintf(os.Stderr, "hyperliquid ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func run(walletsOverride, modeOverride, pathOverride string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	wallets, err := cfg.ValidateHyperliquid(walletsOverride)
	if err != nil {
		return err
	}

	mode := cfg.Write.Mode
	if modeOverride != "" {
		mode = models.WriteMode(modeOverride)
		if !mode.Valid() {
			return fmt.Errorf("invalid mode %q", modeOverride)
		}
	}

	equityPath := cfg.Hyperliquid.EquityPath
	if pathOverride != "" {
		equityPath = pathOverride
	}

	logger := logging.NewLogger(
		logging.ParseLevel(cfg.Logging.Level),
		logging.ParseFormat(cfg.Logging.Format),
	)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	writer := storage.NewSnapshotWriter(storage.NewPgRowStore(db), cfg.Write.BatchSize)
	repo := storage.NewAccountSnapshotRepository(db, writer, cfg.Hyperliquid.Table)

	var opts []service.IngestOption
	if cfg.Cache.Enabled {
		cache, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()
		opts = append(opts, service.WithPayloadCache(storage.NewPayloadCache(cache, cfg.Cache.TTL)))
	}
	if cfg.Mirror.Enabled {
		ch, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer ch.Close()
		mirror, err := storage.NewMirrorRepository(ch, cfg.Mirror.Table)
		if err != nil {
			return err
		}
		if err := mirror.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure mirror schema: %w", err)
		}
		opts = append(opts, service.WithMirror(mirror))
	}

	client := adapter.NewHyperliquidClient(
		adapter.WithHyperliquidURL(cfg.Hyperliquid.APIURL),
		adapter.WithHyperliquidHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout}),
		adapter.WithHyperliquidRetry(cfg.Fetch.RetryConfig()),
		adapter.WithHyperliquidRateLimit(cfg.Fetch.RequestsPerSec),
	)

	summary, err := service.NewIngestService(opts...).RunAccountState(ctx, client, repo, wallets, mode, equityPath)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("%d of %d addresses failed", len(summary.Failures), summary.Addresses)
	}
	return nil
}
