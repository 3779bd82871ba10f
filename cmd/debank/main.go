// Command debank fetches the full protocol list for a set of wallets from
// the DeBank API and writes one row per (wallet, protocol) to Postgres.
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
		walletsFlag = flag.String("wallets", "", "Comma-separated wallet addresses (overrides WALLETS)")
		modeFlag    = flag.String("mode", "", "Write mode: append or upsert_snapshot (overrides WRITE_MODE)")
	)
	flag.Parse()

	if err := run(*walletsFlag, *modeFlag); err != nil {
		fmt.Fprintf(os.Stderr, "debank ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func run(walletsOverride, modeOverride string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	wallets, err := cfg.ValidateDeBank(walletsOverride)
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
	repo := storage.NewProtocolSnapshotRepository(db, writer, cfg.DeBank.Table)

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

	client := adapter.NewDeBankClient(cfg.DeBank.APIKey,
		adapter.WithDeBankBaseURL(cfg.DeBank.APIURL),
		adapter.WithDeBankHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout}),
		adapter.WithDeBankRetry(cfg.Fetch.RetryConfig()),
		adapter.WithDeBankRateLimit(cfg.Fetch.RequestsPerSec),
	)

	summary, err := service.NewIngestService(opts...).RunProtocols(ctx, client, repo, wallets, mode)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("%d of %d addresses failed", len(summary.Failures), summary.Addresses)
	}
	return nil
}
