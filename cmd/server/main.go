// Command server serves the read-only snapshot API over Postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wallet-snapshots/internal/api"
	"github.com/wallet-snapshots/internal/config"
	"github.com/wallet-snapshots/internal/logging"
	"github.com/wallet-snapshots/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(
		logging.ParseLevel(cfg.Logging.Level),
		logging.ParseFormat(cfg.Logging.Format),
	)

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	writer := storage.NewSnapshotWriter(storage.NewPgRowStore(db), cfg.Write.BatchSize)
	protocols := storage.NewProtocolSnapshotRepository(db, writer, cfg.DeBank.Table)
	accounts := storage.NewAccountSnapshotRepository(db, writer, cfg.Hyperliquid.Table)

	serverCfg := api.DefaultServerConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port

	srv := api.NewServer(serverCfg, protocols, accounts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown(context.Background())
	}
}
