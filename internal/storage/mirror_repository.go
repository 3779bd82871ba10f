package storage

import (
	"context"
	"fmt"

	"github.com/wallet-snapshots/internal/models"
)

// MirrorRepository appends a flattened copy of every written snapshot row to
// a ClickHouse table for cheap long-horizon retention. The mirror is an
// observer: Postgres remains the source of truth and mirror failures never
// fail a run.
type MirrorRepository struct {
	db    *ClickHouseDB
	table string
}

// NewMirrorRepository creates a mirror writing to table.
func NewMirrorRepository(db *ClickHouseDB, table string) (*MirrorRepository, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid mirror table name %q", table)
	}
	return &MirrorRepository{db: db, table: table}, nil
}

// EnsureSchema creates the mirror table when absent.
func (r *MirrorRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source          LowCardinality(String),
			address         String,
			snapshot_key    String,
			chain           String,
			metric_usd      Nullable(Float64),
			positions_count Nullable(Int32),
			raw             String,
			fetched_at      DateTime('UTC')
		) ENGINE = MergeTree()
		ORDER BY (address, source, fetched_at)
	`, r.table)
	return r.db.conn.Exec(ctx, query)
}

// AppendProtocolRows mirrors DeBank protocol rows.
func (r *MirrorRepository) AppendProtocolRows(ctx context.Context, rows []models.ProtocolSnapshot) error {
	batch, err := r.db.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (source, address, snapshot_key, chain, metric_usd, positions_count, raw, fetched_at)", r.table))
	if err != nil {
		return fmt.Errorf("prepare mirror batch: %w", err)
	}

	for _, row := range rows {
		chain := ""
		if row.Chain != nil {
			chain = *row.Chain
		}
		if err := batch.Append(
			"debank",
			row.Address,
			row.ProtocolID,
			chain,
			row.PortfolioUSD,
			nil,
			string(row.Raw),
			row.FetchedAt,
		); err != nil {
			return fmt.Errorf("append mirror row: %w", err)
		}
	}
	return batch.Send()
}

// AppendAccountRows mirrors Hyperliquid account rows.
func (r *MirrorRepository) AppendAccountRows(ctx context.Context, rows []models.AccountSnapshot) error {
	batch, err := r.db.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (source, address, snapshot_key, chain, metric_usd, positions_count, raw, fetched_at)", r.table))
	if err != nil {
		return fmt.Errorf("prepare mirror batch: %w", err)
	}

	for _, row := range rows {
		var count *int32
		if row.PositionsCount != nil {
			c := int32(*row.PositionsCount)
			count = &c
		}
		if err := batch.Append(
			"hyperliquid",
			row.Address,
			row.SnapshotType,
			"",
			row.EquityUSD,
			count,
			string(row.Raw),
			row.FetchedAt,
		); err != nil {
			return fmt.Errorf("append mirror row: %w", err)
		}
	}
	return batch.Send()
}
