package storage

import (
	"context"
	"fmt"

	"github.com/wallet-snapshots/internal/models"
)

var (
	protocolColumns = []string{"address", "protocol_id", "chain", "portfolio_usd", "raw", "fetched_at"}
	protocolKey     = []string{"address", "protocol_id", "fetched_at"}

	accountColumns = []string{"address", "snapshot_type", "equity_usd", "positions_count", "equity_path", "raw", "fetched_at"}
	accountKey     = []string{"address", "snapshot_type", "fetched_at"}
)

// ProtocolSnapshotRepository persists and reads DeBank protocol rows.
type ProtocolSnapshotRepository struct {
	db     *PostgresDB
	writer *SnapshotWriter
	table  string
}

// NewProtocolSnapshotRepository creates a repository writing to table.
func NewProtocolSnapshotRepository(db *PostgresDB, writer *SnapshotWriter, table string) *ProtocolSnapshotRepository {
	return &ProtocolSnapshotRepository{db: db, writer: writer, table: table}
}

// WriteRows persists rows under the given mode.
func (r *ProtocolSnapshotRepository) WriteRows(ctx context.Context, rows []models.ProtocolSnapshot, mode models.WriteMode) error {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.Address,
			row.ProtocolID,
			row.Chain,
			row.PortfolioUSD,
			[]byte(row.Raw),
			row.FetchedAt,
		}
	}
	return r.writer.Write(ctx, r.table, protocolColumns, protocolKey, values, mode)
}

// ListByAddress returns the most recent rows for an address, newest run
// first.
func (r *ProtocolSnapshotRepository) ListByAddress(ctx context.Context, address string, limit int) ([]models.ProtocolSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT address, protocol_id, chain, portfolio_usd, raw, fetched_at
		FROM %s
		WHERE address = $1
		ORDER BY fetched_at DESC, protocol_id ASC
		LIMIT $2
	`, r.table)

	rows, err := r.db.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("query protocol snapshots: %w", err)
	}
	defer rows.Close()

	var result []models.ProtocolSnapshot
	for rows.Next() {
		var row models.ProtocolSnapshot
		if err := rows.Scan(&row.Address, &row.ProtocolID, &row.Chain, &row.PortfolioUSD, &row.Raw, &row.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan protocol snapshot: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// LatestByAddress returns all rows of the address's most recent run.
func (r *ProtocolSnapshotRepository) LatestByAddress(ctx context.Context, address string) ([]models.ProtocolSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT address, protocol_id, chain, portfolio_usd, raw, fetched_at
		FROM %s
		WHERE address = $1
		  AND fetched_at = (SELECT MAX(fetched_at) FROM %s WHERE address = $1)
		ORDER BY protocol_id ASC
	`, r.table, r.table)

	rows, err := r.db.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("query latest protocol snapshots: %w", err)
	}
	defer rows.Close()

	var result []models.ProtocolSnapshot
	for rows.Next() {
		var row models.ProtocolSnapshot
		if err := rows.Scan(&row.Address, &row.ProtocolID, &row.Chain, &row.PortfolioUSD, &row.Raw, &row.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan protocol snapshot: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// AccountSnapshotRepository persists and reads Hyperliquid account rows.
type AccountSnapshotRepository struct {
	db     *PostgresDB
	writer *SnapshotWriter
	table  string
}

// NewAccountSnapshotRepository creates a repository writing to table.
func NewAccountSnapshotRepository(db *PostgresDB, writer *SnapshotWriter, table string) *AccountSnapshotRepository {
	return &AccountSnapshotRepository{db: db, writer: writer, table: table}
}

// WriteRows persists rows under the given mode.
func (r *AccountSnapshotRepository) WriteRows(ctx context.Context, rows []models.AccountSnapshot, mode models.WriteMode) error {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.Address,
			row.SnapshotType,
			row.EquityUSD,
			row.PositionsCount,
			row.EquityPath,
			[]byte(row.Raw),
			row.FetchedAt,
		}
	}
	return r.writer.Write(ctx, r.table, accountColumns, accountKey, values, mode)
}

// ListByAddress returns the most recent rows for an address, newest first.
func (r *AccountSnapshotRepository) ListByAddress(ctx context.Context, address string, limit int) ([]models.AccountSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT address, snapshot_type, equity_usd, positions_count, equity_path, raw, fetched_at
		FROM %s
		WHERE address = $1
		ORDER BY fetched_at DESC
		LIMIT $2
	`, r.table)

	rows, err := r.db.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("query account snapshots: %w", err)
	}
	defer rows.Close()

	var result []models.AccountSnapshot
	for rows.Next() {
		var row models.AccountSnapshot
		if err := rows.Scan(&row.Address, &row.SnapshotType, &row.EquityUSD, &row.PositionsCount, &row.EquityPath, &row.Raw, &row.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan account snapshot: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
