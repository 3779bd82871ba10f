// Package storage provides database connections, the snapshot row store and
// repository implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallet-snapshots/internal/config"
)

// PostgresDB wraps the pgxpool connection.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a new Postgres database connection.
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.MaxConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool.
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable.
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// pgErrUniqueViolation is the PostgreSQL unique_violation error code.
const pgErrUniqueViolation = "23505"

// identPattern restricts table and column names to plain identifiers; table
// names come from configuration and are interpolated into SQL.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PgRowStore implements RowStore on Postgres. Batches run inside a single
// transaction so a batch either commits whole or not at all.
type PgRowStore struct {
	db *PostgresDB
}

// NewPgRowStore creates a RowStore backed by db.
func NewPgRowStore(db *PostgresDB) *PgRowStore {
	return &PgRowStore{db: db}
}

// Compile-time interface check.
var _ RowStore = (*PgRowStore)(nil)

// BatchInsert inserts rows without conflict handling.
func (s *PgRowStore) BatchInsert(ctx context.Context, table string, columns []string, rows [][]any) error {
	query, err := insertQuery(table, columns, nil)
	if err != nil {
		return err
	}
	return s.execBatch(ctx, table, query, rows)
}

// BatchUpsert inserts rows, replacing any row that shares the values of
// conflictColumns.
func (s *PgRowStore) BatchUpsert(ctx context.Context, table string, columns []string, conflictColumns []string, rows [][]any) error {
	query, err := insertQuery(table, columns, conflictColumns)
	if err != nil {
		return err
	}
	return s.execBatch(ctx, table, query, rows)
}

func (s *PgRowStore) execBatch(ctx context.Context, table, query string, rows [][]any) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		if _, err := tx.Exec(ctx, query, row...); err != nil {
			return s.wrapStoreError(ctx, table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// wrapStoreError converts a unique violation into a structured
// ConflictError carrying the violated constraint's column list. The column
// lookup runs on the pool, outside the already-doomed transaction.
func (s *PgRowStore) wrapStoreError(ctx context.Context, table string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgErrUniqueViolation {
		return fmt.Errorf("write %s: %w", table, err)
	}

	columns, lookupErr := s.constraintColumns(ctx, pgErr.ConstraintName)
	if lookupErr != nil {
		// Still structured, just without the column set.
		columns = nil
	}
	return &ConflictError{
		Table:      table,
		Constraint: pgErr.ConstraintName,
		Columns:    columns,
		Err:        err,
	}
}

// constraintColumns resolves a constraint name to its ordered column list
// via the information schema.
func (s *PgRowStore) constraintColumns(ctx context.Context, constraint string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE constraint_name = $1
		ORDER BY ordinal_position
	`
	rows, err := s.db.pool.Query(ctx, query, constraint)
	if err != nil {
		return nil, fmt.Errorf("lookup constraint %q: %w", constraint, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// insertQuery builds the INSERT statement for one row. With conflictColumns
// set it becomes an insert-or-replace on that key; every non-key column is
// overwritten from the incoming row.
func insertQuery(table string, columns, conflictColumns []string) (string, error) {
	for _, ident := range append([]string{table}, columns...) {
		if !identPattern.MatchString(ident) {
			return "", fmt.Errorf("invalid identifier %q", ident)
		}
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if len(conflictColumns) == 0 {
		return query, nil
	}

	for _, ident := range conflictColumns {
		if !identPattern.MatchString(ident) {
			return "", fmt.Errorf("invalid identifier %q", ident)
		}
	}

	key := make(map[string]struct{}, len(conflictColumns))
	for _, c := range conflictColumns {
		key[c] = struct{}{}
	}
	var updates []string
	for _, c := range columns {
		if _, isKey := key[c]; !isKey {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	// Every column is part of the key: there is nothing to overwrite, and
	// "DO UPDATE SET" with no assignments is invalid SQL.
	if len(updates) == 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflictColumns, ", "))
		return query, nil
	}

	query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflictColumns, ", "),
		strings.Join(updates, ", "),
	)
	return query, nil
}
