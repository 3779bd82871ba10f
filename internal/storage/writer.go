package storage

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/wallet-snapshots/internal/errors"
	"github.com/wallet-snapshots/internal/models"
)

// RowStore is the storage collaborator the writer batches into. Both calls
// report unique-constraint violations as *ConflictError so callers can
// inspect the violated column set.
type RowStore interface {
	BatchInsert(ctx context.Context, table string, columns []string, rows [][]any) error
	BatchUpsert(ctx context.Context, table string, columns []string, conflictColumns []string, rows [][]any) error
}

// DefaultBatchSize bounds payload size per store round-trip. Batching is not
// a resilience mechanism: a failed batch fails the whole write.
const DefaultBatchSize = 500

// SnapshotWriter persists snapshot rows in batches under a selected write
// mode and translates constraint conflicts into actionable diagnostics.
type SnapshotWriter struct {
	store     RowStore
	batchSize int
}

// NewSnapshotWriter creates a writer over store. batchSize <= 0 falls back
// to DefaultBatchSize.
func NewSnapshotWriter(store RowStore, batchSize int) *SnapshotWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SnapshotWriter{store: store, batchSize: batchSize}
}

// Write persists rows into table. columns names every value slot in a row;
// keyColumns is the natural key including fetched_at and drives the upsert
// conflict target. A unique violation on the legacy key shape (the natural
// key minus fetched_at) becomes a SchemaMismatchError; anything else
// propagates as-is.
func (w *SnapshotWriter) Write(ctx context.Context, table string, columns, keyColumns []string, rows [][]any, mode models.WriteMode) error {
	if len(rows) == 0 {
		return nil
	}

	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		var err error
		switch mode {
		case models.ModeAppend:
			err = w.store.BatchInsert(ctx, table, columns, chunk)
		case models.ModeUpsertSnapshot:
			err = w.store.BatchUpsert(ctx, table, columns, keyColumns, chunk)
		default:
			return fmt.Errorf("unknown write mode %q", mode)
		}
		if err != nil {
			return translateConflict(table, keyColumns, err)
		}
	}

	return nil
}

// translateConflict turns a legacy-key unique violation into a
// SchemaMismatchError. The decision is made from the constraint's column
// set, never from error message text.
func translateConflict(table string, keyColumns []string, err error) error {
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		return err
	}

	legacy := make(map[string]struct{}, len(keyColumns))
	for _, c := range keyColumns {
		if c != "fetched_at" {
			legacy[c] = struct{}{}
		}
	}

	if len(conflict.Columns) != len(legacy) {
		return err
	}
	for _, c := range conflict.Columns {
		if _, ok := legacy[c]; !ok {
			return err
		}
	}

	return &apperrors.SchemaMismatchError{
		Table:      table,
		Constraint: conflict.Constraint,
		Columns:    conflict.Columns,
		Cause:      err,
	}
}
