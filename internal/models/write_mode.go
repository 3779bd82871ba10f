package models

// WriteMode selects the durability semantics of a snapshot write.
type WriteMode string

const (
	// ModeAppend is a pure insert: history accumulates across runs and
	// nothing is ever replaced. Always safe, and the default.
	ModeAppend WriteMode = "append"
	// ModeUpsertSnapshot replaces rows sharing the full natural key,
	// making re-runs of the same fetched_at idempotent. Requires a matching
	// UNIQUE constraint on the table.
	ModeUpsertSnapshot WriteMode = "upsert_snapshot"
)

// Valid reports whether m is a known write mode.
func (m WriteMode) Valid() bool {
	return m == ModeAppend || m == ModeUpsertSnapshot
}
