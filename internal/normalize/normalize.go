// Package normalize maps fetch results into snapshot rows.
//
// Normalization is deterministic and total: every input entry yields exactly
// one row, extraction misses become nil fields, and the source fragment is
// carried verbatim in Raw.
package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/wallet-snapshots/internal/extract"
	"github.com/wallet-snapshots/internal/models"
)

// protocolIDFields is the fallback order for the protocol entry identifier.
var protocolIDFields = []string{"id", "name"}

// chainFields is the fallback order for the chain tag.
var chainFields = []string{"chain", "portfolio_chain"}

// ProtocolRows converts a list of protocol entries into one row per entry.
// Entries missing an identifier get models.UnknownProtocolID; no entry is
// ever dropped.
func ProtocolRows(address string, items []json.RawMessage, fetchedAt time.Time) []models.ProtocolSnapshot {
	rows := make([]models.ProtocolSnapshot, 0, len(items))
	addr := strings.ToLower(address)

	for _, item := range items {
		row := models.ProtocolSnapshot{
			Address:    addr,
			ProtocolID: models.UnknownProtocolID,
			Raw:        item,
			FetchedAt:  fetchedAt,
		}

		var entry map[string]any
		if err := json.Unmarshal(item, &entry); err == nil {
			if id, ok := firstString(entry, protocolIDFields); ok {
				row.ProtocolID = id
			}
			if chain, ok := firstString(entry, chainFields); ok {
				row.Chain = &chain
			}
			// Only a JSON number counts here; the generic string coercion is
			// reserved for the deep search.
			if v, ok := entry["portfolio_usd_value"].(float64); ok {
				row.PortfolioUSD = &v
			}
		}

		rows = append(rows, row)
	}

	return rows
}

// AccountRow converts a single account-state document plus its extracted
// metrics into exactly one row.
func AccountRow(address string, raw json.RawMessage, summary extract.Summary, fetchedAt time.Time) models.AccountSnapshot {
	row := models.AccountSnapshot{
		Address:      strings.ToLower(address),
		SnapshotType: models.SnapshotTypeClearinghouse,
		Raw:          raw,
		FetchedAt:    fetchedAt,
	}

	if summary.HasEquity {
		equity := summary.Equity.Value
		path := strings.Join(summary.Equity.Path, ".")
		row.EquityUSD = &equity
		row.EquityPath = &path
	}
	if summary.HasPositions {
		count := summary.Positions
		row.PositionsCount = &count
	}

	return row
}

// firstString returns the first non-empty value among fields, stringifying
// JSON numbers the way the source API sometimes delivers ids.
func firstString(entry map[string]any, fields []string) (string, bool) {
	for _, f := range fields {
		switch v := entry[f].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return json.Number(jsonNumber(v)).String(), true
		}
	}
	return "", false
}

func jsonNumber(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
