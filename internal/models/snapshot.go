// Package models defines the persisted snapshot row types.
package models

import (
	"encoding/json"
	"time"
)

// UnknownProtocolID is the identifier substituted when a protocol entry
// carries neither an id nor a name.
const UnknownProtocolID = "unknown"

// SnapshotTypeClearinghouse tags account-state rows fetched from the
// Hyperliquid clearinghouseState endpoint.
const SnapshotTypeClearinghouse = "clearinghouseState"

// ProtocolSnapshot is one protocol position row for a wallet, produced once
// per (address, protocol, run). Raw holds the untouched source fragment so
// metrics can be re-extracted later without re-fetching.
type ProtocolSnapshot struct {
	Address      string          `json:"address" db:"address"`
	ProtocolID   string          `json:"protocolId" db:"protocol_id"`
	Chain        *string         `json:"chain,omitempty" db:"chain"`
	PortfolioUSD *float64        `json:"portfolioUsd,omitempty" db:"portfolio_usd"`
	Raw          json.RawMessage `json:"raw" db:"raw"`
	FetchedAt    time.Time       `json:"fetchedAt" db:"fetched_at"`
}

// AccountSnapshot is one account-state row for a wallet. EquityUSD,
// PositionsCount and EquityPath are nil when extraction found nothing; the
// row is still written with Raw intact.
type AccountSnapshot struct {
	Address        string          `json:"address" db:"address"`
	SnapshotType   string          `json:"snapshotType" db:"snapshot_type"`
	EquityUSD      *float64        `json:"equityUsd,omitempty" db:"equity_usd"`
	PositionsCount *int            `json:"positionsCount,omitempty" db:"positions_count"`
	EquityPath     *string         `json:"equityPath,omitempty" db:"equity_path"`
	Raw            json.RawMessage `json:"raw" db:"raw"`
	FetchedAt      time.Time       `json:"fetchedAt" db:"fetched_at"`
}
