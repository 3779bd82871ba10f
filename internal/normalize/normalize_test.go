package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-snapshots/internal/extract"
	"github.com/wallet-snapshots/internal/models"
)

var fetchedAt = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func rawItems(t *testing.T, docs ...string) []json.RawMessage {
	t.Helper()
	items := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		items[i] = json.RawMessage(d)
	}
	return items
}

func TestProtocolRows(t *testing.T) {
	t.Run("one row per entry regardless of shape", func(t *testing.T) {
		items := rawItems(t,
			`{"id": "aave", "chain": "eth", "portfolio_usd_value": 1500.25}`,
			`{"name": "compound"}`,
			`{}`,
			`"not an object"`,
		)
		rows := ProtocolRows("0xABC", items, fetchedAt)
		require.Len(t, rows, len(items))

		assert.Equal(t, "aave", rows[0].ProtocolID)
		require.NotNil(t, rows[0].Chain)
		assert.Equal(t, "eth", *rows[0].Chain)
		require.NotNil(t, rows[0].PortfolioUSD)
		assert.Equal(t, 1500.25, *rows[0].PortfolioUSD)

		assert.Equal(t, "compound", rows[1].ProtocolID)
		assert.Nil(t, rows[1].Chain)
		assert.Nil(t, rows[1].PortfolioUSD)

		assert.Equal(t, models.UnknownProtocolID, rows[2].ProtocolID)
		assert.Equal(t, models.UnknownProtocolID, rows[3].ProtocolID)

		for i, row := range rows {
			assert.Equal(t, "0xabc", row.Address, "address lower-cased")
			assert.Equal(t, fetchedAt, row.FetchedAt)
			assert.JSONEq(t, string(items[i]), string(row.Raw), "raw retained verbatim")
		}
	})

	t.Run("id wins over name", func(t *testing.T) {
		rows := ProtocolRows("0xabc", rawItems(t, `{"id": "uniswap", "name": "Uniswap V3"}`), fetchedAt)
		require.Len(t, rows, 1)
		assert.Equal(t, "uniswap", rows[0].ProtocolID)
	})

	t.Run("portfolio_chain fallback", func(t *testing.T) {
		rows := ProtocolRows("0xabc", rawItems(t, `{"id": "x", "portfolio_chain": "arb"}`), fetchedAt)
		require.NotNil(t, rows[0].Chain)
		assert.Equal(t, "arb", *rows[0].Chain)
	})

	t.Run("string-typed portfolio value is not promoted", func(t *testing.T) {
		rows := ProtocolRows("0xabc", rawItems(t, `{"id": "x", "portfolio_usd_value": "12.5"}`), fetchedAt)
		assert.Nil(t, rows[0].PortfolioUSD)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		rows := ProtocolRows("0xabc", nil, fetchedAt)
		assert.Empty(t, rows)
	})
}

func TestAccountRow(t *testing.T) {
	raw := json.RawMessage(`{"marginSummary": {"equity": "1234.5"}, "assetPositions": [{}, {}]}`)

	t.Run("embeds extractor outputs", func(t *testing.T) {
		summary := extract.Summary{
			Equity:       extract.Metric{Value: 1234.5, Path: []string{"marginSummary", "equity"}},
			HasEquity:    true,
			Positions:    2,
			HasPositions: true,
		}
		row := AccountRow("0xDEF", raw, summary, fetchedAt)

		assert.Equal(t, "0xdef", row.Address)
		assert.Equal(t, models.SnapshotTypeClearinghouse, row.SnapshotType)
		require.NotNil(t, row.EquityUSD)
		assert.Equal(t, 1234.5, *row.EquityUSD)
		require.NotNil(t, row.EquityPath)
		assert.Equal(t, "marginSummary.equity", *row.EquityPath)
		require.NotNil(t, row.PositionsCount)
		assert.Equal(t, 2, *row.PositionsCount)
		assert.JSONEq(t, string(raw), string(row.Raw))
		assert.Equal(t, fetchedAt, row.FetchedAt)
	})

	t.Run("extraction miss keeps the row with nil fields", func(t *testing.T) {
		row := AccountRow("0xdef", raw, extract.Summary{}, fetchedAt)
		assert.Nil(t, row.EquityUSD)
		assert.Nil(t, row.EquityPath)
		assert.Nil(t, row.PositionsCount)
		assert.JSONEq(t, string(raw), string(row.Raw))
	})
}
