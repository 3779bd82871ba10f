package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float", 12.5, 12.5, true},
		{"string float", "1234.5", 1234.5, true},
		{"string with whitespace", "  42 ", 42, true},
		{"negative string", "-3.25", -3.25, true},
		{"non-numeric string", "abc", 0, false},
		{"empty string", "", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"object", map[string]any{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestResolveHint(t *testing.T) {
	doc := decode(t, `{
		"data": {
			"userAccountSummary": {
				"marginSummary": {"equity": "1234.5"}
			}
		},
		"equity": "9.9"
	}`)

	t.Run("full path resolves and wins over shallower candidates", func(t *testing.T) {
		m, ok := ResolveHint(doc, "data.userAccountSummary.marginSummary.equity")
		require.True(t, ok)
		assert.Equal(t, 1234.5, m.Value)
		assert.Equal(t, []string{"data", "userAccountSummary", "marginSummary", "equity"}, m.Path)
	})

	t.Run("missing segment is silent", func(t *testing.T) {
		_, ok := ResolveHint(doc, "data.missing.equity")
		assert.False(t, ok)
	})

	t.Run("non-numeric terminal is silent", func(t *testing.T) {
		_, ok := ResolveHint(doc, "data.userAccountSummary.marginSummary")
		assert.False(t, ok)
	})

	t.Run("empty hint", func(t *testing.T) {
		_, ok := ResolveHint(doc, "")
		assert.False(t, ok)
	})
}

func TestFindNumber(t *testing.T) {
	t.Run("nested equity string", func(t *testing.T) {
		doc := decode(t, `{"marginSummary": {"equity": "1234.5"}}`)
		m, ok := FindNumber(doc, EquityCandidates)
		require.True(t, ok)
		assert.Equal(t, 1234.5, m.Value)
		assert.Equal(t, []string{"marginSummary", "equity"}, m.Path)
	})

	t.Run("top-level match beats deeper match with same name", func(t *testing.T) {
		doc := decode(t, `{
			"equity": "100",
			"nested": {"inner": {"equity": "999"}}
		}`)
		m, ok := FindNumber(doc, EquityCandidates)
		require.True(t, ok)
		assert.Equal(t, 100.0, m.Value)
		assert.Equal(t, []string{"equity"}, m.Path)
	})

	t.Run("own-level priority within a layer", func(t *testing.T) {
		// Both candidates sit one level deep; alpha sorts before beta, so
		// the alpha-side match wins the tie.
		doc := decode(t, `{
			"alpha": {"equity": "1"},
			"beta": {"equity": "2"}
		}`)
		m, ok := FindNumber(doc, EquityCandidates)
		require.True(t, ok)
		assert.Equal(t, 1.0, m.Value)
	})

	t.Run("non-coercible candidate is skipped", func(t *testing.T) {
		doc := decode(t, `{
			"equity": "n/a",
			"inner": {"accountValue": 55}
		}`)
		m, ok := FindNumber(doc, EquityCandidates)
		require.True(t, ok)
		assert.Equal(t, 55.0, m.Value)
		assert.Equal(t, []string{"inner", "accountValue"}, m.Path)
	})

	t.Run("case-insensitive match", func(t *testing.T) {
		doc := decode(t, `{"EQUITY": 7}`)
		m, ok := FindNumber(doc, EquityCandidates)
		require.True(t, ok)
		assert.Equal(t, 7.0, m.Value)
		assert.Equal(t, []string{"EQUITY"}, m.Path)
	})

	t.Run("search descends through arrays", func(t *testing.T) {
		doc := decode(t, `{"items": [{"noise": 1}, {"netLiq": "12.25"}]}`)
		m, ok := FindNumber(doc, EquityCandidates)
		require.True(t, ok)
		assert.Equal(t, 12.25, m.Value)
		assert.Equal(t, []string{"items", "1", "netLiq"}, m.Path)
	})

	t.Run("absent everywhere", func(t *testing.T) {
		doc := decode(t, `{"a": {"b": [1, 2, {"c": "x"}]}}`)
		_, ok := FindNumber(doc, EquityCandidates)
		assert.False(t, ok)
	})

	t.Run("scalar document", func(t *testing.T) {
		_, ok := FindNumber(42.0, EquityCandidates)
		assert.False(t, ok)
	})
}

func TestCountCollection(t *testing.T) {
	t.Run("list value returns element count", func(t *testing.T) {
		doc := decode(t, `{"assetPositions": [{}, {}, {}]}`)
		n, ok := CountCollection(doc, PositionCollections)
		require.True(t, ok)
		assert.Equal(t, 3, n)
	})

	t.Run("object value returns key count", func(t *testing.T) {
		doc := decode(t, `{"state": {"openPositions": {"BTC": {}, "ETH": {}}}}`)
		n, ok := CountCollection(doc, PositionCollections)
		require.True(t, ok)
		assert.Equal(t, 2, n)
	})

	t.Run("empty list counts as zero, still found", func(t *testing.T) {
		doc := decode(t, `{"positions": []}`)
		n, ok := CountCollection(doc, PositionCollections)
		require.True(t, ok)
		assert.Equal(t, 0, n)
	})

	t.Run("scalar under a matching key is not a collection", func(t *testing.T) {
		doc := decode(t, `{"positions": 5}`)
		_, ok := CountCollection(doc, PositionCollections)
		assert.False(t, ok)
	})

	t.Run("absent", func(t *testing.T) {
		doc := decode(t, `{"a": 1}`)
		_, ok := CountCollection(doc, PositionCollections)
		assert.False(t, ok)
	})
}

func TestAccountMetrics(t *testing.T) {
	doc := decode(t, `{
		"marginSummary": {"equity": "1234.5"},
		"assetPositions": [{}, {}]
	}`)

	t.Run("without hint", func(t *testing.T) {
		s := AccountMetrics(doc, "")
		require.True(t, s.HasEquity)
		assert.Equal(t, 1234.5, s.Equity.Value)
		assert.Equal(t, []string{"marginSummary", "equity"}, s.Equity.Path)
		require.True(t, s.HasPositions)
		assert.Equal(t, 2, s.Positions)
	})

	t.Run("hint takes precedence", func(t *testing.T) {
		withHint := decode(t, `{
			"marginSummary": {"equity": "1234.5"},
			"summary": {"netLiq": "50"}
		}`)
		s := AccountMetrics(withHint, "summary.netLiq")
		require.True(t, s.HasEquity)
		assert.Equal(t, 50.0, s.Equity.Value)
		assert.Equal(t, []string{"summary", "netLiq"}, s.Equity.Path)
	})

	t.Run("failed hint falls back to search", func(t *testing.T) {
		s := AccountMetrics(doc, "no.such.path")
		require.True(t, s.HasEquity)
		assert.Equal(t, 1234.5, s.Equity.Value)
	})

	t.Run("nothing found is not an error", func(t *testing.T) {
		s := AccountMetrics(decode(t, `{"x": "y"}`), "")
		assert.False(t, s.HasEquity)
		assert.False(t, s.HasPositions)
	})
}
