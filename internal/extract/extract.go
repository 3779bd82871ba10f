// Package extract locates numeric metrics inside arbitrarily-shaped JSON
// documents. Upstream APIs rename and re-nest fields between versions, so the
// search is structural: an optional explicit dot-path is tried first, then a
// breadth-first scan over the decoded document for candidate field names.
//
// "Not found" is a normal outcome everywhere in this package; no function
// returns an error.
package extract

import (
	"sort"
	"strconv"
	"strings"
)

// EquityCandidates are the field names tried by the account equity search,
// in the forms observed across upstream API versions.
var EquityCandidates = []string{
	"accountValue",
	"equity",
	"equityUsd",
	"equity_usd",
	"account_value",
	"netLiq",
	"net_liq",
}

// PositionCollections are the field names recognised as position-like
// collections.
var PositionCollections = []string{
	"assetPositions",
	"perpPositions",
	"positions",
	"openPositions",
}

// Metric is a located numeric value together with the path that resolved it.
// Path segments are object keys, with list indices rendered in decimal.
type Metric struct {
	Value float64
	Path  []string
}

// Summary bundles both extractor outputs for one account-state document.
type Summary struct {
	Equity       Metric
	HasEquity    bool
	Positions    int
	HasPositions bool
}

// CoerceNumber reports whether v can be treated as a number: JSON numbers
// pass through, strings parse as floats after trimming whitespace, anything
// else does not coerce.
func CoerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ResolveHint walks a dot-separated key path through doc. It succeeds only
// when every segment resolves to an object key and the terminal value
// coerces to a number; any miss is silent so callers fall back to FindNumber.
func ResolveHint(doc any, hint string) (Metric, bool) {
	if hint == "" {
		return Metric{}, false
	}

	node := doc
	segments := strings.Split(hint, ".")
	for _, seg := range segments {
		obj, ok := node.(map[string]any)
		if !ok {
			return Metric{}, false
		}
		child, ok := obj[seg]
		if !ok {
			return Metric{}, false
		}
		node = child
	}

	value, ok := CoerceNumber(node)
	if !ok {
		return Metric{}, false
	}
	return Metric{Value: value, Path: segments}, true
}

// FindNumber searches doc breadth-first for the first coercible value whose
// key matches one of candidates (case-insensitive). Keys at the node under
// inspection are checked before any children are enqueued, so a shallower
// match always wins over a deeper one; ties within one object break in
// sorted key order.
func FindNumber(doc any, candidates []string) (Metric, bool) {
	wanted := lowerSet(candidates)

	type item struct {
		node any
		path []string
	}
	queue := []item{{node: doc}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		switch node := cur.node.(type) {
		case map[string]any:
			keys := sortedKeys(node)

			// Own keys first: a match here must beat anything nested.
			for _, k := range keys {
				if _, hit := wanted[strings.ToLower(k)]; !hit {
					continue
				}
				if value, ok := CoerceNumber(node[k]); ok {
					return Metric{Value: value, Path: appendPath(cur.path, k)}, true
				}
			}
			for _, k := range keys {
				if isContainer(node[k]) {
					queue = append(queue, item{node: node[k], path: appendPath(cur.path, k)})
				}
			}
		case []any:
			for i, v := range node {
				if isContainer(v) {
					queue = append(queue, item{node: v, path: appendPath(cur.path, strconv.Itoa(i))})
				}
			}
		}
	}

	return Metric{}, false
}

// CountCollection searches doc breadth-first for a key matching one of names
// (case-insensitive) and returns the size of its value: element count for a
// list, key count for an object. The traversal shares no state with
// FindNumber.
func CountCollection(doc any, names []string) (int, bool) {
	wanted := lowerSet(names)

	queue := []any{doc}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		switch node := cur.(type) {
		case map[string]any:
			keys := sortedKeys(node)
			for _, k := range keys {
				if _, hit := wanted[strings.ToLower(k)]; !hit {
					continue
				}
				switch v := node[k].(type) {
				case []any:
					return len(v), true
				case map[string]any:
					return len(v), true
				}
			}
			for _, k := range keys {
				if isContainer(node[k]) {
					queue = append(queue, node[k])
				}
			}
		case []any:
			for _, v := range node {
				if isContainer(v) {
					queue = append(queue, v)
				}
			}
		}
	}

	return 0, false
}

// AccountMetrics runs the full account-state extraction: the hint path when
// supplied, the candidate-name search otherwise, plus the independent
// position count.
func AccountMetrics(doc any, hint string) Summary {
	var s Summary

	if m, ok := ResolveHint(doc, hint); ok {
		s.Equity = m
		s.HasEquity = true
	} else if m, ok := FindNumber(doc, EquityCandidates); ok {
		s.Equity = m
		s.HasEquity = true
	}

	s.Positions, s.HasPositions = CountCollection(doc, PositionCollections)
	return s
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// appendPath copies before appending so sibling queue entries never share a
// backing array.
func appendPath(path []string, seg string) []string {
	next := make([]string, len(path), len(path)+1)
	copy(next, path)
	return append(next, seg)
}
