package detector

import (
	"fmt"

	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/pricing"
)

// tripleKey identifies one directed hop through one pool, for the
// "reject revisited (edge-source, edge-destination, pool) triple" rule —
// distinct from simply marking a token visited, since a path is allowed
// to pass back through a token via a different pool.
type tripleKey struct {
	from, to int
	pool     model.PoolID
}

// enumerateCycles performs bounded depth-first search from sourceIdx,
// returning every simple path of length 2..maxLen that returns to the
// source. Recursion shape (visited-triple set, path slice, cycle closure
// when a neighbor equals the start index) is adapted from the pack's
// EnumerateAllCycles/dfs pair (jonasrmichel-gswap-arb's graph/cycles.go),
// generalized from a per-token visited array to the per-triple rejection
// rule required here so a token may be revisited through a different
// pool within the same path.
func enumerateCycles(g *pricing.Graph, sourceIdx int, maxLen int) [][]*model.Edge {
	if maxLen < 2 {
		maxLen = 2
	}

	var out [][]*model.Edge
	seen := make(map[string]bool)
	visitedTriples := make(map[tripleKey]bool)
	path := make([]*model.Edge, 0, maxLen)

	var dfs func(currentIdx int)
	dfs = func(currentIdx int) {
		for _, e := range g.EdgesFrom(currentIdx) {
			toIdx := g.TokenIndex(e.To)
			if toIdx < 0 {
				continue
			}
			key := tripleKey{from: currentIdx, to: toIdx, pool: e.PoolID}
			if visitedTriples[key] {
				continue
			}

			if toIdx == sourceIdx && len(path) >= 1 {
				candidate := append(append([]*model.Edge{}, path...), e)
				k := canonicalCycleKey(candidate)
				if !seen[k] {
					seen[k] = true
					out = append(out, candidate)
				}
				continue
			}

			if len(path) >= maxLen-1 {
				continue
			}

			visitedTriples[key] = true
			path = append(path, e)
			dfs(toIdx)
			path = path[:len(path)-1]
			delete(visitedTriples, key)
		}
	}

	dfs(sourceIdx)
	return out
}

// canonicalCycleKey builds a dedup key from the ordered pool-ID sequence of
// a cycle, keyed on edges (which already encode direction) rather than
// tokens, since two pools can connect the same token pair. The key is the
// sequence exactly as given: it is not rotated into a canonical start, so
// two rotations of the same cycle produce different keys.
func canonicalCycleKey(edges []*model.Edge) string {
	key := ""
	for i, e := range edges {
		if i > 0 {
			key += "->"
		}
		key += fmt.Sprintf("%s:%s", e.PoolID.String(), e.From.Hex())
	}
	return key
}
