// Package pricing maintains the directed multigraph of tokens and
// derived edges for one chain (§3, §4.4). Token/adjacency/edge-index
// bookkeeping is grounded on the gswap-arb example's graph package,
// generalized from string token keys to on-chain addresses and from a
// single rate source to the full v2/v3/stable/route-list dispatch in
// math.go.
package pricing

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evmarb/searcher/internal/model"
)

// Graph is a directed multigraph over the tokens of a single chain. Each
// chain owns an independent Graph; there is no cross-chain edge (§3).
type Graph struct {
	chainID uint64

	mu sync.RWMutex

	tokenIndex map[common.Address]int
	tokens     []common.Address
	adj        [][]int // tokenIdx -> edge indices leaving it

	edges       []*model.Edge
	edgesByPool map[model.PoolID][2]int // poolID -> [fwdEdgeIdx, revEdgeIdx], -1 if absent
}

func New(chainID uint64) *Graph {
	return &Graph{
		chainID:     chainID,
		tokenIndex:  make(map[common.Address]int),
		edgesByPool: make(map[model.PoolID][2]int),
	}
}

// tokenIdx returns the index for a token, creating it if necessary. Caller
// must hold g.mu for writing.
func (g *Graph) tokenIdx(addr common.Address) int {
	if idx, ok := g.tokenIndex[addr]; ok {
		return idx
	}
	idx := len(g.tokens)
	g.tokens = append(g.tokens, addr)
	g.tokenIndex[addr] = idx
	g.adj = append(g.adj, nil)
	return idx
}

// OnPoolUpdate recomputes both directed edges for a pool snapshot and
// swaps them in atomically: a reader taking the write lock's matching
// RLock never observes one direction updated and the other stale for the
// same pool (§4.4's no-torn-pair invariant).
func (g *Graph) OnPoolUpdate(pool *model.Pool) {
	fwd, rev := deriveEdges(pool)

	g.mu.Lock()
	defer g.mu.Unlock()

	fromIdx := g.tokenIdx(pool.Token0)
	toIdx := g.tokenIdx(pool.Token1)

	slots, exists := g.edgesByPool[pool.ID]
	if !exists {
		fwdIdx := g.appendEdge(fwd)
		revIdx := g.appendEdge(rev)
		g.adj[fromIdx] = append(g.adj[fromIdx], fwdIdx)
		g.adj[toIdx] = append(g.adj[toIdx], revIdx)
		g.edgesByPool[pool.ID] = [2]int{fwdIdx, revIdx}
		return
	}

	// Both directions replaced in the same critical section: an RLock
	// taken before this point sees the old pair, one taken after sees the
	// new pair, never a mix.
	g.edges[slots[0]] = fwd
	g.edges[slots[1]] = rev
}

func (g *Graph) appendEdge(e *model.Edge) int {
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	return idx
}

// Tokens returns a snapshot of every token currently in the graph.
func (g *Graph) Tokens() []common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]common.Address, len(g.tokens))
	copy(out, g.tokens)
	return out
}

// TokenIndex returns the index of a token, or -1 if absent.
func (g *Graph) TokenIndex(addr common.Address) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx, ok := g.tokenIndex[addr]; ok {
		return idx
	}
	return -1
}

// TokenCount reports the current vertex count.
func (g *Graph) TokenCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tokens)
}

// EdgesFrom returns a snapshot of the edges leaving tokenIdx.
func (g *Graph) EdgesFrom(tokenIdx int) []*model.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if tokenIdx < 0 || tokenIdx >= len(g.adj) {
		return nil
	}
	out := make([]*model.Edge, len(g.adj[tokenIdx]))
	for i, edgeIdx := range g.adj[tokenIdx] {
		out[i] = g.edges[edgeIdx]
	}
	return out
}

// AllEdges returns a snapshot of every edge in the graph.
func (g *Graph) AllEdges() []*model.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// TokenByIndex returns the token address at idx.
func (g *Graph) TokenByIndex(idx int) common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 0 || idx >= len(g.tokens) {
		return common.Address{}
	}
	return g.tokens[idx]
}
