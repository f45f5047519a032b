package detector

import (
	"math"

	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/pricing"
)

// negativeCycleFromSource runs Bellman-Ford relaxation from sourceIdx over
// every edge in the graph and, if a negative cycle is reachable, returns
// the edges composing it: the textbook |V|-1-pass relaxation, one
// detection pass, then a predecessor walk back onto the cycle.
func negativeCycleFromSource(g *pricing.Graph, sourceIdx int) []*model.Edge {
	n := g.TokenCount()
	if n == 0 {
		return nil
	}

	dist := make([]float64, n)
	pred := make([]int, n)
	predEdge := make([]*model.Edge, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = -1
	}
	dist[sourceIdx] = 0

	edges := g.AllEdges()

	for i := 0; i < n-1; i++ {
		changed := false
		for _, e := range edges {
			if math.IsInf(e.Weight, 1) {
				continue
			}
			fromIdx := g.TokenIndex(e.From)
			toIdx := g.TokenIndex(e.To)
			if fromIdx < 0 || toIdx < 0 || math.IsInf(dist[fromIdx], 1) {
				continue
			}
			if nd := dist[fromIdx] + e.Weight; nd < dist[toIdx] {
				dist[toIdx] = nd
				pred[toIdx] = fromIdx
				predEdge[toIdx] = e
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}

	// Detection pass: any edge that still relaxes has its destination on
	// or downstream of a negative cycle.
	var cycleStart int = -1
	for _, e := range edges {
		if math.IsInf(e.Weight, 1) {
			continue
		}
		fromIdx := g.TokenIndex(e.From)
		toIdx := g.TokenIndex(e.To)
		if fromIdx < 0 || toIdx < 0 || math.IsInf(dist[fromIdx], 1) {
			continue
		}
		if dist[fromIdx]+e.Weight < dist[toIdx] {
			cycleStart = toIdx
			break
		}
	}
	if cycleStart == -1 {
		return nil
	}

	// Walk |V| predecessor steps back from cycleStart to guarantee landing
	// on the cycle itself, then trace once around it.
	v := cycleStart
	for i := 0; i < n; i++ {
		if pred[v] == -1 {
			return nil
		}
		v = pred[v]
	}

	var edgesOut []*model.Edge
	start := v
	for {
		e := predEdge[v]
		if e == nil {
			return nil
		}
		edgesOut = append(edgesOut, e)
		v = pred[v]
		if v == start {
			break
		}
		if len(edgesOut) > n {
			return nil // defensive: malformed predecessor chain
		}
	}

	// edgesOut was collected walking backward from cycleStart to start; put
	// it back into forward (source-to-destination) order.
	for i, j := 0, len(edgesOut)-1; i < j; i, j = i+1, j-1 {
		edgesOut[i], edgesOut[j] = edgesOut[j], edgesOut[i]
	}
	return edgesOut
}
