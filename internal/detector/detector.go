// Package detector runs the two complementary cycle searches over a
// chain's pricing graph (§4.5), quotes each candidate exactly, and
// promotes profitable ones to Opportunity values.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/pricing"
)

// MaxCycleLength is the default bound K on bounded-depth cycle
// enumeration (§4.5 names K=3 as the default). Package-level var, not a
// const, so callers/tests can tune it without forking the package —
// treat the numeric constants here as tunable, matching the open
// question that the confidence/threshold heuristics are uncalibrated.
var MaxCycleLength = 3

// LiquidityFloor is the reserve-depth threshold below which an edge's
// thinner side counts as "thin" for the confidence penalty.
var LiquidityFloor = big.NewInt(1_000_000_000_000_000_000) // 1 unit at 18 decimals, tunable

// OpportunityTTL is how long a promoted Opportunity remains valid before
// the Pipeline drops it on dequeue.
var OpportunityTTL = 2 * time.Second

// Detector finds and quotes arbitrage cycles on one chain's graph.
type Detector struct {
	chainID     uint64
	graph       *pricing.Graph
	sourceToken common.Address
	minProfit   *big.Int
	inputAmount *big.Int
	log         *zap.Logger

	mu      sync.Mutex
	running bool
	dirty   bool
}

func New(chainID uint64, graph *pricing.Graph, sourceToken common.Address, inputAmount, minProfit *big.Int, log *zap.Logger) *Detector {
	return &Detector{
		chainID:     chainID,
		graph:       graph,
		sourceToken: sourceToken,
		inputAmount: inputAmount,
		minProfit:   minProfit,
		log:         log.With(zap.Uint64("chain_id", chainID)),
	}
}

// OnGraphUpdate is the Mirror's notification hook. At most one Run
// executes at a time per chain; a notification arriving mid-run sets the
// dirty flag, consumed as exactly one follow-up run (§4.5, §5).
func (d *Detector) OnGraphUpdate(ctx context.Context, emit func(*model.Opportunity)) {
	d.mu.Lock()
	if d.running {
		d.dirty = true
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	go d.runLoop(ctx, emit)
}

func (d *Detector) runLoop(ctx context.Context, emit func(*model.Opportunity)) {
	for {
		for _, opp := range d.Run() {
			emit(opp)
		}

		d.mu.Lock()
		if !d.dirty {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.dirty = false
		d.mu.Unlock()

		if ctx.Err() != nil {
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return
		}
	}
}

// Run performs one detection pass: Bellman-Ford from the source token,
// bounded DFS enumeration from the source token, dedup by edge-sequence
// identity, quote and filter each candidate, then order by the §4.5
// tie-break rule.
func (d *Detector) Run() []*model.Opportunity {
	sourceIdx := d.graph.TokenIndex(d.sourceToken)
	if sourceIdx < 0 {
		return nil
	}

	var candidates [][]*model.Edge
	if bf := negativeCycleFromSource(d.graph, sourceIdx); bf != nil {
		candidates = append(candidates, bf)
	}
	candidates = append(candidates, enumerateCycles(d.graph, sourceIdx, MaxCycleLength)...)

	dedup := make(map[string][]*model.Edge)
	for _, c := range candidates {
		dedup[canonicalCycleKey(c)] = c
	}

	now := time.Now()
	var opps []*model.Opportunity
	for _, edges := range dedup {
		opp := d.quote(edges, now)
		if opp != nil {
			opps = append(opps, opp)
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].ExpectedProfit.Cmp(opps[j].ExpectedProfit) != 0 {
			return opps[i].ExpectedProfit.Cmp(opps[j].ExpectedProfit) > 0
		}
		if opps[i].Confidence != opps[j].Confidence {
			return opps[i].Confidence > opps[j].Confidence
		}
		return opps[i].CreatedAt.Before(opps[j].CreatedAt)
	})

	return opps
}

// quote runs the executable quote (§4.5): exact per-edge output applied
// sequentially from d.inputAmount, promoted only if the final output beats
// the input by at least d.minProfit.
func (d *Detector) quote(edges []*model.Edge, now time.Time) *model.Opportunity {
	stepOutputs := make([]*big.Int, len(edges))
	amount := new(big.Int).Set(d.inputAmount)

	for i, e := range edges {
		out := pricing.ExactAmountOut(e, amount)
		if out == nil || out.Sign() <= 0 {
			return nil
		}
		stepOutputs[i] = out
		amount = out
	}

	profit := new(big.Int).Sub(amount, d.inputAmount)
	if profit.Cmp(d.minProfit) < 0 {
		return nil
	}

	confidence := computeConfidence(edges, d.inputAmount, profit)

	return &model.Opportunity{
		ID:             opportunityID(d.chainID, edges),
		ChainID:        d.chainID,
		Edges:          edges,
		InputToken:     edges[0].From,
		InputAmount:    new(big.Int).Set(d.inputAmount),
		StepOutputs:    stepOutputs,
		ExpectedOutput: amount,
		ExpectedProfit: profit,
		Confidence:     confidence,
		CreatedAt:      now,
		ExpiresAt:      now.Add(OpportunityTTL),
	}
}

// computeConfidence implements §4.5's heuristic exactly:
// min(profit_bps/100, 1) * 0.95^(len-2) * 0.8^(thin edges).
func computeConfidence(edges []*model.Edge, inputAmount, profit *big.Int) float64 {
	profitBps := new(big.Int).Mul(profit, big.NewInt(10000))
	profitBps.Div(profitBps, inputAmount)
	base := math.Min(float64(profitBps.Int64())/100.0, 1.0)

	lengthPenalty := math.Pow(0.95, float64(len(edges)-2))

	thin := 0
	for _, e := range edges {
		if isThin(e) {
			thin++
		}
	}
	depthPenalty := math.Pow(0.8, float64(thin))

	return base * lengthPenalty * depthPenalty
}

func isThin(e *model.Edge) bool {
	if e.ReserveIn == nil || e.ReserveOut == nil {
		return false
	}
	thinner := e.ReserveIn
	if e.ReserveOut.Cmp(thinner) < 0 {
		thinner = e.ReserveOut
	}
	return thinner.Cmp(LiquidityFloor) < 0
}

func opportunityID(chainID uint64, edges []*model.Edge) string {
	h := sha256.New()
	for _, e := range edges {
		h.Write(e.PoolID.Address.Bytes())
		h.Write(e.From.Bytes())
		h.Write(e.To.Bytes())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
