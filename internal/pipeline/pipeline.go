// Package pipeline buffers detected opportunities for one chain between
// the Detector and the Executor: a bounded FIFO with pool-sequence dedup
// and USD-threshold filtering (§4.6).
package pipeline

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/oracle"
)

// DedupWindow is how long a pool-ID sequence is remembered to reject
// duplicate opportunities arising from the same graph update (§4.6's "T
// ms"). Tunable; not calibrated against production traffic.
var DedupWindow = 500 * time.Millisecond

// sweepInterval drives the periodic GC of both the dedup map and the
// queue's expired entries, independent of dequeue activity (§4.6).
var sweepInterval = 250 * time.Millisecond

// Pipeline is a bounded per-chain FIFO of pending opportunities.
type Pipeline struct {
	chainID   uint64
	minProfit *big.Float // USD
	oracle    oracle.Oracle
	log       *zap.Logger

	mu    sync.Mutex
	queue []*model.Opportunity
	seen  map[string]time.Time // canonical pool-sequence key -> insert time
	cap   int
}

func New(chainID uint64, capacity int, minProfitUSD *big.Float, o oracle.Oracle, log *zap.Logger) *Pipeline {
	p := &Pipeline{
		chainID:   chainID,
		cap:       capacity,
		minProfit: minProfitUSD,
		oracle:    o,
		log:       log.With(zap.Uint64("chain_id", chainID)),
		seen:      make(map[string]time.Time),
	}
	return p
}

// Run drives the periodic dedup/expiry sweep until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// Offer enqueues an opportunity, rejecting duplicates within DedupWindow
// and dropping the oldest entry if the queue is at capacity.
func (p *Pipeline) Offer(opp *model.Opportunity) {
	key := poolSequenceKey(opp.PoolSequence())

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.seen[key]; ok && time.Since(last) < DedupWindow {
		p.log.Debug("dropping duplicate opportunity", zap.String("key", key))
		return
	}
	p.seen[key] = time.Now()

	if len(p.queue) >= p.cap {
		p.log.Warn("pipeline at capacity, dropping oldest", zap.Int("capacity", p.cap))
		p.queue = p.queue[1:]
	}
	p.queue = append(p.queue, opp)
}

// Dequeue removes and returns the next viable opportunity, skipping (and
// dropping) any that are expired or fall below the USD profit threshold.
// An oracle failure falls back to evaluating the native-unit profit
// against zero, per §4.6's "evaluate in native units" fallback.
func (p *Pipeline) Dequeue(ctx context.Context) *model.Opportunity {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 {
		opp := p.queue[0]
		p.queue = p.queue[1:]

		if time.Now().After(opp.ExpiresAt) {
			p.log.Debug("dropping expired opportunity", zap.String("id", opp.ID))
			continue
		}

		if !p.meetsThreshold(ctx, opp) {
			p.log.Debug("dropping opportunity below usd threshold", zap.String("id", opp.ID))
			continue
		}

		return opp
	}
	return nil
}

func (p *Pipeline) meetsThreshold(ctx context.Context, opp *model.Opportunity) bool {
	if p.minProfit == nil || p.oracle == nil {
		return true
	}
	usdPerToken, err := p.oracle.Quote(ctx, opp.InputToken)
	if err != nil {
		// Native-unit fallback: any positive profit clears the bar when
		// no USD conversion is available.
		return opp.ExpectedProfit.Sign() > 0
	}
	profitUSD := new(big.Float).Mul(new(big.Float).SetInt(opp.ExpectedProfit), usdPerToken)
	return profitUSD.Cmp(p.minProfit) >= 0
}

// Len reports the current queue depth, for the control surface's
// queue-status endpoint.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Snapshot returns a shallow copy of the current queue for inspection.
func (p *Pipeline) Snapshot() []*model.Opportunity {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Opportunity, len(p.queue))
	copy(out, p.queue)
	return out
}

func (p *Pipeline) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for k, t := range p.seen {
		if now.Sub(t) > DedupWindow {
			delete(p.seen, k)
		}
	}

	live := p.queue[:0]
	for _, opp := range p.queue {
		if now.After(opp.ExpiresAt) {
			continue
		}
		live = append(live, opp)
	}
	p.queue = live
}

func poolSequenceKey(ids []model.PoolID) string {
	key := ""
	for i, id := range ids {
		if i > 0 {
			key += "|"
		}
		key += id.String()
	}
	return key
}
