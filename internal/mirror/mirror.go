// Package mirror applies pool events onto an in-memory snapshot table
// under the monotonic-sequence invariant of §3, and notifies subscribers
// (the Pricing Graph) of each successful application, following the same
// cache-guarded read/write pattern as a balance/nonce cache but scoped to
// pool snapshots.
package mirror

import (
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/errs"
	"github.com/evmarb/searcher/internal/model"
)

// Listener is notified with (pool-id, new-snapshot) on every successful
// apply, per §4.3.
type Listener func(id model.PoolID, pool *model.Pool)

// Mirror owns the pool snapshot table for one chain exclusively (§3).
type Mirror struct {
	chainID uint64
	log     *zap.Logger

	mu    sync.RWMutex
	pools map[model.PoolID]*model.Pool

	listenersMu sync.RWMutex
	listeners   []Listener
}

func New(chainID uint64, log *zap.Logger) *Mirror {
	return &Mirror{
		chainID: chainID,
		log:     log.With(zap.Uint64("chain_id", chainID)),
		pools:   make(map[model.PoolID]*model.Pool),
	}
}

// Register adds a newly discovered pool with its initial snapshot.
func (m *Mirror) Register(pool *model.Pool) {
	m.mu.Lock()
	m.pools[pool.ID] = pool
	m.mu.Unlock()
}

// Subscribe adds a listener notified on every successful apply.
func (m *Mirror) Subscribe(l Listener) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, l)
	m.listenersMu.Unlock()
}

// Get returns a snapshot copy of the current pool state, or nil. A copy,
// not the live pointer, since Apply* mutates pool.Snapshot in place under
// m.mu and a caller holding the live pointer outside that lock would race
// with it.
func (m *Mirror) Get(id model.PoolID) *model.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	if !ok {
		return nil
	}
	copy := *p
	return &copy
}

// All returns a snapshot copy of every currently tracked pool, for the
// control surface's mirror-snapshot endpoint (§6).
func (m *Mirror) All() []*model.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Pool, 0, len(m.pools))
	for _, p := range m.pools {
		copy := *p
		out = append(out, &copy)
	}
	return out
}

// ApplyV2Sync applies a v2-family Sync event's reserves verbatim, under the
// strictly-increasing sequence invariant of §3. Out-of-order deliveries
// are discarded (errs.ErrStaleSnapshot) without suspending other events —
// callers log and continue rather than propagating this upward.
func (m *Mirror) ApplyV2Sync(id model.PoolID, seq model.Sequence, reserve0, reserve1 *big.Int) error {
	m.mu.Lock()
	pool, ok := m.pools[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown pool %s", errs.ErrInvariantViolation, id)
	}
	if seq <= pool.Snapshot.Seq && pool.Snapshot.Seq != 0 {
		m.mu.Unlock()
		return errs.ErrStaleSnapshot
	}

	pool.Snapshot = model.PoolSnapshot{
		Seq:      seq,
		Reserve0: reserve0,
		Reserve1: reserve1,
	}
	m.mu.Unlock()

	m.notify(id, pool)
	return nil
}

// ApplyV3Swap applies a v3-family Swap event's (sqrtPrice, liquidity)
// verbatim, under the same sequence invariant.
func (m *Mirror) ApplyV3Swap(id model.PoolID, seq model.Sequence, sqrtPriceX96, liquidity *big.Int) error {
	m.mu.Lock()
	pool, ok := m.pools[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown pool %s", errs.ErrInvariantViolation, id)
	}
	if seq <= pool.Snapshot.Seq && pool.Snapshot.Seq != 0 {
		m.mu.Unlock()
		return errs.ErrStaleSnapshot
	}

	pool.Snapshot = model.PoolSnapshot{
		Seq:          seq,
		SqrtPriceX96: sqrtPriceX96,
		Liquidity:    liquidity,
	}
	m.mu.Unlock()

	m.notify(id, pool)
	return nil
}

func (m *Mirror) notify(id model.PoolID, pool *model.Pool) {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, l := range m.listeners {
		l(id, pool)
	}
}
