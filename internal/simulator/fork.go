// Package simulator validates a candidate Opportunity against live chain
// state before execution (§4.7): an eth_call against the arbitrage
// contract, not a full forked-EVM replay. Fork is a lighter, chain-agnostic
// balance/nonce cache; nothing outside this package's own tests uses it.
package simulator

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Fork is an in-memory balance/nonce cache keyed by address, populated
// directly by test fixtures rather than fetched live — the live
// simulation path (Simulate, below) validates against current chain
// state through eth_call and has no use for a forked cache.
type Fork struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
}

func NewFork() *Fork {
	return &Fork{
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
	}
}

func (f *Fork) SetBalance(addr common.Address, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = balance
}

func (f *Fork) SetNonce(addr common.Address, nonce uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonces[addr] = nonce
}

func (f *Fork) Balance(addr common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (f *Fork) Nonce(addr common.Address) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[addr]
}
