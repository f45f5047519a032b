package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager is a single-writer nonce counter for one chain, initialized
// from the chain and advanced only on confirmed acceptance (§4.1). Nothing
// else on the chain's coordinator goroutine tree mutates the nonce
// directly, matching the "at most one in-flight transaction per chain"
// resource model of §5.
type NonceManager struct {
	client *Client

	mu       sync.Mutex
	wallet   common.Address
	current  uint64
	seeded   bool
}

// NewNonceManager constructs an unseeded manager; Seed must be called once
// a wallet address is known.
func NewNonceManager(client *Client) *NonceManager {
	return &NonceManager{client: client}
}

// Seed initializes the counter from the chain's current transaction count
// for the wallet. Called once at startup and again after a nonce-conflict
// resync (§7 error kind 6).
func (n *NonceManager) Seed(ctx context.Context, wallet common.Address) error {
	n.client.mu.RLock()
	rpc := n.client.rpc
	n.client.mu.RUnlock()

	nonce, err := rpc.PendingNonceAt(ctx, wallet)
	if err != nil {
		return fmt.Errorf("seed nonce: %w", err)
	}

	n.mu.Lock()
	n.wallet = wallet
	n.current = nonce
	n.seeded = true
	n.mu.Unlock()
	return nil
}

// Next returns the next nonce to use for a submission without advancing
// the counter — the counter only advances on confirmed acceptance via
// Advance, per §4.1.
func (n *NonceManager) Next() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.seeded {
		return 0, fmt.Errorf("nonce manager not seeded")
	}
	return n.current, nil
}

// Advance moves the counter forward past a confirmed-accepted nonce.
func (n *NonceManager) Advance() {
	n.mu.Lock()
	n.current++
	n.mu.Unlock()
}

// Resync reseeds the counter from chain state after a nonce-conflict
// submission failure (§7: "resync nonce from chain and retry once").
func (n *NonceManager) Resync(ctx context.Context) error {
	n.mu.Lock()
	wallet := n.wallet
	n.mu.Unlock()
	return n.Seed(ctx, wallet)
}
