// Package chain wraps go-ethereum's ethclient with the per-chain
// subscribe/read/submit/gas abstraction of SPEC_FULL §4.1: HTTP for calls
// and submission, WebSocket for event subscriptions with automatic
// reconnect, and a single-writer nonce counter.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/errs"
	"github.com/evmarb/searcher/internal/model"
)

// Client is the per-chain Chain Client. One Client owns one chain's RPC
// endpoints, subscription lifecycle, and nonce counter.
type Client struct {
	ChainID uint64
	log     *zap.Logger

	httpURL, wsURL, privateURL string

	mu      sync.RWMutex
	rpc     *ethclient.Client // HTTP transport: calls, gas, submission
	ws      *ethclient.Client // WebSocket transport: subscriptions
	private *ethclient.Client // optional priority-submission endpoint
	healthy bool

	nonce *NonceManager
	recon *reconnector
}

// Dial connects the HTTP and WebSocket transports for a chain. The private
// submission endpoint, if configured, is dialed lazily on first use.
func Dial(ctx context.Context, chainID uint64, endpoints model.ChainEndpoints, log *zap.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, endpoints.RPC)
	if err != nil {
		return nil, fmt.Errorf("dial http endpoint: %w", err)
	}

	var ws *ethclient.Client
	if endpoints.WS != "" {
		ws, err = ethclient.DialContext(ctx, endpoints.WS)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("dial ws endpoint: %w", err)
		}
	}

	c := &Client{
		ChainID:     chainID,
		log:         log.With(zap.Uint64("chain_id", chainID)),
		httpURL:     endpoints.RPC,
		wsURL:       endpoints.WS,
		privateURL:  endpoints.PrivateSubmit,
		rpc:         rpc,
		ws:          ws,
		healthy:     true,
	}
	c.nonce = NewNonceManager(c)
	c.recon = newReconnector(c)
	return c, nil
}

// Close tears down all transports.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
	}
	if c.ws != nil {
		c.ws.Close()
	}
	if c.private != nil {
		c.private.Close()
	}
}

// Healthy reports whether the subscription transport has completed its
// one-shot post-reconnect refresh (§4.1): the Mirror must not act on stale
// snapshots delivered while the client was reconnecting.
func (c *Client) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Client) setHealthy(h bool) {
	c.mu.Lock()
	c.healthy = h
	c.mu.Unlock()
}

// CallContract issues a read-only view call (eth_call).
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.RLock()
	rpc := c.rpc
	c.mu.RUnlock()
	out, err := rpc.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call: %v", errs.ErrNetwork, err)
	}
	return out, nil
}

// EstimateGas issues eth_estimateGas.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.RLock()
	rpc := c.rpc
	c.mu.RUnlock()
	gas, err := rpc.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: eth_estimateGas: %v", errs.ErrNetwork, err)
	}
	return gas, nil
}

// SuggestGasPrice issues eth_gasPrice.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	rpc := c.rpc
	c.mu.RUnlock()
	price, err := rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_gasPrice: %v", errs.ErrNetwork, err)
	}
	return price, nil
}

// NextNonce returns the next nonce to submit with, without advancing the
// counter (§4.1: the counter only advances on confirmed acceptance).
func (c *Client) NextNonce() (uint64, error) {
	return c.nonce.Next()
}

// AdvanceNonce moves the nonce counter past a confirmed-accepted nonce.
func (c *Client) AdvanceNonce() {
	c.nonce.Advance()
}

// ResyncNonce reseeds the nonce counter from chain state after a
// nonce-conflict submission failure (§7).
func (c *Client) ResyncNonce(ctx context.Context) error {
	return c.nonce.Resync(ctx)
}

// SeedNonce initializes the nonce counter for a wallet. Called once at
// startup before any submissions.
func (c *Client) SeedNonce(ctx context.Context, wallet common.Address) error {
	return c.nonce.Seed(ctx, wallet)
}

// BlockNumber issues eth_blockNumber.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	rpc := c.rpc
	c.mu.RUnlock()
	n, err := rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: eth_blockNumber: %v", errs.ErrNetwork, err)
	}
	return n, nil
}

// SubmitKind classifies the outcome of SendSignedTransaction per §4.1.
type SubmitKind string

const (
	SubmitOK           SubmitKind = "ok"
	SubmitGasTooHigh   SubmitKind = "gas-too-high"
	SubmitNonceConflict SubmitKind = "nonce-conflict"
	SubmitReverted     SubmitKind = "reverted"
	SubmitNetwork      SubmitKind = "network"
)

// SendSignedTransaction submits a signed transaction, preferring the
// private endpoint when usePrivate is true and one is configured.
func (c *Client) SendSignedTransaction(ctx context.Context, tx *types.Transaction, usePrivate bool) (common.Hash, SubmitKind, error) {
	target, err := c.submissionClient(ctx, usePrivate)
	if err != nil {
		return common.Hash{}, SubmitNetwork, err
	}

	if err := target.SendTransaction(ctx, tx); err != nil {
		return tx.Hash(), classifySubmitError(err), err
	}
	return tx.Hash(), SubmitOK, nil
}

func (c *Client) submissionClient(ctx context.Context, usePrivate bool) (*ethclient.Client, error) {
	if !usePrivate || c.privateURL == "" {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.rpc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.private == nil {
		priv, err := ethclient.DialContext(ctx, c.privateURL)
		if err != nil {
			return nil, fmt.Errorf("dial private endpoint: %w", err)
		}
		c.private = priv
	}
	return c.private, nil
}

func classifySubmitError(err error) SubmitKind {
	msg := err.Error()
	switch {
	case containsAny(msg, "nonce too low", "nonce too high", "already known"):
		return SubmitNonceConflict
	case containsAny(msg, "gas price too low", "max fee per gas less than", "intrinsic gas too low"):
		return SubmitGasTooHigh
	case containsAny(msg, "execution reverted", "revert"):
		return SubmitReverted
	default:
		return SubmitNetwork
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// AwaitReceipt polls for a transaction receipt until it reaches the
// requested confirmation depth or the context is cancelled.
func (c *Client) AwaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	c.mu.RLock()
	rpc := c.rpc
	c.mu.RUnlock()

	for {
		receipt, err := rpc.TransactionReceipt(ctx, txHash)
		if err == nil {
			if confirmations <= 1 {
				return receipt, nil
			}
			head, err := rpc.BlockNumber(ctx)
			if err == nil && head >= receipt.BlockNumber.Uint64()+confirmations-1 {
				return receipt, nil
			}
		} else if err != ethereum.NotFound {
			return nil, fmt.Errorf("%w: poll receipt: %v", errs.ErrNetwork, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-pollTick():
		}
	}
}
