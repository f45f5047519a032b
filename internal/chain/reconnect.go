package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ConnectionState mirrors the subscription transport's lifecycle, adapted
// from the WebSocket price providers' connection state machine in the
// gswap-arb example (disconnected → connecting → connected →
// reconnecting).
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// reconnector tracks backoff state for one Client's subscription loop.
// It is only ever touched from that loop's single goroutine, so it needs
// no internal locking.
type reconnector struct {
	state             ConnectionState
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	attempts          int
}

func newReconnector(c *Client) *reconnector {
	return &reconnector{
		state:             StateDisconnected,
		reconnectDelay:    time.Second,
		maxReconnectDelay: 30 * time.Second,
	}
}

// RefreshFunc performs the one-shot state refresh required before a
// reconnected client is marked healthy (§4.1): read current reserves for
// every watched pool so the Mirror cannot act on stale snapshots.
type RefreshFunc func(ctx context.Context) error

// LogHandler receives each raw log delivered by the subscription; decoding
// is left to the handler.
type LogHandler func(types.Log)

// Subscribe runs the event-subscription loop for a filter query. On
// subscription drop it reconnects with exponential backoff, re-subscribes,
// and performs a one-shot refresh before marking the client healthy again.
// It blocks until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, q ethereum.FilterQuery, handler LogHandler, refresh RefreshFunc) error {
	r := c.recon
	logCh := make(chan types.Log, 256)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.RLock()
		ws := c.ws
		c.mu.RUnlock()

		sub, err := ws.SubscribeFilterLogs(ctx, q, logCh)
		if err != nil {
			c.log.Warn("subscribe failed, backing off", zap.Error(err))
			if !r.backoff(ctx) {
				return ctx.Err()
			}
			if err := c.reconnectWS(ctx); err != nil {
				c.log.Warn("reconnect failed", zap.Error(err))
			}
			continue
		}

		r.resetBackoff()
		if refresh != nil {
			if err := refresh(ctx); err != nil {
				c.log.Warn("post-reconnect refresh failed", zap.Error(err))
			}
		}
		c.setHealthy(true)

	readLoop:
		for {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				return ctx.Err()
			case err := <-sub.Err():
				c.log.Warn("subscription dropped", zap.Error(err))
				c.setHealthy(false)
				break readLoop
			case lg := <-logCh:
				handler(lg)
			}
		}

		if !r.backoff(ctx) {
			return ctx.Err()
		}
		if err := c.reconnectWS(ctx); err != nil {
			c.log.Warn("reconnect failed", zap.Error(err))
		}
	}
}

func (c *Client) reconnectWS(ctx context.Context) error {
	ws, err := ethclient.DialContext(ctx, c.wsURL)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
	}
	c.ws = ws
	c.mu.Unlock()
	return nil
}

// backoff sleeps for the current delay (with exponential growth capped at
// maxReconnectDelay) and reports whether the caller should keep retrying.
func (r *reconnector) backoff(ctx context.Context) bool {
	r.attempts++
	shift := r.attempts - 1
	if shift > 10 {
		shift = 10
	}
	delay := r.reconnectDelay * time.Duration(1<<uint(shift))
	if delay > r.maxReconnectDelay {
		delay = r.maxReconnectDelay
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *reconnector) resetBackoff() {
	r.attempts = 0
}
