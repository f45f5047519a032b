package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceManager_Next_UnseededReturnsError(t *testing.T) {
	n := &NonceManager{}
	_, err := n.Next()
	assert.Error(t, err)
}

func TestNonceManager_Next_ReturnsCurrentWithoutAdvancing(t *testing.T) {
	n := &NonceManager{seeded: true, current: 7}

	got, err := n.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got)

	got2, err := n.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got2, "Next must not advance the counter")
}

func TestNonceManager_Advance_MovesCounterForwardByOne(t *testing.T) {
	n := &NonceManager{seeded: true, current: 7}
	n.Advance()

	got, err := n.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got)
}

func TestClassifySubmitError_NonceTooLow(t *testing.T) {
	assert.Equal(t, SubmitNonceConflict, classifySubmitError(errors.New("nonce too low")))
}

func TestClassifySubmitError_AlreadyKnown(t *testing.T) {
	assert.Equal(t, SubmitNonceConflict, classifySubmitError(errors.New("already known")))
}

func TestClassifySubmitError_GasPriceTooLow(t *testing.T) {
	assert.Equal(t, SubmitGasTooHigh, classifySubmitError(errors.New("gas price too low")))
}

func TestClassifySubmitError_ExecutionReverted(t *testing.T) {
	assert.Equal(t, SubmitReverted, classifySubmitError(errors.New("execution reverted: insufficient output")))
}

func TestClassifySubmitError_UnrecognizedFallsBackToNetwork(t *testing.T) {
	assert.Equal(t, SubmitNetwork, classifySubmitError(errors.New("connection refused")))
}

func TestContainsAny_MatchesAnySubstring(t *testing.T) {
	assert.True(t, containsAny("nonce too low: got 5", "nonce too low", "nonce too high"))
	assert.False(t, containsAny("some other error", "nonce too low", "nonce too high"))
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
}

func TestReconnector_Backoff_GrowsExponentiallyUntilCap(t *testing.T) {
	r := &reconnector{reconnectDelay: time.Millisecond, maxReconnectDelay: 8 * time.Millisecond}

	start := time.Now()
	require.True(t, r.backoff(context.Background())) // attempt 1: 1ms
	require.True(t, r.backoff(context.Background())) // attempt 2: 2ms
	require.True(t, r.backoff(context.Background())) // attempt 3: 4ms
	require.True(t, r.backoff(context.Background())) // attempt 4: 8ms (would be 8ms, capped)
	require.True(t, r.backoff(context.Background())) // attempt 5: would be 16ms, capped at 8ms
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 1*time.Millisecond+2*time.Millisecond+4*time.Millisecond+8*time.Millisecond+8*time.Millisecond)
}

func TestReconnector_Backoff_ReturnsFalseOnCancelledContext(t *testing.T) {
	r := &reconnector{reconnectDelay: time.Hour, maxReconnectDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, r.backoff(ctx))
}

func TestReconnector_ResetBackoff_ZeroesAttempts(t *testing.T) {
	r := &reconnector{reconnectDelay: time.Millisecond, maxReconnectDelay: time.Second, attempts: 5}
	r.resetBackoff()
	assert.Equal(t, 0, r.attempts)
}
