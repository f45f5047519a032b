package simulator_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/evmarb/searcher/internal/simulator"
)

var addr = common.HexToAddress("0x00000000000000000000000000000000000001")

func TestFork_Balance_UnsetAddressReturnsZero(t *testing.T) {
	f := simulator.NewFork()
	assert.Equal(t, big.NewInt(0), f.Balance(addr))
}

func TestFork_SetBalance_ThenBalanceReturnsIt(t *testing.T) {
	f := simulator.NewFork()
	f.SetBalance(addr, big.NewInt(500))
	assert.Equal(t, big.NewInt(500), f.Balance(addr))
}

func TestFork_Nonce_UnsetAddressReturnsZero(t *testing.T) {
	f := simulator.NewFork()
	assert.Equal(t, uint64(0), f.Nonce(addr))
}

func TestFork_SetNonce_ThenNonceReturnsIt(t *testing.T) {
	f := simulator.NewFork()
	f.SetNonce(addr, 42)
	assert.Equal(t, uint64(42), f.Nonce(addr))
}
