package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainEndpoints groups the RPC endpoints and deployed-contract address
// for one chain (§6).
type ChainEndpoints struct {
	RPC               string
	WS                string
	PrivateSubmit     string // optional private mempool / priority endpoint
	ArbitrageContract common.Address
}

// Config is the enumerated, in-process configuration surface of §6. No
// file/env loader is implemented here — that is an explicit Non-goal;
// callers (tests, cmd/searcher's flags) build this value directly.
type Config struct {
	EnabledChains          []uint64
	MinProfitUSD           float64
	MaxGasPriceGwei        float64
	MaxSlippageBps         int
	SimulateBeforeExecute  bool
	DryRun                 bool
	CooldownMs             int
	PrivateMempoolEnabled  map[uint64]bool
	PerChainEndpoints      map[uint64]ChainEndpoints
	WalletKey              string

	// PerTxLossLimit and DailyLossLimit implement §3/§4.7's loss ceilings:
	// breach of the former fails that submission hard, breach of the
	// latter auto-pauses the chain. Keyed by chain ID; a chain with no
	// entry has no ceiling.
	PerTxLossLimit map[uint64]*big.Int
	DailyLossLimit map[uint64]*big.Int

	// Pause is the one runtime-mutable field; everything else is load-time
	// per §6. The control surface's pause/resume routes act on each
	// chain's Executor directly and do not read or write this map.
	Pause map[uint64]bool
}

// DefaultConfig returns a Config with the conservative defaults
// (simulateBeforeExecute=true, dryRun=false) and empty maps ready to use.
func DefaultConfig() *Config {
	return &Config{
		SimulateBeforeExecute: true,
		MaxSlippageBps:        50,
		PrivateMempoolEnabled: make(map[uint64]bool),
		PerChainEndpoints:     make(map[uint64]ChainEndpoints),
		PerTxLossLimit:        make(map[uint64]*big.Int),
		DailyLossLimit:        make(map[uint64]*big.Int),
		Pause:                 make(map[uint64]bool),
	}
}
