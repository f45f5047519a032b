// Package model holds the data types shared across the pricing/detection/
// execution pipeline: tokens, pools, snapshots, edges, opportunities, and
// execution records.
package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DexFamily identifies the pricing family a pool belongs to.
type DexFamily int

const (
	V2ConstantProduct DexFamily = iota
	V3Concentrated
	StableCurve
	RouteList
)

func (f DexFamily) String() string {
	switch f {
	case V2ConstantProduct:
		return "v2"
	case V3Concentrated:
		return "v3"
	case StableCurve:
		return "stable"
	case RouteList:
		return "route-list"
	default:
		return "unknown"
	}
}

// Sequence packs (blockNumber, logIndex) into a single monotone ordering
// key, so that "apply in strictly increasing sequence" is a plain integer
// comparison.
type Sequence uint64

// NewSequence packs a block number and log index into a Sequence.
func NewSequence(blockNumber uint64, logIndex uint32) Sequence {
	return Sequence(blockNumber<<32 | uint64(logIndex))
}

// BlockNumber extracts the block number component.
func (s Sequence) BlockNumber() uint64 { return uint64(s) >> 32 }

// LogIndex extracts the log index component.
func (s Sequence) LogIndex() uint32 { return uint32(s) }

// Token is identified by (chain-id, address); immutable post-discovery.
type Token struct {
	ChainID  uint64
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// PoolID identifies a pool within a single chain.
type PoolID struct {
	ChainID uint64
	Address common.Address
}

func (p PoolID) String() string {
	return p.Address.Hex()
}

// PoolSnapshot carries a pool's pricing inputs as of a given sequence.
type PoolSnapshot struct {
	Seq Sequence

	// v2-family.
	Reserve0 *big.Int
	Reserve1 *big.Int

	// v3-family.
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int

	// stable/route-list families — a spot rate read from the pool's own
	// view function, already fee-adjusted upstream of the graph.
	SpotRateToken1PerToken0 *big.Float
}

// Pool is identified by (chain-id, pool-address).
type Pool struct {
	ID     PoolID
	DEX    string
	Family DexFamily
	Router common.Address
	Token0 common.Address
	Token1 common.Address
	FeeBps uint32

	// StableCoinIndex0/1 and RouteIsStable carry the metadata a
	// StableCurve/RouteList swap step's encoded data needs (§6); zero-value
	// for v2/v3 pools, where the router and fee tier already say enough.
	StableCoinIndex0 int8
	StableCoinIndex1 int8
	RouteIsStable    bool

	Snapshot PoolSnapshot
}

// Edge is a derived, directed trading path between two tokens on one chain.
// It is recomputed from a pool snapshot and never stored canonically.
type Edge struct {
	PoolID      PoolID
	DEXFamily   DexFamily
	Router      common.Address
	From, To    common.Address
	FeeBps      uint32
	ReserveIn   *big.Int
	ReserveOut  *big.Int
	Weight      float64 // -ln(instantaneous marginal rate after fee)
	SpotRate    float64 // rate used to derive Weight, kept for ExactAmountOut's non-v2 approximation

	// StableCoinIndexIn/Out and RouteIsStable mirror the source pool's
	// metadata, oriented to this edge's direction, for EncodeSwapData.
	StableCoinIndexIn  int8
	StableCoinIndexOut int8
	RouteIsStable      bool
}

// Opportunity is a proposed arbitrage cycle.
type Opportunity struct {
	ID             string
	ChainID        uint64
	Edges          []*Edge
	InputToken     common.Address
	InputAmount    *big.Int
	StepOutputs    []*big.Int // per-edge output, same length as Edges
	ExpectedOutput *big.Int
	ExpectedProfit *big.Int
	GasEstimate    uint64
	Confidence     float64
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// PoolSequence returns the ordered pool-ID sequence of the opportunity's
// cycle, used by the pipeline for dedup.
func (o *Opportunity) PoolSequence() []PoolID {
	seq := make([]PoolID, len(o.Edges))
	for i, e := range o.Edges {
		seq[i] = e.PoolID
	}
	return seq
}

// ErrorKind classifies the outcome of a submitted transaction (§7).
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorGasTooHigh
	ErrorNonceConflict
	ErrorReverted
	ErrorNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorGasTooHigh:
		return "gas-too-high"
	case ErrorNonceConflict:
		return "nonce-conflict"
	case ErrorReverted:
		return "reverted"
	case ErrorNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// ExecutionRecord is the append-only outcome of one consumed opportunity.
type ExecutionRecord struct {
	OpportunityID string
	ChainID       uint64
	Success       bool
	TxHash        common.Hash
	ErrorKind     ErrorKind
	ActualProfit  *big.Int
	GasUsed       uint64
	BlockNumber   uint64
	SubmittedAt   time.Time
	ConfirmedAt   time.Time
}

// DailyLossAccumulator tracks realized losses on one chain over a rolling
// 24h window, per §3.
type DailyLossAccumulator struct {
	ChainID     uint64
	ResetAt     time.Time
	RunningLoss *big.Int
}

// Add records a loss and rolls the window over if 24h have elapsed since
// ResetAt. The rollover happens "from the first post-reset trade", i.e. the
// window resets lazily on the next Add rather than on a wall-clock timer.
func (d *DailyLossAccumulator) Add(loss *big.Int, now time.Time) {
	if d.RunningLoss == nil {
		d.RunningLoss = big.NewInt(0)
	}
	if now.Sub(d.ResetAt) >= 24*time.Hour {
		d.ResetAt = now
		d.RunningLoss = big.NewInt(0)
	}
	d.RunningLoss.Add(d.RunningLoss, loss)
}

// Breached reports whether the running loss has reached or exceeded limit.
func (d *DailyLossAccumulator) Breached(limit *big.Int) bool {
	if d.RunningLoss == nil {
		return false
	}
	return d.RunningLoss.Cmp(limit) >= 0
}

// SwapStep mirrors the contract's per-leg swap tuple (§6):
// (router, tokenIn, tokenOut, amountIn, data, dexType).
type SwapStep struct {
	Router   common.Address
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	Data     []byte
	DexType  uint8
}
