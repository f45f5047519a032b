package pricing

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/evmarb/searcher/internal/model"
)

const bpsDenominator = 10000

// deriveEdges builds the forward (token0->token1) and reverse
// (token1->token0) edges for a pool's current snapshot, dispatching on
// DexFamily: v2's fee-adjusted reserve ratio, v3's sqrtPriceX96 spot
// rate, and stable/route-list pools whose spot rate is read directly
// off-chain rather than derived from reserves.
func deriveEdges(pool *model.Pool) (fwd, rev *model.Edge) {
	switch pool.Family {
	case model.V2ConstantProduct:
		return deriveV2Edges(pool)
	case model.V3Concentrated:
		return deriveV3Edges(pool)
	case model.StableCurve, model.RouteList:
		return deriveSpotRateEdges(pool)
	default:
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}
}

func blankEdge(pool *model.Pool, from, to common.Address) *model.Edge {
	return &model.Edge{
		PoolID:    pool.ID,
		DEXFamily: pool.Family,
		Router:    pool.Router,
		From:      from,
		To:        to,
		FeeBps:    pool.FeeBps,
		Weight:    math.Inf(1),
	}
}

func deriveV2Edges(pool *model.Pool) (fwd, rev *model.Edge) {
	r0, r1 := pool.Snapshot.Reserve0, pool.Snapshot.Reserve1
	if r0 == nil || r1 == nil || r0.Sign() <= 0 || r1.Sign() <= 0 {
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}

	fwdRate := spotRateV2(r0, r1, pool.FeeBps)
	revRate := spotRateV2(r1, r0, pool.FeeBps)

	fwd = &model.Edge{
		PoolID: pool.ID, DEXFamily: pool.Family, Router: pool.Router, From: pool.Token0, To: pool.Token1,
		FeeBps: pool.FeeBps, ReserveIn: r0, ReserveOut: r1,
		SpotRate: fwdRate, Weight: weightFromRate(fwdRate),
	}
	rev = &model.Edge{
		PoolID: pool.ID, DEXFamily: pool.Family, Router: pool.Router, From: pool.Token1, To: pool.Token0,
		FeeBps: pool.FeeBps, ReserveIn: r1, ReserveOut: r0,
		SpotRate: revRate, Weight: weightFromRate(revRate),
	}
	return fwd, rev
}

// spotRateV2 is the fee-adjusted marginal rate of a constant-product pool:
// d(out)/d(in) at the current reserves, i.e. reserveOut/reserveIn scaled by
// (1 - fee). This differs from GetAmountOut's discrete-trade-size output
// (used later for exact quoting) — the graph only needs the marginal rate
// to rank cycles.
func spotRateV2(reserveIn, reserveOut *big.Int, feeBps uint32) float64 {
	in := new(big.Float).SetInt(reserveIn)
	out := new(big.Float).SetInt(reserveOut)
	rate := new(big.Float).Quo(out, in)
	r, _ := rate.Float64()
	feeMultiplier := float64(bpsDenominator-feeBps) / float64(bpsDenominator)
	return r * feeMultiplier
}

// deriveV3Edges approximates a concentrated-liquidity pool's instantaneous
// rate from slot0.sqrtPriceX96, per SPEC_FULL §4.4: price = (sqrtPriceX96 /
// 2^96)^2, computed with holiman/uint256 to avoid float overflow on the
// intermediate square.
func deriveV3Edges(pool *model.Pool) (fwd, rev *model.Edge) {
	sp := pool.Snapshot.SqrtPriceX96
	if sp == nil || sp.Sign() <= 0 {
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}

	sqrtPrice, overflow := uint256.FromBig(sp)
	if overflow {
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}

	// price1Per0 = (sqrtPriceX96 / 2^96)^2 = sqrtPriceX96^2 / 2^192. The
	// square is done in 256-bit fixed width since sqrtPriceX96 is a
	// uint160 and its square can reach 320 bits; MulOverflow reports when
	// it doesn't fit, in which case the pool is skipped rather than
	// silently truncated.
	squared, overflowed := new(uint256.Int).MulOverflow(sqrtPrice, sqrtPrice)
	if overflowed {
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}
	q192 := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 192))
	price1Per0F := new(big.Float).Quo(new(big.Float).SetInt(squared.ToBig()), q192)
	price1Per0, _ := price1Per0F.Float64()
	if price1Per0 <= 0 {
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}

	feeMultiplier := float64(bpsDenominator-pool.FeeBps) / float64(bpsDenominator)
	fwdRate := price1Per0 * feeMultiplier
	revRate := (1.0 / price1Per0) * feeMultiplier

	fwd = &model.Edge{
		PoolID: pool.ID, DEXFamily: pool.Family, Router: pool.Router, From: pool.Token0, To: pool.Token1,
		FeeBps: pool.FeeBps, SpotRate: fwdRate, Weight: weightFromRate(fwdRate),
	}
	rev = &model.Edge{
		PoolID: pool.ID, DEXFamily: pool.Family, Router: pool.Router, From: pool.Token1, To: pool.Token0,
		FeeBps: pool.FeeBps, SpotRate: revRate, Weight: weightFromRate(revRate),
	}
	return fwd, rev
}

// deriveSpotRateEdges handles stable-curve and route-list pools, whose rate
// is read directly from the pool's own getRate/getAmountOut view function
// upstream (already fee-adjusted) rather than derived from reserves.
func deriveSpotRateEdges(pool *model.Pool) (fwd, rev *model.Edge) {
	rate := pool.Snapshot.SpotRateToken1PerToken0
	if rate == nil || rate.Sign() <= 0 {
		return blankEdge(pool, pool.Token0, pool.Token1), blankEdge(pool, pool.Token1, pool.Token0)
	}
	fwdRate, _ := rate.Float64()
	revRate := 1.0 / fwdRate

	fwd = &model.Edge{
		PoolID: pool.ID, DEXFamily: pool.Family, Router: pool.Router, From: pool.Token0, To: pool.Token1,
		FeeBps: pool.FeeBps, SpotRate: fwdRate, Weight: weightFromRate(fwdRate),
		StableCoinIndexIn: pool.StableCoinIndex0, StableCoinIndexOut: pool.StableCoinIndex1,
		RouteIsStable: pool.RouteIsStable,
	}
	rev = &model.Edge{
		PoolID: pool.ID, DEXFamily: pool.Family, Router: pool.Router, From: pool.Token1, To: pool.Token0,
		FeeBps: pool.FeeBps, SpotRate: revRate, Weight: weightFromRate(revRate),
		StableCoinIndexIn: pool.StableCoinIndex1, StableCoinIndexOut: pool.StableCoinIndex0,
		RouteIsStable: pool.RouteIsStable,
	}
	return fwd, rev
}

// weightFromRate turns a rate into the Bellman-Ford edge weight -ln(rate),
// per §4.5: a profitable cycle is a negative-weight cycle. A non-positive
// rate (dead pool) is given +Inf so it is never selected by a shortest-path
// search.
func weightFromRate(rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return -math.Log(rate)
}

// ExactAmountOut computes the precise output of routing amountIn through
// edge, for the final quoting pass over a candidate cycle (§4.5) — unlike
// the marginal SpotRate used to rank cycles, this accounts for the
// reserve-depleting effect of the trade itself on v2 pools.
func ExactAmountOut(edge *model.Edge, amountIn *big.Int) *big.Int {
	switch edge.DEXFamily {
	case model.V2ConstantProduct:
		return v2AmountOut(amountIn, edge.ReserveIn, edge.ReserveOut, edge.FeeBps)
	default:
		// v3/stable/route-list: approximate with the marginal rate: exact
		// depth-aware quoting for these families requires on-chain tick
		// traversal or the pool's own getAmountOut view, done by the
		// simulator's eth_call pass, not here.
		rateBig := new(big.Float).Mul(new(big.Float).SetInt(amountIn), big.NewFloat(edge.SpotRate))
		out, _ := rateBig.Int(nil)
		return out
	}
}

func v2AmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || reserveIn == nil || reserveOut == nil ||
		reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	feeMultiplier := big.NewInt(int64(bpsDenominator - feeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	denominator.Add(denominator, amountInWithFee)

	return new(big.Int).Div(numerator, denominator)
}
