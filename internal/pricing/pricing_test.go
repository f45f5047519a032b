package pricing_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/pricing"
)

var (
	tokenA = common.HexToAddress("0x0000000000000000000000000000000000000A")
	tokenB = common.HexToAddress("0x0000000000000000000000000000000000000B")
)

func v2Pool(reserve0, reserve1 int64, feeBps uint32) *model.Pool {
	return &model.Pool{
		ID:     model.PoolID{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000001")},
		Family: model.V2ConstantProduct,
		Token0: tokenA,
		Token1: tokenB,
		FeeBps: feeBps,
		Snapshot: model.PoolSnapshot{
			Reserve0: big.NewInt(reserve0),
			Reserve1: big.NewInt(reserve1),
		},
	}
}

func TestGraph_OnPoolUpdate_AddsBothDirections(t *testing.T) {
	g := pricing.New(1)
	g.OnPoolUpdate(v2Pool(1000, 2000, 30))

	require.Equal(t, 2, g.TokenCount())
	idxA := g.TokenIndex(tokenA)
	idxB := g.TokenIndex(tokenB)
	require.NotEqual(t, -1, idxA)
	require.NotEqual(t, -1, idxB)

	fromA := g.EdgesFrom(idxA)
	fromB := g.EdgesFrom(idxB)
	require.Len(t, fromA, 1)
	require.Len(t, fromB, 1)
	assert.Equal(t, tokenB, fromA[0].To)
	assert.Equal(t, tokenA, fromB[0].To)
}

func TestGraph_OnPoolUpdate_ReplacesBothEdgesAtomically(t *testing.T) {
	g := pricing.New(1)
	pool := v2Pool(1000, 2000, 30)
	g.OnPoolUpdate(pool)

	before := g.AllEdges()
	require.Len(t, before, 2)
	beforeWeight := before[0].Weight

	pool.Snapshot.Reserve0 = big.NewInt(500)
	pool.Snapshot.Reserve1 = big.NewInt(4000)
	g.OnPoolUpdate(pool)

	after := g.AllEdges()
	require.Len(t, after, 2, "updating an existing pool must not grow the edge count")
	assert.NotEqual(t, beforeWeight, after[0].Weight)
}

func TestDeriveEdges_V2_WeightIsNegLogOfFeeAdjustedRate(t *testing.T) {
	g := pricing.New(1)
	g.OnPoolUpdate(v2Pool(1000, 2000, 30))

	edges := g.AllEdges()
	var fwd *model.Edge
	for _, e := range edges {
		if e.From == tokenA {
			fwd = e
		}
	}
	require.NotNil(t, fwd)

	wantRate := (2000.0 / 1000.0) * (9970.0 / 10000.0)
	assert.InDelta(t, -math.Log(wantRate), fwd.Weight, 1e-9)
	assert.InDelta(t, wantRate, fwd.SpotRate, 1e-9)
}

func TestDeriveEdges_V2_CarriesPoolRouterOntoBothEdges(t *testing.T) {
	router := common.HexToAddress("0x00000000000000000000000000000000000099")
	pool := v2Pool(1000, 2000, 30)
	pool.Router = router

	g := pricing.New(1)
	g.OnPoolUpdate(pool)

	edges := g.AllEdges()
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, router, e.Router, "every derived edge must carry the pool's router address")
	}
}

func TestDeriveEdges_StableCurve_CarriesCoinIndicesOrientedPerDirection(t *testing.T) {
	pool := &model.Pool{
		ID:               model.PoolID{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000005")},
		Family:           model.StableCurve,
		Router:           common.HexToAddress("0x00000000000000000000000000000000000077"),
		Token0:           tokenA,
		Token1:           tokenB,
		StableCoinIndex0: 1,
		StableCoinIndex1: 2,
		Snapshot: model.PoolSnapshot{
			SpotRateToken1PerToken0: big.NewFloat(1.0),
		},
	}

	g := pricing.New(1)
	g.OnPoolUpdate(pool)

	edges := g.AllEdges()
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, pool.Router, e.Router)
		if e.From == tokenA {
			assert.Equal(t, int8(1), e.StableCoinIndexIn)
			assert.Equal(t, int8(2), e.StableCoinIndexOut)
		} else {
			assert.Equal(t, int8(2), e.StableCoinIndexIn)
			assert.Equal(t, int8(1), e.StableCoinIndexOut)
		}
	}
}

func TestDeriveEdges_ZeroReserves_YieldsInfiniteWeight(t *testing.T) {
	g := pricing.New(1)
	g.OnPoolUpdate(v2Pool(0, 0, 30))

	for _, e := range g.AllEdges() {
		assert.True(t, math.IsInf(e.Weight, 1))
	}
}

func TestExactAmountOut_MatchesConstantProductFormula(t *testing.T) {
	edge := &model.Edge{
		DEXFamily:  model.V2ConstantProduct,
		ReserveIn:  big.NewInt(1_000_000),
		ReserveOut: big.NewInt(2_000_000),
		FeeBps:     30,
	}

	out := pricing.ExactAmountOut(edge, big.NewInt(1000))

	amountInWithFee := big.NewInt(1000 * 9970)
	numerator := new(big.Int).Mul(amountInWithFee, edge.ReserveOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(edge.ReserveIn, big.NewInt(10000)), amountInWithFee)
	want := new(big.Int).Div(numerator, denominator)

	assert.Equal(t, want, out)
}

func TestExactAmountOut_NonPositiveInput_ReturnsZero(t *testing.T) {
	edge := &model.Edge{
		DEXFamily:  model.V2ConstantProduct,
		ReserveIn:  big.NewInt(1000),
		ReserveOut: big.NewInt(1000),
		FeeBps:     30,
	}
	assert.Equal(t, big.NewInt(0), pricing.ExactAmountOut(edge, big.NewInt(0)))
	assert.Equal(t, big.NewInt(0), pricing.ExactAmountOut(edge, big.NewInt(-5)))
}
