package detector_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/detector"
	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/pricing"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000002")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000003")
)

func pool(addr common.Address, t0, t1 common.Address, r0, r1 int64) *model.Pool {
	return &model.Pool{
		ID:     model.PoolID{ChainID: 1, Address: addr},
		Family: model.V2ConstantProduct,
		Token0: t0,
		Token1: t1,
		FeeBps: 0,
		Snapshot: model.PoolSnapshot{
			Reserve0: big.NewInt(r0),
			Reserve1: big.NewInt(r1),
		},
	}
}

// buildTriangle seeds A-B, B-C, C-A pools with a deliberate price
// imbalance, so routing A->B->C->A nets a profit.
func buildTriangle(t *testing.T) *pricing.Graph {
	t.Helper()
	g := pricing.New(1)
	g.OnPoolUpdate(pool(common.HexToAddress("0x00000000000000000000000000000000000011"), tokenA, tokenB, 1_000_000, 1_000_000))
	g.OnPoolUpdate(pool(common.HexToAddress("0x00000000000000000000000000000000000012"), tokenB, tokenC, 1_000_000, 1_000_000))
	g.OnPoolUpdate(pool(common.HexToAddress("0x00000000000000000000000000000000000013"), tokenC, tokenA, 1_000_000, 1_500_000))
	return g
}

func TestDetector_Run_FindsSyntheticTriangleProfit(t *testing.T) {
	g := buildTriangle(t)
	d := detector.New(1, g, tokenA, big.NewInt(1000), big.NewInt(1), zap.NewNop())

	opps := d.Run()

	require.NotEmpty(t, opps, "expected at least one profitable cycle")
	best := opps[0]
	assert.True(t, best.ExpectedProfit.Sign() > 0)
	assert.Equal(t, tokenA, best.InputToken)
	assert.LessOrEqual(t, len(best.Edges), detector.MaxCycleLength)
}

func TestDetector_Run_BalancedGraphFindsNothing(t *testing.T) {
	g := pricing.New(1)
	g.OnPoolUpdate(pool(common.HexToAddress("0x00000000000000000000000000000000000021"), tokenA, tokenB, 1_000_000, 1_000_000))
	g.OnPoolUpdate(pool(common.HexToAddress("0x00000000000000000000000000000000000022"), tokenB, tokenC, 1_000_000, 1_000_000))
	g.OnPoolUpdate(pool(common.HexToAddress("0x00000000000000000000000000000000000023"), tokenC, tokenA, 1_000_000, 1_000_000))

	d := detector.New(1, g, tokenA, big.NewInt(1000), big.NewInt(1), zap.NewNop())

	opps := d.Run()
	assert.Empty(t, opps, "a fee-free, perfectly balanced triangle has no profitable cycle")
}

func TestDetector_Run_UnknownSourceTokenReturnsNil(t *testing.T) {
	g := buildTriangle(t)
	unknown := common.HexToAddress("0x00000000000000000000000000000000000099")
	d := detector.New(1, g, unknown, big.NewInt(1000), big.NewInt(1), zap.NewNop())

	assert.Nil(t, d.Run())
}

func TestDetector_Run_OrdersByProfitThenConfidence(t *testing.T) {
	g := buildTriangle(t)
	d := detector.New(1, g, tokenA, big.NewInt(1000), big.NewInt(1), zap.NewNop())

	opps := d.Run()
	require.NotEmpty(t, opps)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].ExpectedProfit.Cmp(opps[i].ExpectedProfit), 0)
		if opps[i-1].ExpectedProfit.Cmp(opps[i].ExpectedProfit) == 0 {
			assert.GreaterOrEqual(t, opps[i-1].Confidence, opps[i].Confidence)
		}
	}
}
