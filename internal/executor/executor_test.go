package executor

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/chain"
	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/errs"
	"github.com/evmarb/searcher/internal/model"
)

func TestSlippedMinProfit_AppliesBpsHaircut(t *testing.T) {
	got := slippedMinProfit(big.NewInt(10000), 50) // 0.5%
	assert.Equal(t, big.NewInt(9950), got)
}

func TestSlippedMinProfit_ZeroSlippageIsIdentity(t *testing.T) {
	got := slippedMinProfit(big.NewInt(12345), 0)
	assert.Equal(t, big.NewInt(12345), got)
}

func TestBuildSwapSteps_ChainsStepOutputsAsNextAmountIn(t *testing.T) {
	opp := &model.Opportunity{
		InputAmount: big.NewInt(1000),
		Edges: []*model.Edge{
			{Router: common.HexToAddress("0x01"), From: common.HexToAddress("0xA"), To: common.HexToAddress("0xB"), DEXFamily: model.V2ConstantProduct},
			{Router: common.HexToAddress("0x02"), From: common.HexToAddress("0xB"), To: common.HexToAddress("0xC"), DEXFamily: model.V3Concentrated, FeeBps: 30},
		},
		StepOutputs: []*big.Int{big.NewInt(990), big.NewInt(970)},
	}

	steps, err := buildSwapSteps(opp)
	require.NoError(t, err)

	require.Len(t, steps, 2)
	assert.Equal(t, big.NewInt(1000), steps[0].AmountIn)
	assert.Equal(t, big.NewInt(990), steps[1].AmountIn, "second leg's amountIn must be the first leg's output")
	assert.Equal(t, uint8(model.V3Concentrated), steps[1].DexType)
}

func TestBuildSwapSteps_CarriesRouterAndEncodesPerFamilyData(t *testing.T) {
	opp := &model.Opportunity{
		InputAmount: big.NewInt(1000),
		Edges: []*model.Edge{
			{Router: common.HexToAddress("0x01"), From: common.HexToAddress("0xA"), To: common.HexToAddress("0xB"), DEXFamily: model.V2ConstantProduct},
			{Router: common.HexToAddress("0x02"), From: common.HexToAddress("0xB"), To: common.HexToAddress("0xC"), DEXFamily: model.V3Concentrated, FeeBps: 30},
			{Router: common.HexToAddress("0x03"), From: common.HexToAddress("0xC"), To: common.HexToAddress("0xD"), DEXFamily: model.StableCurve, StableCoinIndexIn: 1, StableCoinIndexOut: 2},
			{Router: common.HexToAddress("0x04"), From: common.HexToAddress("0xD"), To: common.HexToAddress("0xA"), DEXFamily: model.RouteList, RouteIsStable: true},
		},
		StepOutputs: []*big.Int{big.NewInt(990), big.NewInt(970), big.NewInt(960), big.NewInt(950)},
	}

	steps, err := buildSwapSteps(opp)
	require.NoError(t, err)
	require.Len(t, steps, 4)

	assert.Equal(t, common.HexToAddress("0x01"), steps[0].Router)
	assert.Nil(t, steps[0].Data, "v2 legs carry no extra data")

	assert.Equal(t, common.HexToAddress("0x02"), steps[1].Router)
	feeTier, err := contractabi.DecodeV3FeeTier(steps[1].Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), feeTier)

	assert.Equal(t, common.HexToAddress("0x03"), steps[2].Router)
	coinIn, coinOut, err := contractabi.DecodeStableCoinIndices(steps[2].Data)
	require.NoError(t, err)
	assert.Equal(t, int8(1), coinIn)
	assert.Equal(t, int8(2), coinOut)

	assert.Equal(t, common.HexToAddress("0x04"), steps[3].Router)
	routeIsStable, err := contractabi.DecodeRouteStableFlag(steps[3].Data)
	require.NoError(t, err)
	assert.True(t, routeIsStable)
}

func TestGasCostOf_MultipliesGasUsedByGasPrice(t *testing.T) {
	receipt := &types.Receipt{GasUsed: 200_000}
	got := gasCostOf(receipt, big.NewInt(30_000_000_000)) // 30 gwei
	assert.Equal(t, new(big.Int).Mul(big.NewInt(200_000), big.NewInt(30_000_000_000)), got)
}

func TestDryRunSentinelHash_IsDeterministicPerOpportunity(t *testing.T) {
	h1 := dryRunSentinelHash("opp-1")
	h2 := dryRunSentinelHash("opp-1")
	h3 := dryRunSentinelHash("opp-2")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestSubmitWithNonceRetry_SucceedsOnRetryAfterNonceConflict(t *testing.T) {
	calls := 0
	resynced := false
	send := func() (common.Hash, error) {
		calls++
		if calls == 1 {
			return common.Hash{}, errs.ErrNonceConflict
		}
		return common.HexToHash("0xabc"), nil
	}
	resync := func() error { resynced = true; return nil }

	hash, err := submitWithNonceRetry(send, resync)

	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc"), hash)
	assert.Equal(t, 2, calls, "must retry exactly once after a nonce conflict")
	assert.True(t, resynced)
}

func TestSubmitWithNonceRetry_FailsAgainAfterRetrySurfacesError(t *testing.T) {
	calls := 0
	send := func() (common.Hash, error) {
		calls++
		return common.Hash{}, errs.ErrNonceConflict
	}
	resync := func() error { return nil }

	_, err := submitWithNonceRetry(send, resync)

	assert.ErrorIs(t, err, errs.ErrNonceConflict)
	assert.Equal(t, 2, calls, "must not retry more than once")
}

func TestSubmitWithNonceRetry_ResyncFailureSkipsRetry(t *testing.T) {
	calls := 0
	send := func() (common.Hash, error) {
		calls++
		return common.Hash{}, errs.ErrNonceConflict
	}
	resync := func() error { return errors.New("resync boom") }

	_, err := submitWithNonceRetry(send, resync)

	require.Error(t, err)
	assert.Equal(t, 1, calls, "a failed resync must not attempt a second send")
}

func TestSubmitWithNonceRetry_NonNonceErrorIsNotRetried(t *testing.T) {
	calls := 0
	send := func() (common.Hash, error) {
		calls++
		return common.Hash{}, errs.ErrGasCeilingExceeded
	}
	resync := func() error { t.Fatal("resync must not be called for a non-nonce error"); return nil }

	_, err := submitWithNonceRetry(send, resync)

	assert.ErrorIs(t, err, errs.ErrGasCeilingExceeded)
	assert.Equal(t, 1, calls)
}

func TestClassifySubmitError_MapsEverySubmitKind(t *testing.T) {
	base := errors.New("boom")

	assert.ErrorIs(t, classifySubmitError(chain.SubmitGasTooHigh, base), errs.ErrGasCeilingExceeded)
	assert.ErrorIs(t, classifySubmitError(chain.SubmitNonceConflict, base), errs.ErrNonceConflict)
	assert.ErrorIs(t, classifySubmitError(chain.SubmitReverted, base), errs.ErrPostSubmitRevert)
	assert.ErrorIs(t, classifySubmitError(chain.SubmitNetwork, base), errs.ErrNetwork)
}

func newTestExecutor(t *testing.T, perTxLimit, dailyLimit *big.Int) *Executor {
	t.Helper()
	history, err := lru.New[string, *model.ExecutionRecord](16)
	require.NoError(t, err)
	return &Executor{
		chainID:        1,
		log:            zap.NewNop(),
		history:        history,
		perTxLossLimit: perTxLimit,
		dailyLossLimit: dailyLimit,
		dailyLoss:      model.DailyLossAccumulator{ChainID: 1},
	}
}

func TestAccountLoss_PositiveProfitIsNoOp(t *testing.T) {
	e := newTestExecutor(t, nil, nil)
	err := e.accountLoss(big.NewInt(500))
	assert.NoError(t, err)
	assert.Nil(t, e.dailyLoss.RunningLoss)
}

func TestAccountLoss_BreachesPerTxLimit(t *testing.T) {
	e := newTestExecutor(t, big.NewInt(100), nil)
	err := e.accountLoss(big.NewInt(-200))
	assert.ErrorIs(t, err, errs.ErrLimitBreach)
}

func TestAccountLoss_BreachesDailyLimitAndPauses(t *testing.T) {
	e := newTestExecutor(t, nil, big.NewInt(300))
	require.NoError(t, e.accountLoss(big.NewInt(-100)))
	assert.False(t, e.Paused())

	err := e.accountLoss(big.NewInt(-250))
	assert.ErrorIs(t, err, errs.ErrLimitBreach)
	assert.True(t, e.Paused(), "breaching the daily ceiling must auto-pause the chain")
}

func TestAccountLoss_WithinLimitsDoesNotPause(t *testing.T) {
	e := newTestExecutor(t, big.NewInt(1000), big.NewInt(1000))
	require.NoError(t, e.accountLoss(big.NewInt(-50)))
	assert.False(t, e.Paused())
}

func TestPauseResume(t *testing.T) {
	e := newTestExecutor(t, nil, nil)
	assert.False(t, e.Paused())
	e.Pause()
	assert.True(t, e.Paused())
	e.Resume()
	assert.False(t, e.Paused())
}

func TestFinishAndHistory_RecordsWithoutArchive(t *testing.T) {
	e := newTestExecutor(t, nil, nil)
	rec := &model.ExecutionRecord{OpportunityID: "opp-1", ChainID: 1, Success: true, SubmittedAt: time.Now(), ConfirmedAt: time.Now()}

	e.finish(rec)

	hist := e.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "opp-1", hist[0].OpportunityID)
}

func TestRecordDryRun_UsesSentinelHashAndExpectedProfit(t *testing.T) {
	e := newTestExecutor(t, nil, nil)
	opp := &model.Opportunity{ID: "dry-1", ExpectedProfit: big.NewInt(777)}

	rec := e.recordDryRun(opp)

	assert.True(t, rec.Success)
	assert.Equal(t, big.NewInt(777), rec.ActualProfit)
	assert.Equal(t, dryRunSentinelHash("dry-1"), [32]byte(rec.TxHash))
}
