package pipeline_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/oracle"
	"github.com/evmarb/searcher/internal/pipeline"
)

type stubOracle struct {
	usdPerToken *big.Float
	err         error
}

func (s stubOracle) Quote(ctx context.Context, token common.Address) (*big.Float, error) {
	return s.usdPerToken, s.err
}

func newOpp(id string, profit int64, ttl time.Duration) *model.Opportunity {
	return &model.Opportunity{
		ID:             id,
		ChainID:        1,
		InputToken:     common.HexToAddress("0x00000000000000000000000000000000000001"),
		InputAmount:    big.NewInt(1000),
		ExpectedProfit: big.NewInt(profit),
		Edges: []*model.Edge{
			{PoolID: model.PoolID{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000011")}},
		},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestPipeline_OfferThenDequeue_FIFO(t *testing.T) {
	p := pipeline.New(1, 16, nil, nil, zap.NewNop())
	first := newOpp("first", 10, time.Minute)
	second := newOpp("second", 10, time.Minute)
	second.Edges = []*model.Edge{{PoolID: model.PoolID{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000022")}}}

	p.Offer(first)
	p.Offer(second)

	got := p.Dequeue(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ID)
}

func TestPipeline_Offer_DedupsSamePoolSequenceWithinWindow(t *testing.T) {
	p := pipeline.New(1, 16, nil, nil, zap.NewNop())
	opp1 := newOpp("a", 10, time.Minute)
	opp2 := newOpp("b", 10, time.Minute) // same pool sequence as opp1

	p.Offer(opp1)
	p.Offer(opp2)

	assert.Equal(t, 1, p.Len(), "second offer with the same pool sequence must be deduped")
}

func TestPipeline_Dequeue_DropsExpiredOpportunities(t *testing.T) {
	p := pipeline.New(1, 16, nil, nil, zap.NewNop())
	expired := newOpp("expired", 10, -time.Second)
	p.Offer(expired)

	got := p.Dequeue(context.Background())
	assert.Nil(t, got)
}

func TestPipeline_Dequeue_EmptyQueueReturnsNilImmediately(t *testing.T) {
	p := pipeline.New(1, 16, nil, nil, zap.NewNop())
	assert.Nil(t, p.Dequeue(context.Background()))
}

func TestPipeline_Dequeue_UsdThresholdFiltersBelowMinimum(t *testing.T) {
	minProfitUSD := big.NewFloat(100)
	o := stubOracle{usdPerToken: big.NewFloat(1)} // 1 USD per input-token unit
	p := pipeline.New(1, 16, minProfitUSD, o, zap.NewNop())

	cheap := newOpp("cheap", 10, time.Minute) // 10 USD profit, below threshold
	p.Offer(cheap)

	assert.Nil(t, p.Dequeue(context.Background()))
}

func TestPipeline_Dequeue_OracleFailureFallsBackToNativeUnitProfit(t *testing.T) {
	minProfitUSD := big.NewFloat(1_000_000) // unreachable in USD terms
	p := pipeline.New(1, 16, minProfitUSD, oracle.NoOp{}, zap.NewNop())

	profitable := newOpp("native-profit", 10, time.Minute)
	p.Offer(profitable)

	got := p.Dequeue(context.Background())
	require.NotNil(t, got, "a positive native-unit profit must clear the bar when the oracle fails")
	assert.Equal(t, "native-profit", got.ID)
}

func TestPipeline_Offer_AtCapacityDropsOldest(t *testing.T) {
	p := pipeline.New(1, 2, nil, nil, zap.NewNop())
	for i, id := range []string{"one", "two", "three"} {
		opp := newOpp(id, 10, time.Minute)
		opp.Edges = []*model.Edge{{PoolID: model.PoolID{ChainID: 1, Address: common.BigToAddress(big.NewInt(int64(i) + 100))}}}
		p.Offer(opp)
	}

	assert.Equal(t, 2, p.Len())
	got := p.Dequeue(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, "two", got.ID, "capacity eviction must drop the oldest entry, not the newest")
}

func TestPipeline_Snapshot_ReturnsCopyNotLiveSlice(t *testing.T) {
	p := pipeline.New(1, 16, nil, nil, zap.NewNop())
	p.Offer(newOpp("one", 10, time.Minute))

	snap := p.Snapshot()
	require.Len(t, snap, 1)
	snap[0] = nil

	assert.Equal(t, 1, p.Len())
}
