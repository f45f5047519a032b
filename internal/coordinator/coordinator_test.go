package coordinator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/executor"
	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/oracle"
	"github.com/evmarb/searcher/internal/pipeline"
)

func TestDrainAndExecute_PausedChainDoesNotDequeue(t *testing.T) {
	p := pipeline.New(1, 16, nil, oracle.NoOp{}, zap.NewNop())
	opp := &model.Opportunity{
		ID:      "opp-1",
		ChainID: 1,
		Edges: []*model.Edge{
			{PoolID: model.PoolID{ChainID: 1, Address: common.HexToAddress("0x01")}},
		},
		ExpectedProfit: big.NewInt(1),
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	p.Offer(opp)
	require.Equal(t, 1, p.Len())

	e, err := executor.New(executor.Config{ChainID: 1}, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	e.Pause()

	c := &Chain{ID: 1, Pipeline: p, Executor: e, log: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err = c.drainAndExecute(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Len(), "a paused chain must not dequeue pending opportunities")
}

