// Package coordinator wires one chain's Chain Client, State Mirror,
// Pricing Graph, Detector, Pipeline, and Executor into the goroutine tree
// of §5: subscription loop -> mirror -> graph -> detector -> pipeline ->
// executor, with the single-writer-per-chain discipline enforced by
// construction (one subscription goroutine feeds one Mirror, one
// executor goroutine drains one Pipeline).
package coordinator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evmarb/searcher/internal/chain"
	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/detector"
	"github.com/evmarb/searcher/internal/executor"
	"github.com/evmarb/searcher/internal/mirror"
	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/oracle"
	"github.com/evmarb/searcher/internal/pipeline"
	"github.com/evmarb/searcher/internal/pricing"
	"github.com/evmarb/searcher/internal/storage"
)

// Chain owns the full per-chain pipeline and is the unit the control
// surface and coordinator set operate on.
type Chain struct {
	ID       uint64
	Client   *chain.Client
	Mirror   *mirror.Mirror
	Graph    *pricing.Graph
	Detector *detector.Detector
	Pipeline *pipeline.Pipeline
	Executor *executor.Executor
	log      *zap.Logger

	pools   []*model.Pool
	refreshFn func(context.Context) error
}

// New builds one chain's full pipeline. It dials the chain client and
// seeds the nonce counter but does not start the subscription loop —
// call Run for that.
func New(ctx context.Context, chainID uint64, cfg *model.Config, endpoints model.ChainEndpoints, sourceToken common.Address, inputAmount *big.Int, signer executor.Signer, archive *storage.Archive, log *zap.Logger) (*Chain, error) {
	client, err := chain.Dial(ctx, chainID, endpoints, log)
	if err != nil {
		return nil, err
	}

	if signer != nil {
		if err := client.SeedNonce(ctx, signer.Address()); err != nil {
			return nil, err
		}
	}

	g := pricing.New(chainID)
	m := mirror.New(chainID, log)
	m.Subscribe(func(id model.PoolID, pool *model.Pool) {
		g.OnPoolUpdate(pool)
	})

	minProfit := big.NewInt(0)
	d := detector.New(chainID, g, sourceToken, inputAmount, minProfit, log)

	minProfitUSD := big.NewFloat(cfg.MinProfitUSD)
	p := pipeline.New(chainID, 1024, minProfitUSD, oracle.NoOp{}, log)

	execCfg := executor.Config{
		ChainID:        chainID,
		Contract:       endpoints.ArbitrageContract,
		MaxGasPrice:    gweiToWei(cfg.MaxGasPriceGwei),
		MaxSlippageBps: uint32(cfg.MaxSlippageBps),
		DryRun:         cfg.DryRun,
		SimulateFirst:  cfg.SimulateBeforeExecute,
		PerTxLossLimit: cfg.PerTxLossLimit[chainID],
		DailyLossLimit: cfg.DailyLossLimit[chainID],
	}
	e, err := executor.New(execCfg, client, signer, archive, log)
	if err != nil {
		return nil, err
	}

	return &Chain{
		ID: chainID, Client: client, Mirror: m, Graph: g,
		Detector: d, Pipeline: p, Executor: e,
		log: log.With(zap.Uint64("chain_id", chainID)),
	}, nil
}

func gweiToWei(gwei float64) *big.Int {
	wei := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9))
	out, _ := wei.Int(nil)
	return out
}

// SetRefresher installs the callback used to re-read every watched pool's
// live state after a subscription reconnect (§4.1). Callers wire this to
// the registry's discovery/reserve-fetch path; without one, a reconnect
// only reapplies whatever snapshot was already cached.
func (c *Chain) SetRefresher(fn func(context.Context) error) {
	c.refreshFn = fn
}

// Run registers the chain's discovered pool set, then drives the
// subscription, detection, and execution loops until ctx is cancelled or
// one of them returns a fatal error. The caller (cmd/searcher) runs one
// Run per chain in its own goroutine, so one chain's failure never brings
// down another's.
func (c *Chain) Run(ctx context.Context, pools []*model.Pool) error {
	c.pools = pools
	for _, pool := range pools {
		c.Mirror.Register(pool)
		c.Graph.OnPoolUpdate(pool)
	}
	filter := BuildFilterQuery(pools)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Client.Subscribe(ctx, filter, func(lg types.Log) {
			family := c.familyOf(lg.Address)
			c.Mirror.HandleLog(family, lg)
			c.Detector.OnGraphUpdate(ctx, c.Pipeline.Offer)
		}, c.refresh)
	})

	g.Go(func() error {
		c.Pipeline.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return c.drainAndExecute(ctx)
	})

	return g.Wait()
}

// drainAndExecute is the executor half of the goroutine tree: it owns the
// sole Dequeue/Execute loop for this chain, satisfying §5's "at most one
// in-flight transaction per chain". Dequeue is non-blocking, so an empty
// pipeline is polled on a short idle tick rather than spun on. While the
// executor is paused, the pipeline is left untouched rather than drained.
func (c *Chain) drainAndExecute(ctx context.Context) error {
	idle := time.NewTicker(20 * time.Millisecond)
	defer idle.Stop()

	for {
		if c.Executor.Paused() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-idle.C:
			}
			continue
		}

		opp := c.Pipeline.Dequeue(ctx)
		if opp == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-idle.C:
			}
			continue
		}
		if _, err := c.Executor.Execute(ctx, opp); err != nil {
			c.log.Warn("execution failed", zap.String("opportunity_id", opp.ID), zap.Error(err))
		}
	}
}

// refresh re-reads every watched pool's current state after a subscription
// reconnect, per §4.1's "one-shot post-reconnect refresh before marking
// healthy" — without it the Mirror could sit on reserves from before the
// gap with no way to know it missed events.
func (c *Chain) refresh(ctx context.Context) error {
	if c.refreshFn != nil {
		return c.refreshFn(ctx)
	}
	for _, pool := range c.pools {
		c.Graph.OnPoolUpdate(pool)
	}
	return nil
}

func (c *Chain) familyOf(addr common.Address) model.DexFamily {
	for _, p := range c.pools {
		if p.ID.Address == addr {
			return p.Family
		}
	}
	return model.V2ConstantProduct
}

// BuildFilterQuery constructs the subscription filter matching every
// pool's Sync (v2) or Swap (v3) event, per §4.1/§4.3.
func BuildFilterQuery(pools []*model.Pool) ethereum.FilterQuery {
	addrs := make([]common.Address, len(pools))
	for i, p := range pools {
		addrs[i] = p.ID.Address
	}
	syncTopic := contractabi.V2PairABI.Events["Sync"].ID
	swapTopic := contractabi.V3PoolABI.Events["Swap"].ID
	return ethereum.FilterQuery{
		Addresses: addrs,
		Topics:    [][]common.Hash{{syncTopic, swapTopic}},
	}
}
