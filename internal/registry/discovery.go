// Package registry enumerates pools for a curated token set across
// configured DEXes, per SPEC_FULL §4.2: a full pairwise factory scan
// rather than a fixed set of hardcoded pairs.
package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/chain"
	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/model"
)

// DEXConfig names one DEX's factory contract and pricing family, covering
// both v2-family (factory + getPair) and v3-family (factory + getPool)
// discovery.
type DEXConfig struct {
	Name    string
	Family  model.DexFamily
	Factory common.Address
	Router  common.Address
}

// V3FeeTiers are the canonical v3 fee tiers enumerated per §4.2.
var V3FeeTiers = []uint32{1, 5, 30, 100}

// Registry discovers and holds the pool set for one chain.
type Registry struct {
	chainID uint64
	client  *chain.Client
	log     *zap.Logger
}

func New(chainID uint64, client *chain.Client, log *zap.Logger) *Registry {
	return &Registry{chainID: chainID, client: client, log: log.With(zap.Uint64("chain_id", chainID))}
}

// Discover enumerates pools joining every pair drawn from tokens, across
// every configured DEX, skipping pools that don't exist, reading current
// chain head state.
func (r *Registry) Discover(ctx context.Context, tokens []common.Address, dexes []DEXConfig) ([]*model.Pool, error) {
	return r.DiscoverAt(ctx, tokens, dexes, nil)
}

// DiscoverAt is Discover pinned to a historical block, for cmd/replay's
// pre-MEV-state sweep — every view call below is issued with blockNumber
// as the eth_call block tag instead of "latest".
func (r *Registry) DiscoverAt(ctx context.Context, tokens []common.Address, dexes []DEXConfig, blockNumber *big.Int) ([]*model.Pool, error) {
	var pools []*model.Pool

	for _, dex := range dexes {
		for i := 0; i < len(tokens); i++ {
			for j := i + 1; j < len(tokens); j++ {
				found, err := r.discoverPair(ctx, dex, tokens[i], tokens[j], blockNumber)
				if err != nil {
					r.log.Warn("discover pair failed", zap.String("dex", dex.Name), zap.Error(err))
					continue
				}
				pools = append(pools, found...)
			}
		}
	}
	return pools, nil
}

func (r *Registry) discoverPair(ctx context.Context, dex DEXConfig, tokenA, tokenB common.Address, blockNumber *big.Int) ([]*model.Pool, error) {
	switch dex.Family {
	case model.V2ConstantProduct:
		addr, err := r.getPairV2(ctx, dex.Factory, tokenA, tokenB, blockNumber)
		if err != nil {
			return nil, err
		}
		if addr == (common.Address{}) {
			return nil, nil // pool does not exist — silently skipped per §4.2
		}
		pool, err := r.loadV2Pool(ctx, addr, dex.Name, dex.Router, blockNumber)
		if err != nil {
			return nil, err
		}
		return []*model.Pool{pool}, nil

	case model.V3Concentrated:
		var pools []*model.Pool
		for _, feeBps := range V3FeeTiers {
			addr, err := r.getPoolV3(ctx, dex.Factory, tokenA, tokenB, feeBps, blockNumber)
			if err != nil {
				r.log.Debug("getPool failed", zap.Uint32("fee_bps", feeBps), zap.Error(err))
				continue
			}
			if addr == (common.Address{}) {
				continue
			}
			pool, err := r.loadV3Pool(ctx, addr, dex.Name, dex.Router, feeBps, blockNumber)
			if err != nil {
				r.log.Warn("load v3 pool failed", zap.Error(err))
				continue
			}
			pools = append(pools, pool)
		}
		return pools, nil

	default:
		return nil, fmt.Errorf("registry: unsupported discovery family %v", dex.Family)
	}
}

func (r *Registry) getPairV2(ctx context.Context, factory, tokenA, tokenB common.Address, blockNumber *big.Int) (common.Address, error) {
	data, err := contractabi.V2FactoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPair: %w", err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, blockNumber)
	if err != nil {
		return common.Address{}, fmt.Errorf("call getPair: %w", err)
	}
	unpacked, err := contractabi.V2FactoryABI.Unpack("getPair", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getPair: %w", err)
	}
	return unpacked[0].(common.Address), nil
}

func (r *Registry) getPoolV3(ctx context.Context, factory, tokenA, tokenB common.Address, feeBps uint32, blockNumber *big.Int) (common.Address, error) {
	data, err := contractabi.V3FactoryABI.Pack("getPool", tokenA, tokenB, big.NewInt(int64(feeBps)))
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPool: %w", err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, blockNumber)
	if err != nil {
		return common.Address{}, fmt.Errorf("call getPool: %w", err)
	}
	unpacked, err := contractabi.V3FactoryABI.Unpack("getPool", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getPool: %w", err)
	}
	return unpacked[0].(common.Address), nil
}

// loadV2Pool fetches tokens + reserves for a discovered v2-family pool.
func (r *Registry) loadV2Pool(ctx context.Context, addr common.Address, dexName string, router common.Address, blockNumber *big.Int) (*model.Pool, error) {
	token0, err := r.callAddress(ctx, contractabi.V2PairABI, addr, "token0", blockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch token0: %w", err)
	}
	token1, err := r.callAddress(ctx, contractabi.V2PairABI, addr, "token1", blockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch token1: %w", err)
	}

	data, err := contractabi.V2PairABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("pack getReserves: %w", err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call getReserves: %w", err)
	}
	unpacked, err := contractabi.V2PairABI.Unpack("getReserves", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getReserves: %w", err)
	}

	return &model.Pool{
		ID:     model.PoolID{ChainID: r.chainID, Address: addr},
		DEX:    dexName,
		Family: model.V2ConstantProduct,
		Router: router,
		Token0: token0,
		Token1: token1,
		FeeBps: 30, // uniswap-v2-style default fee; per-dex overrides are a config concern
		Snapshot: model.PoolSnapshot{
			Reserve0: unpacked[0].(*big.Int),
			Reserve1: unpacked[1].(*big.Int),
		},
	}, nil
}

func (r *Registry) loadV3Pool(ctx context.Context, addr common.Address, dexName string, router common.Address, feeBps uint32, blockNumber *big.Int) (*model.Pool, error) {
	token0, err := r.callAddress(ctx, contractabi.V3PoolABI, addr, "token0", blockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch token0: %w", err)
	}
	token1, err := r.callAddress(ctx, contractabi.V3PoolABI, addr, "token1", blockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch token1: %w", err)
	}

	slot0Data, err := contractabi.V3PoolABI.Pack("slot0")
	if err != nil {
		return nil, fmt.Errorf("pack slot0: %w", err)
	}
	slot0Out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: slot0Data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call slot0: %w", err)
	}
	slot0, err := contractabi.V3PoolABI.Unpack("slot0", slot0Out)
	if err != nil {
		return nil, fmt.Errorf("unpack slot0: %w", err)
	}

	liqData, err := contractabi.V3PoolABI.Pack("liquidity")
	if err != nil {
		return nil, fmt.Errorf("pack liquidity: %w", err)
	}
	liqOut, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: liqData}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call liquidity: %w", err)
	}
	liqUnpacked, err := contractabi.V3PoolABI.Unpack("liquidity", liqOut)
	if err != nil {
		return nil, fmt.Errorf("unpack liquidity: %w", err)
	}

	return &model.Pool{
		ID:     model.PoolID{ChainID: r.chainID, Address: addr},
		DEX:    dexName,
		Family: model.V3Concentrated,
		Router: router,
		Token0: token0,
		Token1: token1,
		FeeBps: feeBps,
		Snapshot: model.PoolSnapshot{
			SqrtPriceX96: slot0[0].(*big.Int),
			Liquidity:    liqUnpacked[0].(*big.Int),
		},
	}, nil
}

func (r *Registry) callAddress(ctx context.Context, contract abi.ABI, pool common.Address, method string, blockNumber *big.Int) (common.Address, error) {
	data, err := contract.Pack(method)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, blockNumber)
	if err != nil {
		return common.Address{}, err
	}
	unpacked, err := contract.Unpack(method, out)
	if err != nil {
		return common.Address{}, err
	}
	return unpacked[0].(common.Address), nil
}
