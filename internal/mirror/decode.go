package mirror

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/model"
)

// HandleLog decodes a raw v2 Sync or v3 Swap log and applies it. A decode
// error on an individual event is logged and dropped — per §4.3 it must
// not suspend processing of other events, so this never returns an error
// to a caller that might abort a loop over it.
func (m *Mirror) HandleLog(family model.DexFamily, lg types.Log) {
	id := model.PoolID{ChainID: m.chainID, Address: lg.Address}
	seq := model.NewSequence(lg.BlockNumber, uint32(lg.Index))

	switch family {
	case model.V2ConstantProduct:
		reserve0, reserve1, err := decodeSync(lg)
		if err != nil {
			m.log.Warn("decode Sync event failed, dropping", zap.String("pool", id.String()), zap.Error(err))
			return
		}
		if err := m.ApplyV2Sync(id, seq, reserve0, reserve1); err != nil {
			m.log.Debug("apply Sync event rejected", zap.String("pool", id.String()), zap.Error(err))
		}

	case model.V3Concentrated:
		sqrtPrice, liquidity, err := decodeSwap(lg)
		if err != nil {
			m.log.Warn("decode Swap event failed, dropping", zap.String("pool", id.String()), zap.Error(err))
			return
		}
		if err := m.ApplyV3Swap(id, seq, sqrtPrice, liquidity); err != nil {
			m.log.Debug("apply Swap event rejected", zap.String("pool", id.String()), zap.Error(err))
		}

	default:
		m.log.Warn("unsupported dex family for log decode", zap.Int("family", int(family)))
	}
}

func decodeSync(lg types.Log) (reserve0, reserve1 *big.Int, err error) {
	vals, err := contractabi.V2PairABI.Unpack("Sync", lg.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack Sync: %w", err)
	}
	if len(vals) < 2 {
		return nil, nil, fmt.Errorf("unexpected Sync field count: %d", len(vals))
	}
	r0, ok := vals[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("reserve0 type assertion failed")
	}
	r1, ok := vals[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("reserve1 type assertion failed")
	}
	return r0, r1, nil
}

func decodeSwap(lg types.Log) (sqrtPriceX96, liquidity *big.Int, err error) {
	vals, err := contractabi.V3PoolABI.Unpack("Swap", lg.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack Swap: %w", err)
	}
	// sender and recipient are indexed topics, not part of Data, so Unpack
	// yields only the five non-indexed fields: amount0, amount1,
	// sqrtPriceX96, liquidity, tick.
	if len(vals) < 5 {
		return nil, nil, fmt.Errorf("unexpected Swap field count: %d", len(vals))
	}
	sqrtPrice, ok := vals[2].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("sqrtPriceX96 type assertion failed")
	}
	liq, ok := vals[3].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("liquidity type assertion failed")
	}
	return sqrtPrice, liq, nil
}
