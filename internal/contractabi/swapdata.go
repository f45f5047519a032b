package contractabi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DexType mirrors the contract's uint8 dexType discriminant for a swap
// step (§6, §8 round-trip test).
type DexType uint8

const (
	DexTypeV2 DexType = iota
	DexTypeV3
	DexTypeStable
	DexTypeRouteList
)

var (
	uint24Ty, _ = abi.NewType("uint24", "", nil)
	int128Ty, _ = abi.NewType("int128", "", nil)
	boolTy, _   = abi.NewType("bool", "", nil)

	feeTierArgs    = abi.Arguments{{Type: uint24Ty}}
	stableCoinArgs = abi.Arguments{{Type: int128Ty}, {Type: int128Ty}}
	routeArgs      = abi.Arguments{{Type: boolTy}}
)

// EncodeSwapData produces the `data` field of a swap step per §6's
// per-family encoding rules. v2 carries no extra data.
func EncodeSwapData(family DexType, feeTierBps uint32, stableCoinIn, stableCoinOut int8, routeIsStable bool) ([]byte, error) {
	switch family {
	case DexTypeV2:
		return nil, nil
	case DexTypeV3:
		return feeTierArgs.Pack(big.NewInt(int64(feeTierBps)))
	case DexTypeStable:
		return stableCoinArgs.Pack(big.NewInt(int64(stableCoinIn)), big.NewInt(int64(stableCoinOut)))
	case DexTypeRouteList:
		return routeArgs.Pack(routeIsStable)
	default:
		return nil, nil
	}
}

// DecodeV3FeeTier unpacks the fee tier encoded by EncodeSwapData for a v3
// swap step. Used by the §8 "encode then decode a swap-step yields the
// original tuple" round-trip test.
func DecodeV3FeeTier(data []byte) (uint32, error) {
	vals, err := feeTierArgs.Unpack(data)
	if err != nil {
		return 0, err
	}
	return uint32(vals[0].(*big.Int).Uint64()), nil
}

// DecodeStableCoinIndices unpacks the (int128,int128) coin indices encoded
// for a stable-curve swap step.
func DecodeStableCoinIndices(data []byte) (int8, int8, error) {
	vals, err := stableCoinArgs.Unpack(data)
	if err != nil {
		return 0, 0, err
	}
	return int8(vals[0].(*big.Int).Int64()), int8(vals[1].(*big.Int).Int64()), nil
}

// DecodeRouteStableFlag unpacks the bool flag encoded for a route-list
// swap step.
func DecodeRouteStableFlag(data []byte) (bool, error) {
	vals, err := routeArgs.Unpack(data)
	if err != nil {
		return false, err
	}
	return vals[0].(bool), nil
}
