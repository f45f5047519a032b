package contractabi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmarb/searcher/internal/contractabi"
)

func TestEncodeSwapData_V2_CarriesNoData(t *testing.T) {
	data, err := contractabi.EncodeSwapData(contractabi.DexTypeV2, 0, 0, 0, false)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncodeDecodeSwapData_V3_FeeTierRoundTrips(t *testing.T) {
	data, err := contractabi.EncodeSwapData(contractabi.DexTypeV3, 3000, 0, 0, false)
	require.NoError(t, err)

	got, err := contractabi.DecodeV3FeeTier(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(3000), got)
}

func TestEncodeDecodeSwapData_Stable_CoinIndicesRoundTrip(t *testing.T) {
	data, err := contractabi.EncodeSwapData(contractabi.DexTypeStable, 0, 1, 2, false)
	require.NoError(t, err)

	in, out, err := contractabi.DecodeStableCoinIndices(data)
	require.NoError(t, err)
	assert.Equal(t, int8(1), in)
	assert.Equal(t, int8(2), out)
}

func TestEncodeDecodeSwapData_RouteList_StableFlagRoundTrips(t *testing.T) {
	data, err := contractabi.EncodeSwapData(contractabi.DexTypeRouteList, 0, 0, 0, true)
	require.NoError(t, err)

	got, err := contractabi.DecodeRouteStableFlag(data)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestParsedABIs_ExposeExpectedMethodsAndEvents(t *testing.T) {
	assert.Contains(t, contractabi.ArbitrageContractABI.Methods, "executeArbitrage")
	assert.Contains(t, contractabi.V2PairABI.Methods, "getReserves")
	assert.Contains(t, contractabi.V2PairABI.Events, "Sync")
	assert.Contains(t, contractabi.V3PoolABI.Events, "Swap")
	assert.Contains(t, contractabi.V2FactoryABI.Methods, "getPair")
	assert.Contains(t, contractabi.V3FactoryABI.Methods, "getPool")
	assert.Contains(t, contractabi.ERC20ABI.Methods, "balanceOf")
}
