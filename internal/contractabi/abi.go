// Package contractabi holds the ABI bindings the core must carry per §6:
// the arbitrage contract, v2/v3 pool and factory contracts, and ERC-20.
package contractabi

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Raw ABI JSON constants, one per contract kind named in §6. Kept
// minimal — only the functions/events the pipeline actually calls.
const (
	ArbitrageContractABIJSON = `[{
		"name": "executeArbitrage",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [{
			"name": "params",
			"type": "tuple",
			"components": [
				{"name": "flashToken", "type": "address"},
				{"name": "flashAmount", "type": "uint256"},
				{"name": "swaps", "type": "tuple[]", "components": [
					{"name": "router", "type": "address"},
					{"name": "tokenIn", "type": "address"},
					{"name": "tokenOut", "type": "address"},
					{"name": "amountIn", "type": "uint256"},
					{"name": "data", "type": "bytes"},
					{"name": "dexType", "type": "uint8"}
				]},
				{"name": "minProfit", "type": "uint256"}
			]
		}],
		"outputs": []
	}]`

	V2PairABIJSON = `[
		{
			"constant": true,
			"inputs": [],
			"name": "getReserves",
			"outputs": [
				{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
				{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
				{"internalType": "uint32",  "name": "blockTimestampLast", "type": "uint32"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"constant": true,
			"inputs": [],
			"name": "token0",
			"outputs": [{"internalType": "address", "name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"constant": true,
			"inputs": [],
			"name": "token1",
			"outputs": [{"internalType": "address", "name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"anonymous": false,
			"inputs": [
				{"indexed": false, "internalType": "uint112", "name": "reserve0", "type": "uint112"},
				{"indexed": false, "internalType": "uint112", "name": "reserve1", "type": "uint112"}
			],
			"name": "Sync",
			"type": "event"
		}
	]`

	V2FactoryABIJSON = `[{
		"constant": true,
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"}
		],
		"name": "getPair",
		"outputs": [{"internalType": "address", "name": "pair", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}]`

	V3PoolABIJSON = `[
		{
			"constant": true,
			"inputs": [],
			"name": "token0",
			"outputs": [{"internalType": "address", "name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"constant": true,
			"inputs": [],
			"name": "token1",
			"outputs": [{"internalType": "address", "name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"constant": true,
			"inputs": [],
			"name": "slot0",
			"outputs": [
				{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
				{"internalType": "int24",   "name": "tick",         "type": "int24"},
				{"internalType": "uint16",  "name": "observationIndex", "type": "uint16"},
				{"internalType": "uint16",  "name": "observationCardinality", "type": "uint16"},
				{"internalType": "uint16",  "name": "observationCardinalityNext", "type": "uint16"},
				{"internalType": "uint8",   "name": "feeProtocol", "type": "uint8"},
				{"internalType": "bool",    "name": "unlocked", "type": "bool"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"constant": true,
			"inputs": [],
			"name": "liquidity",
			"outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"anonymous": false,
			"inputs": [
				{"indexed": true,  "internalType": "address", "name": "sender", "type": "address"},
				{"indexed": true,  "internalType": "address", "name": "recipient", "type": "address"},
				{"indexed": false, "internalType": "int256",  "name": "amount0", "type": "int256"},
				{"indexed": false, "internalType": "int256",  "name": "amount1", "type": "int256"},
				{"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
				{"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
				{"indexed": false, "internalType": "int24",   "name": "tick", "type": "int24"}
			],
			"name": "Swap",
			"type": "event"
		}
	]`

	V3FactoryABIJSON = `[{
		"constant": true,
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "uint24",  "name": "fee",    "type": "uint24"}
		],
		"name": "getPool",
		"outputs": [{"internalType": "address", "name": "pool", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}]`

	ERC20ABIJSON = `[
		{
			"constant": true,
			"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
			"name": "balanceOf",
			"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"constant": true,
			"inputs": [],
			"name": "decimals",
			"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`
)

// Parsed ABI values, built once at package init and centralized here
// instead of re-parsed per call site.
var (
	ArbitrageContractABI abi.ABI
	V2PairABI            abi.ABI
	V2FactoryABI          abi.ABI
	V3PoolABI             abi.ABI
	V3FactoryABI          abi.ABI
	ERC20ABI              abi.ABI
)

func init() {
	var err error
	if ArbitrageContractABI, err = parse(ArbitrageContractABIJSON); err != nil {
		panic(fmt.Sprintf("contractabi: parse arbitrage contract ABI: %v", err))
	}
	if V2PairABI, err = parse(V2PairABIJSON); err != nil {
		panic(fmt.Sprintf("contractabi: parse v2 pair ABI: %v", err))
	}
	if V2FactoryABI, err = parse(V2FactoryABIJSON); err != nil {
		panic(fmt.Sprintf("contractabi: parse v2 factory ABI: %v", err))
	}
	if V3PoolABI, err = parse(V3PoolABIJSON); err != nil {
		panic(fmt.Sprintf("contractabi: parse v3 pool ABI: %v", err))
	}
	if V3FactoryABI, err = parse(V3FactoryABIJSON); err != nil {
		panic(fmt.Sprintf("contractabi: parse v3 factory ABI: %v", err))
	}
	if ERC20ABI, err = parse(ERC20ABIJSON); err != nil {
		panic(fmt.Sprintf("contractabi: parse erc20 ABI: %v", err))
	}
}

func parse(raw string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(raw))
}
