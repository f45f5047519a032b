package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/evmarb/searcher/internal/model"
)

// WellKnownTokens returns the curated token set a chain's discovery sweep
// pairs up (§4.2): one address list per chain ID, since a pair-wise
// discovery sweep needs explicit addresses, not a symbol lookup.
func WellKnownTokens(chainID uint64) []common.Address {
	switch chainID {
	case 1: // Ethereum mainnet
		return []common.Address{
			common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
			common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), // USDC
			common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), // USDT
			common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), // DAI
			common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), // WBTC
		}
	case 42161: // Arbitrum One
		return []common.Address{
			common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), // WETH
			common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), // USDC
			common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"), // USDT
		}
	default:
		return nil
	}
}

// WellKnownDEXes returns the curated DEX set for a chain, one DEXConfig per
// factory contract. The factory-call discovery of §4.2 needs only the
// factory address and pricing family, not a client-side CREATE2 pair
// derivation.
func WellKnownDEXes(chainID uint64) []DEXConfig {
	switch chainID {
	case 1:
		return []DEXConfig{
			{Name: "uniswap-v2", Family: model.V2ConstantProduct,
				Factory: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
				Router:  common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")},
			{Name: "sushiswap", Family: model.V2ConstantProduct,
				Factory: common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
				Router:  common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F")},
			{Name: "uniswap-v3", Family: model.V3Concentrated,
				Factory: common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
				Router:  common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")},
		}
	case 42161:
		return []DEXConfig{
			{Name: "uniswap-v3", Family: model.V3Concentrated,
				Factory: common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
				Router:  common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")},
		}
	default:
		return nil
	}
}
