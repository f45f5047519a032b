package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/evmarb/searcher/internal/chain"
	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/errs"
	"github.com/evmarb/searcher/internal/model"
)

// Params bundles what Simulate needs beyond the Opportunity itself: the
// deployed arbitrage contract, the executing wallet, and the swap steps
// already built from the opportunity's edges (§6's executeArbitrage
// params tuple).
type Params struct {
	Contract    common.Address
	From        common.Address
	FlashToken  common.Address
	FlashAmount *big.Int
	Swaps       []model.SwapStep
	MinProfit   *big.Int
}

// Result carries the eth_call outcome plus an estimated gas cost, so the
// executor can apply the 50% gas-cost-vs-profit disqualification rule
// without a second round trip.
type Result struct {
	GasEstimate uint64
}

// Simulate issues a read-only eth_call against executeArbitrage, exactly
// as the registry issues getReserves: a live view call, not a forked
// replay. A revert is reported as errs.ErrSimulationReverted, per §4.7
// "treat revert as disqualification".
func Simulate(ctx context.Context, client *chain.Client, p Params) (*Result, error) {
	data, err := encodeExecuteArbitrage(p)
	if err != nil {
		return nil, fmt.Errorf("encode executeArbitrage: %w", err)
	}

	msg := ethereum.CallMsg{From: p.From, To: &p.Contract, Data: data}

	if _, err := client.CallContract(ctx, msg, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSimulationReverted, err)
	}

	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSimulationReverted, err)
	}

	return &Result{GasEstimate: gas}, nil
}

func encodeExecuteArbitrage(p Params) ([]byte, error) {
	type swapTuple struct {
		Router   common.Address
		TokenIn  common.Address
		TokenOut common.Address
		AmountIn *big.Int
		Data     []byte
		DexType  uint8
	}
	swaps := make([]swapTuple, len(p.Swaps))
	for i, s := range p.Swaps {
		swaps[i] = swapTuple{
			Router:   s.Router,
			TokenIn:  s.TokenIn,
			TokenOut: s.TokenOut,
			AmountIn: s.AmountIn,
			Data:     s.Data,
			DexType:  s.DexType,
		}
	}

	type params struct {
		FlashToken  common.Address
		FlashAmount *big.Int
		Swaps       []swapTuple
		MinProfit   *big.Int
	}

	return contractabi.ArbitrageContractABI.Pack("executeArbitrage", params{
		FlashToken:  p.FlashToken,
		FlashAmount: p.FlashAmount,
		Swaps:       swaps,
		MinProfit:   p.MinProfit,
	})
}
