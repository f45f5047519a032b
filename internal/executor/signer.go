package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/model"
)

// WalletSigner signs executeArbitrage transactions with a local private
// key: one tx wrapping the whole N-leg swap cycle (§6), rather than one
// LegacyTx per leg.
type WalletSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	gasLimit   uint64
}

func NewWalletSigner(privateKeyHex string, chainID *big.Int, gasLimit uint64) (*WalletSigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &WalletSigner{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		chainID:    chainID,
		gasLimit:   gasLimit,
	}, nil
}

func (s *WalletSigner) Address() common.Address {
	return s.address
}

func (s *WalletSigner) SignExecuteArbitrage(ctx context.Context, nonce uint64, gasPrice *big.Int, contract common.Address, opp *model.Opportunity, minProfit *big.Int) (*types.Transaction, error) {
	data, err := encodeExecuteArbitrageCall(opp, minProfit)
	if err != nil {
		return nil, fmt.Errorf("encode executeArbitrage: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    big.NewInt(0),
		Gas:      s.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}

func encodeExecuteArbitrageCall(opp *model.Opportunity, minProfit *big.Int) ([]byte, error) {
	type swapTuple struct {
		Router   common.Address
		TokenIn  common.Address
		TokenOut common.Address
		AmountIn *big.Int
		Data     []byte
		DexType  uint8
	}
	swaps, err := buildSwapSteps(opp)
	if err != nil {
		return nil, fmt.Errorf("build swap steps: %w", err)
	}
	packed := make([]swapTuple, len(swaps))
	for i, s := range swaps {
		packed[i] = swapTuple{
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
		FlashToken:  opp.InputToken,
		FlashAmount: opp.InputAmount,
		Swaps:       packed,
		MinProfit:   minProfit,
	})
}
