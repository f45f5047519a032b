// Package executor is the last stage of the pipeline (§4.7): gas-gates,
// simulates, submits, confirms, and archives exactly one opportunity at a
// time per chain.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/chain"
	"github.com/evmarb/searcher/internal/contractabi"
	"github.com/evmarb/searcher/internal/errs"
	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/simulator"
	"github.com/evmarb/searcher/internal/storage"
)

// GasCostProfitRatio is the §4.7 disqualification threshold: an
// opportunity whose estimated gas cost exceeds this fraction of expected
// profit is skipped before submission.
var GasCostProfitRatio = 0.5

// Signer produces and signs the transaction for one opportunity. Kept as
// an interface so tests can supply a stub without a real private key.
type Signer interface {
	Address() common.Address
	SignExecuteArbitrage(ctx context.Context, nonce uint64, gasPrice *big.Int, contract common.Address, opp *model.Opportunity, minProfit *big.Int) (*types.Transaction, error)
}

// Executor consumes opportunities from one chain's Pipeline, one at a
// time (§5's "at most one in-flight transaction per chain").
type Executor struct {
	chainID  uint64
	client   *chain.Client
	signer   Signer
	contract common.Address
	archive  *storage.Archive
	history  *lru.Cache[string, *model.ExecutionRecord]
	log      *zap.Logger

	maxGasPrice    *big.Int
	maxSlippageBps uint32
	dryRun         bool
	simulateFirst  bool
	perTxLossLimit *big.Int
	dailyLossLimit *big.Int
	dailyLoss      model.DailyLossAccumulator

	paused bool
}

type Config struct {
	ChainID        uint64
	Contract       common.Address
	MaxGasPrice    *big.Int
	MaxSlippageBps uint32
	DryRun         bool
	SimulateFirst  bool
	PerTxLossLimit *big.Int
	DailyLossLimit *big.Int
	HistorySize    int
}

func New(cfg Config, client *chain.Client, signer Signer, archive *storage.Archive, log *zap.Logger) (*Executor, error) {
	size := cfg.HistorySize
	if size <= 0 {
		size = 256
	}
	history, err := lru.New[string, *model.ExecutionRecord](size)
	if err != nil {
		return nil, fmt.Errorf("allocate history cache: %w", err)
	}

	return &Executor{
		chainID:        cfg.ChainID,
		client:         client,
		signer:         signer,
		contract:       cfg.Contract,
		archive:        archive,
		history:        history,
		log:            log.With(zap.Uint64("chain_id", cfg.ChainID)),
		maxGasPrice:    cfg.MaxGasPrice,
		maxSlippageBps: cfg.MaxSlippageBps,
		dryRun:         cfg.DryRun,
		simulateFirst:  cfg.SimulateFirst,
		perTxLossLimit: cfg.PerTxLossLimit,
		dailyLossLimit: cfg.DailyLossLimit,
		dailyLoss:      model.DailyLossAccumulator{ChainID: cfg.ChainID},
	}, nil
}

// Pause stops new submissions. The pipeline is not touched: the
// coordinator stops dequeuing while paused, and queued entries stay until
// they are resumed or expire.
func (e *Executor) Pause()  { e.paused = true }
func (e *Executor) Resume() { e.paused = false }
func (e *Executor) Paused() bool { return e.paused }

// Execute runs the full §4.7 lifecycle for one opportunity: gas gate,
// optional simulation, submission, confirmation, loss accounting.
func (e *Executor) Execute(ctx context.Context, opp *model.Opportunity) (*model.ExecutionRecord, error) {
	if e.paused {
		return nil, errs.ErrPaused
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if e.maxGasPrice != nil && gasPrice.Cmp(e.maxGasPrice) > 0 {
		return nil, fmt.Errorf("%w: suggested %s > ceiling %s", errs.ErrGasCeilingExceeded, gasPrice, e.maxGasPrice)
	}

	minProfit := slippedMinProfit(opp.ExpectedProfit, e.maxSlippageBps)

	if e.simulateFirst {
		swaps, err := buildSwapSteps(opp)
		if err != nil {
			return nil, fmt.Errorf("build swap steps: %w", err)
		}
		var from common.Address
		if e.signer != nil {
			from = e.signer.Address()
		}
		result, err := simulator.Simulate(ctx, e.client, simulator.Params{
			Contract:    e.contract,
			From:        from,
			FlashToken:  opp.InputToken,
			FlashAmount: opp.InputAmount,
			Swaps:       swaps,
			MinProfit:   minProfit,
		})
		if err != nil {
			return nil, err
		}
		gasCost := new(big.Int).Mul(gasPrice, big.NewInt(int64(result.GasEstimate)))
		gasCostF := new(big.Float).SetInt(gasCost)
		profitF := new(big.Float).SetInt(opp.ExpectedProfit)
		ratio := new(big.Float).Quo(gasCostF, profitF)
		if r, _ := ratio.Float64(); r > GasCostProfitRatio {
			return nil, fmt.Errorf("%w: gas cost %.4f of profit exceeds %.2f ratio", errs.ErrUnprofitableAfterGas, r, GasCostProfitRatio)
		}
	}

	if e.dryRun {
		return e.recordDryRun(opp), nil
	}

	return e.submit(ctx, opp, gasPrice, minProfit)
}

func (e *Executor) submit(ctx context.Context, opp *model.Opportunity, gasPrice, minProfit *big.Int) (*model.ExecutionRecord, error) {
	submittedAt := time.Now()

	txHash, err := submitWithNonceRetry(
		func() (common.Hash, error) { return e.signAndSend(ctx, opp, gasPrice, minProfit) },
		func() error { return e.client.ResyncNonce(ctx) },
	)
	if err != nil {
		return nil, err
	}

	receipt, err := e.client.AwaitReceipt(ctx, txHash, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: await receipt: %v", errs.ErrNetwork, err)
	}

	rec := &model.ExecutionRecord{
		OpportunityID: opp.ID,
		ChainID:       e.chainID,
		TxHash:        txHash,
		GasUsed:       receipt.GasUsed,
		BlockNumber:   receipt.BlockNumber.Uint64(),
		SubmittedAt:   submittedAt,
		ConfirmedAt:   time.Now(),
	}

	var lossErr error
	if receipt.Status == types.ReceiptStatusSuccessful {
		rec.Success = true
		rec.ErrorKind = model.ErrorNone
		rec.ActualProfit = opp.ExpectedProfit
	} else {
		rec.Success = false
		rec.ErrorKind = model.ErrorReverted
		rec.ActualProfit = new(big.Int).Neg(gasCostOf(receipt, gasPrice))
		lossErr = e.accountLoss(rec.ActualProfit)
	}

	e.finish(rec)
	if lossErr != nil {
		e.paused = true
		return rec, lossErr
	}
	return rec, nil
}

// signAndSend signs one transaction against the current nonce and submits
// it, advancing the nonce counter only on confirmed acceptance (§4.1).
func (e *Executor) signAndSend(ctx context.Context, opp *model.Opportunity, gasPrice, minProfit *big.Int) (common.Hash, error) {
	if e.signer == nil {
		return common.Hash{}, fmt.Errorf("sign transaction: no signer configured")
	}
	nonce, err := e.client.NextNonce()
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := e.signer.SignExecuteArbitrage(ctx, nonce, gasPrice, e.contract, opp, minProfit)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	txHash, kind, err := e.client.SendSignedTransaction(ctx, tx, true)
	if err != nil {
		return txHash, classifySubmitError(kind, err)
	}
	e.client.AdvanceNonce()
	return txHash, nil
}

// submitWithNonceRetry implements §7 error kind 6: on a nonce-conflict
// submission, resync the nonce and retry send exactly once before
// surfacing the failure. Factored out of submit so the retry-once control
// flow is testable without a real chain.Client.
func submitWithNonceRetry(send func() (common.Hash, error), resync func() error) (common.Hash, error) {
	txHash, err := send()
	if !errors.Is(err, errs.ErrNonceConflict) {
		return txHash, err
	}
	if resyncErr := resync(); resyncErr != nil {
		return common.Hash{}, fmt.Errorf("resync nonce after conflict: %w", resyncErr)
	}
	return send()
}

// accountLoss feeds a negative ActualProfit into the daily accumulator and
// escalates to errs.ErrLimitBreach if either the per-tx or daily ceiling
// is crossed; callers pause the chain on that error.
func (e *Executor) accountLoss(actualProfit *big.Int) error {
	if actualProfit.Sign() >= 0 {
		return nil
	}
	loss := new(big.Int).Neg(actualProfit)

	if e.perTxLossLimit != nil && loss.Cmp(e.perTxLossLimit) > 0 {
		return errs.ErrLimitBreach
	}

	e.dailyLoss.Add(loss, time.Now())
	if e.dailyLossLimit != nil && e.dailyLoss.Breached(e.dailyLossLimit) {
		e.paused = true
		return errs.ErrLimitBreach
	}
	return nil
}

func (e *Executor) finish(rec *model.ExecutionRecord) {
	e.history.Add(rec.OpportunityID, rec)
	if e.archive != nil {
		if err := e.archive.Append(rec); err != nil {
			e.log.Warn("archive append failed", zap.Error(err))
		}
	}
}

func (e *Executor) recordDryRun(opp *model.Opportunity) *model.ExecutionRecord {
	rec := &model.ExecutionRecord{
		OpportunityID: opp.ID,
		ChainID:       e.chainID,
		Success:       true,
		TxHash:        dryRunSentinelHash(opp.ID),
		ErrorKind:     model.ErrorNone,
		ActualProfit:  opp.ExpectedProfit,
		SubmittedAt:   time.Now(),
		ConfirmedAt:   time.Now(),
	}
	e.finish(rec)
	return rec
}

// History returns the N most recent in-memory execution records, for the
// control surface's trade endpoint (which reads only this, never the
// durable archive).
func (e *Executor) History() []*model.ExecutionRecord {
	keys := e.history.Keys()
	out := make([]*model.ExecutionRecord, 0, len(keys))
	for _, k := range keys {
		if rec, ok := e.history.Get(k); ok {
			out = append(out, rec)
		}
	}
	return out
}

func slippedMinProfit(expectedProfit *big.Int, maxSlippageBps uint32) *big.Int {
	num := new(big.Int).Mul(expectedProfit, big.NewInt(int64(10000-maxSlippageBps)))
	return num.Div(num, big.NewInt(10000))
}

// buildSwapSteps turns one opportunity's edges into the on-chain swap-step
// tuples (§6), encoding each leg's family-specific `data` from the pool
// metadata the edge carries: fee tier for v3, coin indices for stable-curve,
// the route-is-stable flag for a route-list leg, nothing for v2.
func buildSwapSteps(opp *model.Opportunity) ([]model.SwapStep, error) {
	steps := make([]model.SwapStep, len(opp.Edges))
	amountIn := opp.InputAmount
	for i, e := range opp.Edges {
		data, err := contractabi.EncodeSwapData(contractabi.DexType(e.DEXFamily), e.FeeBps, e.StableCoinIndexIn, e.StableCoinIndexOut, e.RouteIsStable)
		if err != nil {
			return nil, fmt.Errorf("encode swap data for leg %d: %w", i, err)
		}
		steps[i] = model.SwapStep{
			Router:   e.Router,
			TokenIn:  e.From,
			TokenOut: e.To,
			AmountIn: amountIn,
			Data:     data,
			DexType:  uint8(e.DEXFamily),
		}
		amountIn = opp.StepOutputs[i]
	}
	return steps, nil
}

func gasCostOf(receipt *types.Receipt, gasPrice *big.Int) *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(receipt.GasUsed)), gasPrice)
}

func dryRunSentinelHash(opportunityID string) (h [32]byte) {
	copy(h[:], []byte("dryrun-"+opportunityID))
	return h
}

func classifySubmitError(kind chain.SubmitKind, err error) error {
	switch kind {
	case chain.SubmitGasTooHigh:
		return fmt.Errorf("%w: %v", errs.ErrGasCeilingExceeded, err)
	case chain.SubmitNonceConflict:
		return fmt.Errorf("%w: %v", errs.ErrNonceConflict, err)
	case chain.SubmitReverted:
		return fmt.Errorf("%w: %v", errs.ErrPostSubmitRevert, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrNetwork, err)
	}
}
