// cmd/quote is a one-shot discovery+detection report: dial one chain,
// discover its curated pool set, run one detector pass, and print
// whatever arbitrage cycles it finds via plain fmt.Printf reporting: each
// discovered pool's DEX, address, tokens and fee, then every opportunity
// with its amounts, confidence and legs.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/chain"
	"github.com/evmarb/searcher/internal/detector"
	"github.com/evmarb/searcher/internal/mirror"
	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/pricing"
	"github.com/evmarb/searcher/internal/registry"
)

func main() {
	chainID := flag.Uint64("chain", 1, "chain ID to scan")
	rpcURL := flag.String("rpc", "", "RPC URL")
	sourceToken := flag.String("source-token", "", "source token address (defaults to the well-known set's first token)")
	inputAmount := flag.String("input-amount", "1000000000000000000", "flashloan input amount in the source token's smallest unit")
	flag.Parse()

	if *rpcURL == "" {
		fmt.Fprintln(os.Stderr, "quote: -rpc is required")
		os.Exit(2)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()
	client, err := chain.Dial(ctx, *chainID, model.ChainEndpoints{RPC: *rpcURL}, logger)
	if err != nil {
		logger.Fatal("dial chain", zap.Error(err))
	}

	tokens := registry.WellKnownTokens(*chainID)
	dexes := registry.WellKnownDEXes(*chainID)
	if len(tokens) == 0 || len(dexes) == 0 {
		logger.Fatal("no well-known token/DEX set for chain", zap.Uint64("chain_id", *chainID))
	}

	reg := registry.New(*chainID, client, logger)
	pools, err := reg.Discover(ctx, tokens, dexes)
	if err != nil {
		logger.Fatal("discover pools", zap.Error(err))
	}

	fmt.Printf("discovered %d pools on chain %d\n\n", len(pools), *chainID)
	for _, p := range pools {
		fmt.Printf("%-12s %s  token0=%s token1=%s fee=%dbps\n", p.DEX, p.ID.Address.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.FeeBps)
	}

	g := pricing.New(*chainID)
	m := mirror.New(*chainID, logger)
	m.Subscribe(func(id model.PoolID, pool *model.Pool) { g.OnPoolUpdate(pool) })
	for _, p := range pools {
		m.Register(p)
		g.OnPoolUpdate(p)
	}

	source := *sourceToken
	var sourceAddr common.Address
	if source != "" {
		sourceAddr = common.HexToAddress(source)
	} else {
		sourceAddr = tokens[0]
	}

	amount, ok := new(big.Int).SetString(*inputAmount, 10)
	if !ok {
		logger.Fatal("invalid -input-amount", zap.String("value", *inputAmount))
	}

	d := detector.New(*chainID, g, sourceAddr, amount, big.NewInt(0), logger)
	opps := d.Run()

	fmt.Printf("\nfound %d profitable cycle(s)\n", len(opps))
	for _, o := range opps {
		fmt.Printf("\nopportunity %s\n", o.ID)
		fmt.Printf("  input:  %s\n", o.InputAmount.String())
		fmt.Printf("  output: %s\n", o.ExpectedOutput.String())
		fmt.Printf("  profit: %s\n", o.ExpectedProfit.String())
		fmt.Printf("  confidence: %.3f\n", o.Confidence)
		for i, e := range o.Edges {
			fmt.Printf("  leg %d: %s -> %s via %s (%s, %dbps)\n", i, e.From.Hex(), e.To.Hex(), e.PoolID.Address.Hex(), e.DEXFamily, e.FeeBps)
		}
	}
}
