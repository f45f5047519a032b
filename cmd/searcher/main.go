// cmd/searcher is the long-running daemon: one coordinator.Chain per
// enabled chain, driven under a supervising errgroup so one chain's
// failure never brings down another, plus the operator control surface of
// §6. Config is still built entirely in-process — these flags feed the
// handful of values a runnable binary needs (endpoints, key, thresholds),
// they are not a config-file/env loader.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evmarb/searcher/internal/control"
	"github.com/evmarb/searcher/internal/coordinator"
	"github.com/evmarb/searcher/internal/executor"
	"github.com/evmarb/searcher/internal/model"
	"github.com/evmarb/searcher/internal/registry"
	"github.com/evmarb/searcher/internal/storage"
)

func main() {
	var (
		chainIDs      = flag.String("chains", "1", "comma-separated chain IDs to run")
		rpcURLs       = flag.String("rpc", "", "comma-separated RPC URLs, aligned by index with -chains")
		wsURLs        = flag.String("ws", "", "comma-separated WS URLs, aligned by index with -chains")
		privateURLs   = flag.String("private-submit", "", "comma-separated private-mempool submit URLs, aligned by index with -chains (empty entry allowed)")
		contracts     = flag.String("contracts", "", "comma-separated arbitrage contract addresses, aligned by index with -chains")
		sourceTokens  = flag.String("source-tokens", "", "comma-separated source token addresses, aligned by index with -chains (defaults to WETH-equivalent from the well-known set)")
		inputAmount   = flag.String("input-amount", "1000000000000000000", "flashloan input amount in the source token's smallest unit")
		walletKey     = flag.String("wallet-key", "", "hex-encoded private key; empty runs in observe-only mode with no signer")
		minProfitUSD  = flag.Float64("min-profit-usd", 10, "minimum opportunity profit in USD, checked at dequeue; with the built-in no-op price oracle any positive native-unit profit passes instead")
		maxGasGwei    = flag.Float64("max-gas-gwei", 150, "gas price ceiling in gwei")
		maxSlippage   = flag.Int("max-slippage-bps", 50, "max allowed slippage in bps applied to minProfit")
		dryRun        = flag.Bool("dry-run", false, "record opportunities without submitting transactions")
		simulateFirst = flag.Bool("simulate", true, "simulate via eth_call before submitting")
		dbPath        = flag.String("db", "searcher.db", "sqlite path for the execution-record archive")
		httpAddr      = flag.String("http", ":8090", "control surface listen address")
	)
	flag.Parse()

	logger, err := zap.NewProductionConfig().Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("shutdown signal received")
		cancel()
	}()

	cfg := model.DefaultConfig()
	cfg.MinProfitUSD = *minProfitUSD
	cfg.MaxGasPriceGwei = *maxGasGwei
	cfg.MaxSlippageBps = *maxSlippage
	cfg.DryRun = *dryRun
	cfg.SimulateBeforeExecute = *simulateFirst
	cfg.WalletKey = *walletKey

	ids := splitUint64(*chainIDs)
	rpcs := strings.Split(*rpcURLs, ",")
	wss := strings.Split(*wsURLs, ",")
	privates := strings.Split(*privateURLs, ",")
	contractAddrs := strings.Split(*contracts, ",")
	sources := strings.Split(*sourceTokens, ",")

	for i, id := range ids {
		ep := model.ChainEndpoints{RPC: at(rpcs, i), WS: at(wss, i), PrivateSubmit: at(privates, i)}
		if addr := at(contractAddrs, i); addr != "" {
			ep.ArbitrageContract = common.HexToAddress(addr)
		}
		cfg.PerChainEndpoints[id] = ep
		cfg.EnabledChains = append(cfg.EnabledChains, id)
	}

	amount, ok := new(big.Int).SetString(*inputAmount, 10)
	if !ok {
		logger.Fatal("invalid -input-amount", zap.String("value", *inputAmount))
	}

	archive, err := storage.Open(*dbPath)
	if err != nil {
		logger.Fatal("open execution archive", zap.Error(err))
	}
	defer archive.Close()

	var signer executor.Signer
	if cfg.WalletKey != "" {
		chainIDBig := big.NewInt(int64(ids[0]))
		s, err := executor.NewWalletSigner(cfg.WalletKey, chainIDBig, 600000)
		if err != nil {
			logger.Fatal("construct wallet signer", zap.Error(err))
		}
		signer = s
	} else {
		logger.Warn("no -wallet-key set: running observe-only, executions will fail to sign")
	}

	chains := make(map[uint64]*coordinator.Chain, len(ids))
	for i, id := range ids {
		endpoints := cfg.PerChainEndpoints[id]

		sourceToken := at(sources, i)
		var sourceAddr common.Address
		if sourceToken != "" {
			sourceAddr = common.HexToAddress(sourceToken)
		} else if tokens := registry.WellKnownTokens(id); len(tokens) > 0 {
			sourceAddr = tokens[0]
		}

		c, err := coordinator.New(ctx, id, cfg, endpoints, sourceAddr, amount, signer, archive, logger)
		if err != nil {
			logger.Fatal("construct chain pipeline", zap.Uint64("chain_id", id), zap.Error(err))
		}
		chains[id] = c
	}

	server := control.New(chains, logger)
	httpServer := &http.Server{Addr: *httpAddr, Handler: server.Handler()}
	go func() {
		logger.Info("control surface listening", zap.String("addr", *httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control surface exited", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	// A plain Group with no derived context: a chain that returns an error
	// is reported by Wait but does not cancel the other chains.
	var g errgroup.Group
	gctx := ctx
	for id, c := range chains {
		chainID, chain := id, c
		reg := registry.New(chainID, chain.Client, logger)
		dexes := registry.WellKnownDEXes(chainID)
		tokens := registry.WellKnownTokens(chainID)
		chain.SetRefresher(func(ctx context.Context) error {
			pools, err := reg.Discover(ctx, tokens, dexes)
			if err != nil {
				return err
			}
			for _, p := range pools {
				chain.Mirror.Register(p)
				chain.Graph.OnPoolUpdate(p)
			}
			return nil
		})

		g.Go(func() error {
			pools, err := reg.Discover(gctx, tokens, dexes)
			if err != nil {
				return fmt.Errorf("chain %d: discover pools: %w", chainID, err)
			}
			logger.Info("discovered pools", zap.Uint64("chain_id", chainID), zap.Int("count", len(pools)))
			if err := chain.Run(gctx, pools); err != nil && gctx.Err() == nil {
				return fmt.Errorf("chain %d: %w", chainID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("searcher exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("searcher shut down cleanly")
}

func splitUint64(csv string) []uint64 {
	parts := strings.Split(csv, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func at(s []string, i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return strings.TrimSpace(s[i])
}
