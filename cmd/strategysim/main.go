package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"perpsim/internal/config"
	"perpsim/internal/fork"
	"perpsim/internal/strategy"
	"perpsim/internal/strategysim"
)

func main() {
	// Parse flags; env vars fill whatever is left unset
	rpcURL := flag.String("rpc-url", "", "Live ledger RPC endpoint")
	exchangeAddr := flag.String("exchange", "", "Exchange contract address")
	account := flag.String("account", "", "Subject account the batch is submitted from (required)")
	perpetualID := flag.Uint("perpetual", 0, "Perpetual market id")
	strategyType := flag.String("strategy", strategy.TypeGrid, "Strategy type: GRID or MARKET_MAKER")
	levels := flag.Int("levels", 3, "Orders per side")
	spacingPct := flag.String("spacing-pct", "0.005", "Per-level distance from mark, 0.005 = 0.5%")
	lotSize := flag.String("lot", "", "Lot size per order in human units (required)")
	leverage := flag.String("leverage", "1", "Leverage multiple")
	leverageDecimals := flag.Int("leverage-decimals", 6, "Leverage fixed-point decimals")
	postOnly := flag.Bool("post-only", false, "Flag every order post-only")
	expiryBlocks := flag.Uint64("expiry-blocks", 0, "Blocks until order expiry, 0 for no expiry")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[strategysim] ", log.LstdFlags)

	cfg := config.FromEnv()
	if *rpcURL != "" {
		cfg.LiveRPCURL = *rpcURL
	}
	if *exchangeAddr != "" {
		cfg.ExchangeAddr = *exchangeAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}
	if *account == "" {
		logger.Fatal("--account is required")
	}
	if *lotSize == "" {
		logger.Fatal("--lot is required")
	}

	spacing, err := decimal.NewFromString(*spacingPct)
	if err != nil {
		logger.Fatalf("parse spacing-pct: %v", err)
	}
	lot, err := decimal.NewFromString(*lotSize)
	if err != nil {
		logger.Fatalf("parse lot: %v", err)
	}
	lev, err := decimal.NewFromString(*leverage)
	if err != nil {
		logger.Fatalf("parse leverage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	mgr := fork.NewExecManager(fork.ExecOptions{
		Binary:       cfg.ForkBinary,
		StartTimeout: cfg.ForkStartTimeout,
	})
	if !mgr.Installed() {
		logger.Fatal(fork.ErrToolingUnavailable)
	}

	runner := strategysim.NewRunner(strategysim.Options{ForkManager: mgr})
	result, err := runner.Run(ctx,
		strategysim.EnvConfig{
			LiveRPCURL:   cfg.LiveRPCURL,
			ExchangeAddr: cfg.ExchangeAddr,
			Account:      *account,
			PerpetualID:  uint32(*perpetualID),
		},
		strategy.Config{
			Type:             *strategyType,
			Levels:           *levels,
			SpacingPct:       spacing,
			LotSize:          lot,
			Leverage:         lev,
			LeverageDecimals: int32(*leverageDecimals),
			PostOnly:         *postOnly,
			ExpiryBlocks:     *expiryBlocks,
		})
	if err != nil {
		logger.Fatalf("batch failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== Strategy Batch %s ===\n", result.RunID)
	fmt.Printf("Strategy:     %s on %s\n", result.Strategy, result.Market.Symbol)
	fmt.Printf("Orders:       %d (gas %d)\n", len(result.Orders), result.GasUsed)
	if !result.Submitted && result.Failure != nil {
		fmt.Printf("Batch status: REVERTED (%s)\n", result.Failure.RawReason)
		fmt.Printf("  %s\n", result.Failure.Explanation)
		fmt.Printf("  Suggestion: %s\n", result.Failure.Suggestion)
	}
	fmt.Printf("Outcomes:     %d filled, %d resting, %d failed\n",
		result.Aggregates.Filled, result.Aggregates.Resting, result.Aggregates.Failed)
	fmt.Printf("Filled lots:  %d (fees %d)\n", result.Aggregates.FilledLots, result.Aggregates.TotalFees)
	fmt.Printf("Capital:      %s\n", result.Metrics.CapitalRequired.String())
	for _, out := range result.Outcomes {
		line := fmt.Sprintf("  #%d %s @ %d: %s", out.Index, out.OrderType, out.Price, out.Status)
		if out.RestingOrderID != nil {
			line += fmt.Sprintf(" (order id %d)", *out.RestingOrderID)
		}
		if out.VolumeWeightedFillPrice != nil {
			line += fmt.Sprintf(" (vwap %s)", out.VolumeWeightedFillPrice.String())
		}
		fmt.Println(line)
	}
}
