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

	"perpsim/internal/chain"
	"perpsim/internal/config"
	"perpsim/internal/liquidation"
	"perpsim/internal/snapshot"
)

func main() {
	// Parse flags; env vars fill whatever is left unset
	rpcURL := flag.String("rpc-url", "", "Live ledger RPC endpoint")
	exchangeAddr := flag.String("exchange", "", "Exchange contract address")
	account := flag.String("account", "", "Account whose position is projected (required)")
	perpetualID := flag.Uint("perpetual", 0, "Perpetual market id")
	mmr := flag.String("mmr", "0.05", "Maintenance margin ratio, 0.05 = 5%")
	rangePct := flag.String("range-pct", "0.2", "Sweep half-width around mark, 0.2 = ±20%")
	sweepSteps := flag.Int("sweep-steps", 20, "Sweep intervals (points = steps+1)")
	fundingHours := flag.Int("funding-hours", 24, "Funding projection horizon in hours")
	fundingSteps := flag.Int("funding-steps", 8, "Funding projection hour marks")
	collateralDecimals := flag.Int("collateral-decimals", 6, "Collateral fixed-point decimals")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[liqproject] ", log.LstdFlags)

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

	mmrValue, err := decimal.NewFromString(*mmr)
	if err != nil {
		logger.Fatalf("parse mmr: %v", err)
	}
	rangeValue, err := decimal.NewFromString(*rangePct)
	if err != nil {
		logger.Fatalf("parse range-pct: %v", err)
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

	// Read-only: the projection itself is pure math over live state.
	reader := snapshot.NewReader(chain.NewHTTPClient(cfg.LiveRPCURL), cfg.ExchangeAddr)
	market, err := reader.Market(ctx, uint32(*perpetualID))
	if err != nil {
		logger.Fatalf("read market: %v", err)
	}
	snap, err := reader.Account(ctx, *account, uint32(*perpetualID))
	if err != nil {
		logger.Fatalf("read account: %v", err)
	}
	if !snap.HasPosition() {
		logger.Fatalf("account %s has no position on perpetual %d", *account, *perpetualID)
	}

	projection := liquidation.Project(uint32(*perpetualID), *snap.Position, market, liquidation.Options{
		PriceRangePct:          rangeValue,
		SweepSteps:             *sweepSteps,
		FundingHours:           *fundingHours,
		FundingSteps:           *fundingSteps,
		MaintenanceMarginRatio: mmrValue,
		CollateralDecimals:     int32(*collateralDecimals),
	})

	if *outputJSON {
		output, _ := json.MarshalIndent(projection, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== Liquidation Projection ===\n")
	fmt.Printf("Market:       %s (perpetual %d)\n", market.Symbol, *perpetualID)
	fmt.Printf("Side:         %s\n", snap.Position.Side)
	fmt.Printf("Liq price:    %s\n", projection.LiquidationPrice.String())
	fmt.Printf("Sweep:        %d points\n", len(projection.Sweep))
	for _, p := range projection.Sweep {
		marker := " "
		if p.Liquidatable {
			marker = "!"
		}
		fmt.Printf("  %s %s\n", marker, p.Price.String())
	}
	if len(projection.Funding) == 0 {
		fmt.Printf("Funding:      flat (zero rate)\n")
		return
	}
	fmt.Printf("Funding drift over %dh:\n", *fundingHours)
	for _, p := range projection.Funding {
		fmt.Printf("  +%sh accrued %s, liq %s\n", p.Hour.String(), p.FundingAccrued.String(), p.AdjustedLiquidationPrice.String())
	}
}
