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

	"perpsim/internal/config"
	"perpsim/internal/forensics"
	"perpsim/internal/fork"
)

func main() {
	// Parse flags; env vars fill whatever is left unset
	rpcURL := flag.String("rpc-url", "", "Live ledger RPC endpoint")
	exchangeAddr := flag.String("exchange", "", "Exchange contract address")
	txHash := flag.String("tx", "", "Transaction hash to analyze (required)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[forensics] ", log.LstdFlags)

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
	if *txHash == "" {
		logger.Fatal("--tx is required")
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

	// Forensics replays on a historical fork, so the tooling is mandatory
	// here, unlike the dry-run path.
	mgr := fork.NewExecManager(fork.ExecOptions{
		Binary:       cfg.ForkBinary,
		StartTimeout: cfg.ForkStartTimeout,
	})
	if !mgr.Installed() {
		logger.Fatal(fork.ErrToolingUnavailable)
	}

	analyzer := forensics.New(forensics.Options{ForkManager: mgr})
	result, err := analyzer.Analyze(ctx, cfg.LiveRPCURL, cfg.ExchangeAddr, *txHash)
	if err != nil {
		logger.Fatalf("analysis failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== Forensics %s ===\n", result.RunID)
	fmt.Printf("Transaction:  %s\n", result.TxHash)
	fmt.Printf("Sender:       %s\n", result.Sender)
	if result.ViaProxy {
		fmt.Printf("Subject:      %s (via account proxy)\n", result.SubjectAccount)
	} else {
		fmt.Printf("Subject:      %s\n", result.SubjectAccount)
	}
	fmt.Printf("Call:         %s (perpetual %d)\n", result.Call.Method, result.Call.PerpetualID)
	fmt.Printf("Live:         success=%v gas=%d events=%d\n", result.LiveSuccess, result.LiveGasUsed, len(result.LiveEvents))
	fmt.Printf("Replay:       success=%v events=%d\n", result.ReplaySuccess, len(result.ReplayEvents))
	fmt.Printf("Balance:      %d -> %d\n", result.PreState.Balance, result.PostState.Balance)
	if len(result.Matches) > 0 {
		fmt.Printf("Matches:      %d (filled %d lots", len(result.Matches), result.FilledLots)
		if result.FillPrice != nil {
			fmt.Printf(" @ %s", result.FillPrice.String())
		}
		fmt.Printf(")\n")
	}
	if result.Failure != nil {
		fmt.Printf("\nFailure:      %s\n", result.Failure.Explanation)
		fmt.Printf("Suggestion:   %s\n", result.Failure.Suggestion)
		if result.Failure.RawReason != "" {
			fmt.Printf("Raw reason:   %s\n", result.Failure.RawReason)
		}
	}
}
