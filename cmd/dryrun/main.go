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
	"perpsim/internal/domain"
	"perpsim/internal/dryrun"
	"perpsim/internal/fixedpoint"
	"perpsim/internal/fork"
	"perpsim/internal/snapshot"
)

func main() {
	// Parse flags; env vars fill whatever is left unset
	rpcURL := flag.String("rpc-url", "", "Live ledger RPC endpoint")
	exchangeAddr := flag.String("exchange", "", "Exchange contract address")
	account := flag.String("account", "", "Account the order is submitted from (required)")
	perpetualID := flag.Uint("perpetual", 0, "Perpetual market id")
	orderType := flag.String("type", "OPEN_LONG", "Order type: OPEN_LONG, OPEN_SHORT, CLOSE_LONG, CLOSE_SHORT")
	price := flag.String("price", "0", "Limit price in human units, 0 for a market order")
	lotSize := flag.String("lot", "", "Lot size in human units (required)")
	leverage := flag.String("leverage", "1", "Leverage multiple")
	leverageDecimals := flag.Int("leverage-decimals", 6, "Leverage fixed-point decimals")
	postOnly := flag.Bool("post-only", false, "Reject the order if it would match immediately")
	fillOrKill := flag.Bool("fok", false, "Fill completely or not at all")
	immediateOrCancel := flag.Bool("ioc", false, "Cancel any unfilled remainder")
	expiryBlocks := flag.Uint64("expiry-blocks", 0, "Blocks until expiry, 0 for no expiry")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[dryrun] ", log.LstdFlags)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	client := chain.NewHTTPClient(cfg.LiveRPCURL)

	// The market's decimal counts turn the human flag values into
	// protocol integers.
	market, err := snapshot.NewReader(client, cfg.ExchangeAddr).Market(ctx, uint32(*perpetualID))
	if err != nil {
		logger.Fatalf("read market: %v", err)
	}

	order, err := buildOrder(market, orderFlags{
		orderType:         *orderType,
		price:             *price,
		lotSize:           *lotSize,
		leverage:          *leverage,
		leverageDecimals:  int32(*leverageDecimals),
		postOnly:          *postOnly,
		fillOrKill:        *fillOrKill,
		immediateOrCancel: *immediateOrCancel,
	})
	if err != nil {
		logger.Fatal(err)
	}
	if *expiryBlocks > 0 {
		head, err := client.BlockNumber(ctx)
		if err != nil {
			logger.Fatalf("read head block: %v", err)
		}
		order.ExpiryBlock = head + *expiryBlocks
	}

	sim := dryrun.New(dryrun.Options{
		Client:       client,
		ForkManager:  newForkManager(cfg),
		LiveRPCURL:   cfg.LiveRPCURL,
		ExchangeAddr: cfg.ExchangeAddr,
	})
	result, err := sim.Run(ctx, *account, order)
	if err != nil {
		logger.Fatalf("dry run failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== Dry Run %s ===\n", result.RunID)
	fmt.Printf("Order:        %s %s @ %s (lot %s)\n", order.OrderType, market.Symbol, *price, *lotSize)
	if result.Simulate.Success {
		fmt.Printf("Simulate:     OK (gas estimate %d)\n", result.Simulate.GasEstimate)
		if result.Simulate.OrderID != 0 {
			fmt.Printf("Would rest:   order id %d\n", result.Simulate.OrderID)
		}
	} else {
		fmt.Printf("Simulate:     REVERT: %s\n", result.Simulate.RevertReason)
	}
	if result.Fork == nil {
		fmt.Printf("Fork:         skipped\n")
		return
	}
	fmt.Printf("Fork tx:      %s (gas %d)\n", result.Fork.TxHash, result.Fork.GasUsed)
	fmt.Printf("Balance:      %d -> %d\n", result.Fork.PreState.Balance, result.Fork.PostState.Balance)
	fmt.Printf("Events:       %d\n", len(result.Fork.Events))
	for _, ev := range result.Fork.Events {
		fmt.Printf("  %s %v\n", ev.Name, ev.Args)
	}
}

type orderFlags struct {
	orderType         string
	price             string
	lotSize           string
	leverage          string
	leverageDecimals  int32
	postOnly          bool
	fillOrKill        bool
	immediateOrCancel bool
}

func buildOrder(market domain.MarketState, f orderFlags) (domain.OrderDescriptor, error) {
	orderType, err := parseOrderType(f.orderType)
	if err != nil {
		return domain.OrderDescriptor{}, err
	}
	price, err := decimal.NewFromString(f.price)
	if err != nil {
		return domain.OrderDescriptor{}, fmt.Errorf("parse price: %w", err)
	}
	lot, err := decimal.NewFromString(f.lotSize)
	if err != nil {
		return domain.OrderDescriptor{}, fmt.Errorf("parse lot: %w", err)
	}
	leverage, err := decimal.NewFromString(f.leverage)
	if err != nil {
		return domain.OrderDescriptor{}, fmt.Errorf("parse leverage: %w", err)
	}

	order := domain.OrderDescriptor{
		PerpetualID:       market.PerpetualID,
		OrderType:         orderType,
		Price:             fixedpoint.EncodePrice(price, market.PriceDecimals),
		LotSize:           fixedpoint.EncodeLot(lot, market.LotDecimals),
		PostOnly:          f.postOnly,
		FillOrKill:        f.fillOrKill,
		ImmediateOrCancel: f.immediateOrCancel,
		Leverage:          fixedpoint.EncodeLeverage(leverage, f.leverageDecimals),
	}
	return order, nil
}

func parseOrderType(s string) (domain.OrderType, error) {
	switch s {
	case "OPEN_LONG":
		return domain.OrderTypeOpenLong, nil
	case "OPEN_SHORT":
		return domain.OrderTypeOpenShort, nil
	case "CLOSE_LONG":
		return domain.OrderTypeCloseLong, nil
	case "CLOSE_SHORT":
		return domain.OrderTypeCloseShort, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}

func newForkManager(cfg config.Config) fork.Manager {
	return fork.NewExecManager(fork.ExecOptions{
		Binary:       cfg.ForkBinary,
		StartTimeout: cfg.ForkStartTimeout,
	})
}
