// Package forensics explains a transaction that already happened: what
// was called, what the live chain did with it, and what an identical
// replay does on a fork of the state immediately before it executed.
package forensics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"perpsim/internal/chain"
	"perpsim/internal/domain"
	"perpsim/internal/events"
	"perpsim/internal/exchange"
	"perpsim/internal/fork"
	"perpsim/internal/observability"
	"perpsim/internal/revert"
	"perpsim/internal/snapshot"
)

// Options configure an Analyzer.
type Options struct {
	ForkManager fork.Manager
	// NewClient builds a client for any endpoint, live or fork. Defaults
	// to the production HTTP client; tests substitute stubs.
	NewClient func(endpoint string) chain.Client
	Logger    *zerolog.Logger
	Metrics   *observability.Metrics
}

// Analyzer reconstructs and replays historical transactions.
type Analyzer struct {
	forkMgr   fork.Manager
	newClient func(endpoint string) chain.Client
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	logger := observability.NewLogger("forensics")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	newClient := opts.NewClient
	if newClient == nil {
		newClient = func(endpoint string) chain.Client {
			return chain.NewHTTPClient(endpoint)
		}
	}
	return &Analyzer{
		forkMgr:   opts.ForkManager,
		newClient: newClient,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Analyze fetches txHash from the live endpoint, decodes what it did, then
// replays the identical call on a fork pinned to the block before it
// executed. A replay that itself reverts is part of the report, never an
// error; the only hard failures are missing data and fork trouble.
func (a *Analyzer) Analyze(ctx context.Context, liveRPCURL, exchangeAddr, txHash string) (*domain.ForensicsResult, error) {
	started := time.Now()
	result := &domain.ForensicsResult{
		RunID:  uuid.NewString(),
		TxHash: txHash,
	}
	logger := a.logger.With().Str("run_id", result.RunID).Str("tx", txHash).Logger()

	live := a.newClient(liveRPCURL)
	tx, err := live.TransactionByHash(ctx, txHash)
	if err != nil {
		a.observe("forensics", "error", started)
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}
	receipt, err := live.WaitForReceipt(ctx, txHash)
	if err != nil {
		a.observe("forensics", "error", started)
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}

	result.Sender = tx.From
	result.SubjectAccount, result.ViaProxy = a.resolveSubject(ctx, live, tx, exchangeAddr)

	call, err := exchange.DecodeCalldata(tx.Input)
	if err != nil {
		a.observe("forensics", "error", started)
		return nil, fmt.Errorf("decode calldata: %w", err)
	}

	decoder := events.NewDecoder(exchangeAddr)
	result.LiveEvents = decoder.Decode(receipt.Logs)
	result.LiveSuccess = receipt.Status == 1
	result.LiveGasUsed = receipt.GasUsed
	result.LiveGasPrice = receipt.EffectiveGasPrice

	if len(call.Orders) == 0 && call.PerpetualID == 0 {
		// The calldata did not identify the market; the first order-request
		// event in the live receipt does.
		for _, ev := range result.LiveEvents {
			if ev.Name == domain.EventOrderRequest {
				call.PerpetualID = uint32(events.Uint64Arg(ev, "perpetualId"))
				call.PerpetualIDFromEvents = true
				break
			}
		}
	}
	result.Call = call
	logger.Info().
		Str("method", call.Method).
		Bool("live_success", result.LiveSuccess).
		Bool("via_proxy", result.ViaProxy).
		Msg("transaction decoded")

	// Pin the fork explicitly even for a block-1 transaction, where the
	// prior block is genesis; an unpinned fork would track head instead.
	forkBlock := uint64(0)
	if receipt.BlockNumber > 0 {
		forkBlock = receipt.BlockNumber - 1
	}
	var replayReason string
	err = fork.WithFork(ctx, a.forkMgr, liveRPCURL, fork.StartOptions{BlockNumber: &forkBlock, NoMining: true}, func(h *fork.Handle) error {
		if a.metrics != nil {
			a.metrics.ForksStarted.Inc()
		}
		client := a.newClient(h.EndpointURL)
		reader := snapshot.NewReader(client, exchangeAddr)

		market, err := reader.Market(ctx, call.PerpetualID)
		if err != nil {
			return err
		}
		result.MarketState = market

		pre, err := reader.Account(ctx, result.SubjectAccount, call.PerpetualID)
		if err != nil {
			return err
		}
		result.PreState = pre
		result.PostState = pre

		if err := client.ImpersonateAccount(ctx, tx.From); err != nil {
			return err
		}
		replayHash, err := client.SendTransaction(ctx, chain.CallMsg{
			From:  tx.From,
			To:    tx.To,
			Data:  tx.Input,
			Value: tx.Value,
		})
		if err != nil {
			if rev, ok := chain.AsRevert(err); ok {
				replayReason = rev.Reason
				logger.Info().Str("reason", rev.Reason).Msg("replay reverted at submit")
				return nil
			}
			return err
		}
		if err := chain.MineAndWait(ctx, client, h.WSEndpointURL); err != nil {
			return err
		}
		replayReceipt, err := client.WaitForReceipt(ctx, replayHash)
		if err != nil {
			return err
		}
		result.ReplaySuccess = replayReceipt.Status == 1
		result.ReplayEvents = decoder.Decode(replayReceipt.Logs)
		if a.metrics != nil {
			a.metrics.EventsDecoded.Add(float64(len(result.ReplayEvents)))
			a.metrics.LogsDropped.Add(float64(len(replayReceipt.Logs) - len(result.ReplayEvents)))
		}

		if result.ReplaySuccess {
			post, err := reader.Account(ctx, result.SubjectAccount, call.PerpetualID)
			if err != nil {
				return err
			}
			result.PostState = post
		}
		return nil
	})
	if err != nil {
		a.observe("forensics", "error", started)
		return nil, err
	}

	result.Matches = extractMatches(result.ReplayEvents)
	result.FillPrice = domain.VolumeWeightedPrice(result.Matches, result.MarketState.PriceDecimals)
	for _, m := range result.Matches {
		result.FilledLots += m.LotSize
	}

	if !result.LiveSuccess {
		failure := revert.Classify(replayReason)
		result.Failure = &failure
	}

	a.observe("forensics", "ok", started)
	return result, nil
}

// resolveSubject decides whose account the transaction acted on. A call
// routed through an account-proxy contract trades on the proxy's account;
// the probe read distinguishes a proxy from a direct exchange call.
func (a *Analyzer) resolveSubject(ctx context.Context, live chain.Client, tx *chain.Transaction, exchangeAddr string) (string, bool) {
	if strings.EqualFold(tx.To, exchangeAddr) {
		return tx.From, false
	}
	ret, err := live.CallContract(ctx, chain.CallMsg{
		To:   tx.To,
		Data: exchange.EncodeOwnerProbe(),
	}, "latest")
	if err != nil || len(ret) < 32 {
		return tx.From, false
	}
	return tx.To, true
}

// extractMatches pulls every fill event out of an ordered replay stream.
func extractMatches(stream []domain.DomainEvent) []domain.MatchRecord {
	var matches []domain.MatchRecord
	for _, ev := range stream {
		if ev.Name != domain.EventOrderMatched {
			continue
		}
		matches = append(matches, domain.MatchRecord{
			MakerAccount: ev.Args["maker"],
			MakerOrderID: events.Uint64Arg(ev, "makerOrderId"),
			Price:        events.Int64Arg(ev, "price"),
			LotSize:      events.Int64Arg(ev, "lotSize"),
			Fee:          events.Int64Arg(ev, "fee"),
		})
	}
	return matches
}

func (a *Analyzer) observe(kind, status string, started time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.SimulationsTotal.WithLabelValues(kind, status).Inc()
	a.metrics.SimulationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
