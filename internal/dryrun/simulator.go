// Package dryrun rehearses a single order before it is sent for real. The
// cheap half asks the live endpoint what would happen; the expensive half,
// available only when fork tooling is installed, executes the order on a
// disposable fork and diffs account state around it.
package dryrun

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"perpsim/internal/chain"
	"perpsim/internal/domain"
	"perpsim/internal/events"
	"perpsim/internal/exchange"
	"perpsim/internal/fork"
	"perpsim/internal/observability"
	"perpsim/internal/snapshot"
)

// Options configure a Simulator.
type Options struct {
	// Client talks to the live endpoint.
	Client chain.Client
	// ForkManager provides ephemeral forks; its Installed() gates the
	// fork half of every run.
	ForkManager fork.Manager
	// LiveRPCURL is the endpoint forks are created from.
	LiveRPCURL string
	// ExchangeAddr is the exchange contract address.
	ExchangeAddr string
	// NewForkClient builds a client for a fork endpoint. Defaults to the
	// production HTTP client; tests substitute a stub.
	NewForkClient func(endpoint string) chain.Client
	// Logger defaults to a component logger on stderr.
	Logger *zerolog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// Simulator runs single-order dry runs.
type Simulator struct {
	client        chain.Client
	forkMgr       fork.Manager
	liveRPCURL    string
	exchangeAddr  string
	newForkClient func(endpoint string) chain.Client
	logger        zerolog.Logger
	metrics       *observability.Metrics
}

// New creates a Simulator.
func New(opts Options) *Simulator {
	logger := observability.NewLogger("dryrun")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	newForkClient := opts.NewForkClient
	if newForkClient == nil {
		newForkClient = func(endpoint string) chain.Client {
			return chain.NewHTTPClient(endpoint)
		}
	}
	return &Simulator{
		client:        opts.Client,
		forkMgr:       opts.ForkManager,
		liveRPCURL:    opts.LiveRPCURL,
		exchangeAddr:  opts.ExchangeAddr,
		newForkClient: newForkClient,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Run rehearses one order for account. The estimate half always completes
// or errors; the fork half is best-effort and its failure only drops the
// Fork section. A revert during either half is a result, never an error.
func (s *Simulator) Run(ctx context.Context, account string, order domain.OrderDescriptor) (*domain.DryRunResult, error) {
	started := time.Now()
	result := &domain.DryRunResult{
		RunID: uuid.NewString(),
		Order: order,
	}
	logger := s.logger.With().Str("run_id", result.RunID).Logger()

	calldata := exchange.EncodeSubmitOrder(order)
	msg := chain.CallMsg{From: account, To: s.exchangeAddr, Data: calldata}

	sim, err := s.estimate(ctx, msg)
	if err != nil {
		s.observe("dryrun", "error", started)
		return nil, err
	}
	result.Simulate = sim
	logger.Info().
		Bool("success", sim.Success).
		Uint64("order_id", sim.OrderID).
		Uint64("gas_estimate", sim.GasEstimate).
		Msg("estimate complete")

	if !s.forkMgr.Installed() {
		logger.Info().Msg("fork tooling not installed, skipping fork section")
		s.observe("dryrun", "ok", started)
		return result, nil
	}

	forkSection, err := s.runOnFork(ctx, logger, account, order, msg)
	if err != nil {
		// Degraded run: the estimate half stands on its own.
		logger.Warn().Err(err).Msg("fork section failed, returning estimate only")
		s.observe("dryrun", "degraded", started)
		return result, nil
	}
	result.Fork = forkSection
	s.observe("dryrun", "ok", started)
	return result, nil
}

// estimate performs the side-effect-free half against the live endpoint.
func (s *Simulator) estimate(ctx context.Context, msg chain.CallMsg) (domain.SimulateSection, error) {
	ret, err := s.client.CallContract(ctx, msg, "latest")
	if err != nil {
		if rev, ok := chain.AsRevert(err); ok {
			return domain.SimulateSection{Success: false, RevertReason: rev.Reason}, nil
		}
		return domain.SimulateSection{}, err
	}

	sim := domain.SimulateSection{
		Success: true,
		OrderID: exchange.ParseSubmitOrderReturn(ret),
	}
	gas, err := s.client.EstimateGas(ctx, msg)
	if err != nil {
		if rev, ok := chain.AsRevert(err); ok {
			// eth_call passed but estimation reverted; trust the revert.
			return domain.SimulateSection{Success: false, RevertReason: rev.Reason}, nil
		}
		return domain.SimulateSection{}, err
	}
	sim.GasEstimate = gas
	return sim, nil
}

func (s *Simulator) runOnFork(ctx context.Context, logger zerolog.Logger, account string, order domain.OrderDescriptor, msg chain.CallMsg) (*domain.ForkSection, error) {
	var section *domain.ForkSection

	forkStart := time.Now()
	err := fork.WithFork(ctx, s.forkMgr, s.liveRPCURL, fork.StartOptions{NoMining: true}, func(h *fork.Handle) error {
		if s.metrics != nil {
			s.metrics.ForksStarted.Inc()
			s.metrics.ForkStartDuration.Observe(time.Since(forkStart).Seconds())
		}

		client := s.newForkClient(h.EndpointURL)
		reader := snapshot.NewReader(client, s.exchangeAddr)

		if err := client.ImpersonateAccount(ctx, account); err != nil {
			return err
		}
		pre, err := reader.Account(ctx, account, order.PerpetualID)
		if err != nil {
			return err
		}

		txHash, err := client.SendTransaction(ctx, msg)
		if err != nil {
			if rev, ok := chain.AsRevert(err); ok {
				// The node rejected the call outright. Report the fork half
				// with identical pre and post state.
				logger.Info().Str("reason", rev.Reason).Msg("fork execution reverted at submit")
				section = &domain.ForkSection{PreState: pre, PostState: pre}
				return nil
			}
			return err
		}
		if err := chain.MineAndWait(ctx, client, h.WSEndpointURL); err != nil {
			return err
		}
		receipt, err := client.WaitForReceipt(ctx, txHash)
		if err != nil {
			return err
		}

		decoder := events.NewDecoder(s.exchangeAddr)
		decoded := decoder.Decode(receipt.Logs)
		s.countEvents(len(receipt.Logs), len(decoded))

		post, err := reader.Account(ctx, account, order.PerpetualID)
		if err != nil {
			return err
		}
		section = &domain.ForkSection{
			TxHash:    receipt.TxHash,
			GasUsed:   receipt.GasUsed,
			GasPrice:  receipt.EffectiveGasPrice,
			PreState:  pre,
			PostState: post,
			Events:    decoded,
		}
		if market, err := reader.Market(ctx, order.PerpetualID); err == nil {
			section.MarketState = &market
		} else {
			logger.Warn().Err(err).Msg("market state read failed on fork")
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.ForkStartFailures.WithLabelValues(failureReason(err)).Inc()
		}
		return nil, err
	}
	return section, nil
}

func (s *Simulator) observe(kind, status string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SimulationsTotal.WithLabelValues(kind, status).Inc()
	s.metrics.SimulationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (s *Simulator) countEvents(logs, decoded int) {
	if s.metrics == nil {
		return
	}
	s.metrics.EventsDecoded.Add(float64(decoded))
	s.metrics.LogsDropped.Add(float64(logs - decoded))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, fork.ErrToolingUnavailable):
		return "unavailable"
	case errors.Is(err, fork.ErrStartTimeout):
		return "timeout"
	default:
		return "other"
	}
}
