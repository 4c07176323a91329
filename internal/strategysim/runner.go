package strategysim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
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
	"perpsim/internal/strategy"
)

// ErrNoOrders is returned when the strategy generator produces an empty
// order list; there is nothing to simulate.
var ErrNoOrders = errors.New("strategy generated no orders")

// contractGasFunding is the native balance granted to a gasless contract
// account on the fork so its batch call can execute. Fork-only money.
var contractGasFunding = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))

// EnvConfig is the environment one batch run executes against.
type EnvConfig struct {
	LiveRPCURL   string
	ExchangeAddr string
	// Account is the subject account the batch is submitted from.
	Account string
	// PerpetualID selects the market the strategy trades.
	PerpetualID uint32
}

// Options configure a Runner.
type Options struct {
	ForkManager fork.Manager
	// NewForkClient builds a client for a fork endpoint. Defaults to the
	// production HTTP client; tests substitute a stub.
	NewForkClient func(endpoint string) chain.Client
	Logger        *zerolog.Logger
	Metrics       *observability.Metrics
}

// Runner executes strategy batches.
type Runner struct {
	forkMgr       fork.Manager
	newForkClient func(endpoint string) chain.Client
	logger        zerolog.Logger
	metrics       *observability.Metrics
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	logger := observability.NewLogger("strategysim")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	newForkClient := opts.NewForkClient
	if newForkClient == nil {
		newForkClient = func(endpoint string) chain.Client {
			return chain.NewHTTPClient(endpoint)
		}
	}
	return &Runner{
		forkMgr:       opts.ForkManager,
		newForkClient: newForkClient,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Run generates the order list for cfg against the forked market, submits
// it as one atomic continue-on-failure batch, and classifies every order.
// The whole batch lives and dies on one fork; nothing touches the live
// chain.
func (r *Runner) Run(ctx context.Context, env EnvConfig, cfg strategy.Config) (*domain.StrategyBatchResult, error) {
	started := time.Now()
	result := &domain.StrategyBatchResult{RunID: uuid.NewString()}
	logger := r.logger.With().Str("run_id", result.RunID).Str("strategy", cfg.Type).Logger()

	err := fork.WithFork(ctx, r.forkMgr, env.LiveRPCURL, fork.StartOptions{NoMining: true}, func(h *fork.Handle) error {
		if r.metrics != nil {
			r.metrics.ForksStarted.Inc()
		}
		client := r.newForkClient(h.EndpointURL)
		reader := snapshot.NewReader(client, env.ExchangeAddr)

		head, err := client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		cfg.HeadBlock = head

		market, err := reader.Market(ctx, env.PerpetualID)
		if err != nil {
			return err
		}
		fees, err := reader.Fees(ctx, env.PerpetualID)
		if err != nil {
			return err
		}
		result.Market = market
		result.Fees = fees

		if err := client.ImpersonateAccount(ctx, env.Account); err != nil {
			return err
		}
		pre, err := reader.Account(ctx, env.Account, env.PerpetualID)
		if err != nil {
			return err
		}
		result.PreState = pre

		gen, err := strategy.FromConfig(cfg)
		if err != nil {
			return err
		}
		orders, err := gen.Generate(cfg, market)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return fmt.Errorf("%w: %s", ErrNoOrders, cfg.Type)
		}
		result.Strategy = gen.Name()
		result.Orders = orders
		result.Metrics = gen.Metrics(cfg, orders, market)
		logger.Info().Int("orders", len(orders)).Uint64("head", head).Msg("batch generated")

		if err := r.fundContractAccount(ctx, client, env.Account, pre); err != nil {
			return err
		}

		calldata := exchange.EncodeSubmitOrders(orders, true)
		txHash, err := client.SendTransaction(ctx, chain.CallMsg{
			From: env.Account,
			To:   env.ExchangeAddr,
			Data: calldata,
		})
		if err != nil {
			// A revert of the whole batch is a simulated outcome, not an
			// engine failure: materialize it with every order failed.
			if rev, ok := chain.AsRevert(err); ok {
				failBatch(result, orders, rev.Reason)
				logger.Warn().Str("reason", rev.Reason).Msg("batch submission reverted")
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
		result.TxHash = receipt.TxHash
		result.GasUsed = receipt.GasUsed
		result.GasPrice = receipt.EffectiveGasPrice

		if receipt.Status != 1 {
			// Mined but reverted. The receipt carries no reason string.
			failBatch(result, orders, "")
			logger.Warn().Str("tx", receipt.TxHash).Msg("batch transaction reverted on fork")
			return nil
		}
		result.Submitted = true

		decoded := events.NewDecoder(env.ExchangeAddr).Decode(receipt.Logs)
		if r.metrics != nil {
			r.metrics.EventsDecoded.Add(float64(len(decoded)))
			r.metrics.LogsDropped.Add(float64(len(receipt.Logs) - len(decoded)))
		}

		post, err := reader.Account(ctx, env.Account, env.PerpetualID)
		if err != nil {
			return err
		}
		result.PostState = post

		result.Outcomes = MapOutcomes(decoded, orders, market.PriceDecimals)
		result.Aggregates = Aggregate(result.Outcomes)
		logger.Info().
			Int("filled", result.Aggregates.Filled).
			Int("resting", result.Aggregates.Resting).
			Int("failed", result.Aggregates.Failed).
			Msg("batch classified")
		return nil
	})
	if err != nil {
		r.observe("strategysim", "error", started)
		return nil, err
	}
	r.observe("strategysim", "ok", started)
	return result, nil
}

// failBatch materializes a batch whose submission reverted: every order is
// classified failed, state is unchanged, and the classified reason goes on
// the result.
func failBatch(result *domain.StrategyBatchResult, orders []domain.OrderDescriptor, reason string) {
	failure := revert.Classify(reason)
	if reason == "" {
		failure.Explanation = "The batch transaction reverted without a reason string."
		failure.Suggestion = "Replay the batch through the forensics analyzer for a decoded reason."
	}
	result.Failure = &failure
	result.PostState = result.PreState

	outcomes := make([]domain.OrderOutcome, len(orders))
	for i, o := range orders {
		outcomes[i] = domain.OrderOutcome{
			Index:     i,
			OrderType: o.OrderType,
			Price:     o.Price,
			LotSize:   o.LotSize,
			Status:    domain.StatusFailed,
		}
	}
	result.Outcomes = outcomes
	result.Aggregates = Aggregate(outcomes)
}

// fundContractAccount grants gas money to a contract account that has
// none. Only ever called against a fork endpoint.
func (r *Runner) fundContractAccount(ctx context.Context, client chain.Client, account string, pre domain.AccountSnapshot) error {
	if pre.NativeGasBalance != nil && pre.NativeGasBalance.Sign() > 0 {
		return nil
	}
	code, err := client.CodeAt(ctx, account)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return nil
	}
	r.logger.Info().Str("account", account).Msg("funding gasless contract account on fork")
	return client.SetBalance(ctx, account, contractGasFunding)
}

func (r *Runner) observe(kind, status string, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.SimulationsTotal.WithLabelValues(kind, status).Inc()
	r.metrics.SimulationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
