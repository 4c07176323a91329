package domain

import "github.com/shopspring/decimal"

// SimulateSection is the cheap estimate-call half of a dry run.
type SimulateSection struct {
	Success      bool
	OrderID      uint64 // id the order would rest under, 0 if it would not rest
	GasEstimate  uint64
	RevertReason string // empty on success
}

// ForkSection is the optional forked-execution half of a dry run.
// Present only when fork tooling is installed and the fork run completed.
type ForkSection struct {
	TxHash      string
	GasUsed     uint64
	GasPrice    uint64 // wei
	PreState    AccountSnapshot
	PostState   AccountSnapshot
	Events      []DomainEvent
	MarketState *MarketState
}

// DryRunResult is the materialized outcome of a single-order dry run.
type DryRunResult struct {
	RunID    string
	Order    OrderDescriptor
	Simulate SimulateSection
	Fork     *ForkSection // nil when fork tooling is unavailable or degraded
}

// CallDescription is a forensics decoding of transaction calldata.
type CallDescription struct {
	Method      string
	Orders      []OrderDescriptor // populated for order-submission calls
	PerpetualID uint32
	// PerpetualIDFromEvents marks that the id could not be read from the
	// calldata and was recovered from the first order-request event instead.
	PerpetualIDFromEvents bool
}

// FailureExplanation is the classified human reading of a revert reason.
type FailureExplanation struct {
	RawReason         string
	Explanation       string
	Suggestion        string
	IsMatchingFailure bool
}

// ForensicsResult explains a transaction that already happened: the live
// outcome plus a replay of the identical call on a fork at the prior block.
type ForensicsResult struct {
	RunID          string
	TxHash         string
	Sender         string
	SubjectAccount string
	ViaProxy       bool
	Call           CallDescription

	LiveSuccess  bool
	LiveGasUsed  uint64
	LiveGasPrice uint64
	LiveEvents   []DomainEvent

	ReplaySuccess bool
	ReplayEvents  []DomainEvent
	PreState      AccountSnapshot
	PostState     AccountSnapshot
	MarketState   MarketState

	Matches    []MatchRecord
	FillPrice  *decimal.Decimal // VWAP in human units, nil without matches
	FilledLots int64
	Failure    *FailureExplanation // nil when the live call succeeded
}

// BatchAggregates summarizes all outcomes of one strategy batch.
type BatchAggregates struct {
	Total      int
	Filled     int
	Resting    int
	Failed     int
	FilledLots int64
	TotalFees  int64
}

// DerivedMetrics are strategy-specific figures supplied by the generator.
type DerivedMetrics struct {
	CapitalRequired decimal.Decimal
	BreakEvenPrice  decimal.Decimal
	GridSpacing     decimal.Decimal
	QuotedSpreadPct decimal.Decimal
}

// StrategyBatchResult is the materialized outcome of an atomic multi-order
// batch executed on a fork.
type StrategyBatchResult struct {
	RunID      string
	Strategy   string
	Orders     []OrderDescriptor
	Outcomes   []OrderOutcome
	Aggregates BatchAggregates
	Metrics    DerivedMetrics

	// Submitted reports whether the batch transaction executed on the fork.
	// When false the whole submission reverted, every outcome is FAILED,
	// and Failure explains why.
	Submitted bool
	Failure   *FailureExplanation // nil when the batch executed

	TxHash    string
	GasUsed   uint64
	GasPrice  uint64
	PreState  AccountSnapshot
	PostState AccountSnapshot
	Market    MarketState
	Fees      FeeSchedule
}
