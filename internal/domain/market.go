package domain

// MarketState is one perpetual market's state, re-read fresh on every run.
// Never cached across runs.
type MarketState struct {
	PerpetualID       uint32
	Symbol            string
	PriceDecimals     int32
	LotDecimals       int32
	MarkPrice         int64 // fixed-point, price decimals
	OraclePrice       int64 // fixed-point, price decimals
	LongOpenInterest  int64 // fixed-point, lot decimals
	ShortOpenInterest int64 // fixed-point, lot decimals
	FundingRateRaw    int64 // per-hour rate, 1e8 scale, signed
	Paused            bool
	BestBid           int64 // fixed-point, 0 when the book side is empty
	BestAsk           int64 // fixed-point, 0 when the book side is empty
	RestingOrderCount uint32
}

// FeeSchedule is the taker/maker fee pair for one perpetual,
// expressed in basis points.
type FeeSchedule struct {
	TakerBps int64
	MakerBps int64
}

// FundingRateScale is the fixed scale of MarketState.FundingRateRaw:
// raw 100_000_000 == 100% per hour.
const FundingRateScale = 100_000_000
