package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyJob authorizes the strategy runner to trade against a user's
// account. AllocatedCash is advisory bookkeeping: multiple jobs share the
// account's single cash pool, the runner only caps one run's spend at the
// allocation.
type StrategyJob struct {
	UserID        string
	Strategy      string
	IsActive      bool
	AllocatedCash decimal.Decimal
	Params        map[string]any
	NextRunTime   time.Time
}

// TradeIntent is one buy/sell instruction produced by a signal generator.
type TradeIntent struct {
	Instrument string
	Side       TradeSide
	Quantity   decimal.Decimal
	Rationale  string
}
