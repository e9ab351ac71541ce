package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is the per-user cash and valuation ledger.
//
// At rest, TotalAssets == AvailableCash + FrozenCash + TotalMarketValue and
// TotalReturn == TotalAssets - InitialCapital. Both hold to the cent after
// every completed mutation.
type Account struct {
	UserID           string
	InitialCapital   decimal.Decimal
	AvailableCash    decimal.Decimal
	FrozenCash       decimal.Decimal
	TotalMarketValue decimal.Decimal
	TotalAssets      decimal.Decimal
	TotalReturn      decimal.Decimal
	TotalReturnRate  decimal.Decimal
	DailyReturn      decimal.Decimal
	DailyReturnRate  decimal.Decimal
	// DailyReturnValid is false until a daily return has been computed against
	// an existing previous-day snapshot. A zero DailyReturn with the flag set
	// is a real observation, not a default.
	DailyReturnValid bool
	TradeCount       int64
	Status           AccountStatus
	CreateTime       time.Time
	LastUpdateTime   time.Time
}

// RecomputeTotals refreshes the derived valuation fields from the cash and
// market-value components.
func (a *Account) RecomputeTotals() {
	a.TotalAssets = a.AvailableCash.Add(a.FrozenCash).Add(a.TotalMarketValue)
	a.TotalReturn = a.TotalAssets.Sub(a.InitialCapital)
	if a.InitialCapital.IsPositive() {
		a.TotalReturnRate = a.TotalReturn.Div(a.InitialCapital)
	} else {
		a.TotalReturnRate = decimal.Zero
	}
}
