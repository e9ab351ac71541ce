package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// Trade is one executed fill. Trades form an append-only audit log: once
// recorded they are never mutated or deleted, and replaying a user's trades
// from their initial capital reproduces the account's cash and positions.
type Trade struct {
	ID         string
	UserID     string
	Instrument string
	Side       TradeSide
	Quantity   decimal.Decimal
	FillPrice  decimal.Decimal
	Commission decimal.Decimal
	StampTax   decimal.Decimal
	Slippage   decimal.Decimal
	Timestamp  time.Time
}

// Notional is fill price times quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.FillPrice.Mul(t.Quantity)
}

// Fees is the sum of all transaction costs on the fill.
func (t Trade) Fees() decimal.Decimal {
	return t.Commission.Add(t.StampTax).Add(t.Slippage)
}

// CashDelta is the signed effect of the trade on available cash: negative for
// buys (notional plus fees leave the account), positive for sells (notional
// minus fees come in).
func (t Trade) CashDelta() decimal.Decimal {
	if t.Side == TradeSideBuy {
		return t.Notional().Add(t.Fees()).Neg()
	}
	return t.Notional().Sub(t.Fees())
}
