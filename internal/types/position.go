package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a per-user, per-instrument holding with weighted-average cost.
// Quantity never goes negative; a fully liquidated position is deleted rather
// than kept at zero.
type Position struct {
	UserID            string
	Instrument        string
	Quantity          decimal.Decimal
	AvgCost           decimal.Decimal
	CurrentPrice      decimal.Decimal
	MarketValue       decimal.Decimal
	UnrealizedPnL     decimal.Decimal
	UnrealizedPnLRate decimal.Decimal
	CreateTime        time.Time
	LastUpdateTime    time.Time
}

// Revalue updates the mark price and the derived market value and P&L fields.
func (p *Position) Revalue(price decimal.Decimal) {
	p.CurrentPrice = price
	p.MarketValue = p.Quantity.Mul(price)
	cost := p.Quantity.Mul(p.AvgCost)
	p.UnrealizedPnL = p.MarketValue.Sub(cost)
	if cost.IsPositive() {
		p.UnrealizedPnLRate = p.UnrealizedPnL.Div(cost)
	} else {
		p.UnrealizedPnLRate = decimal.Zero
	}
}
