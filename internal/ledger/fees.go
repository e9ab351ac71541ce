package ledger

import (
	"github.com/shopspring/decimal"

	"papertrade/internal/types"
)

// TradeCosts is the full transaction cost breakdown for one fill.
type TradeCosts struct {
	Commission decimal.Decimal
	StampTax   decimal.Decimal
	Slippage   decimal.Decimal
}

// Total is the sum of all cost components.
func (c TradeCosts) Total() decimal.Decimal {
	return c.Commission.Add(c.StampTax).Add(c.Slippage)
}

// CostModel prices the transaction costs of a fill from its side and notional.
type CostModel interface {
	Costs(side types.TradeSide, notional decimal.Decimal) TradeCosts
}

// FixedRateCosts charges each cost component as a flat rate on notional, with
// stamp tax on sells only. Rates are per-deployment constants from config.
type FixedRateCosts struct {
	CommissionRate decimal.Decimal
	StampTaxRate   decimal.Decimal
	SlippageRate   decimal.Decimal
}

func NewFixedRateCosts(commission, stampTax, slippage decimal.Decimal) FixedRateCosts {
	return FixedRateCosts{
		CommissionRate: commission,
		StampTaxRate:   stampTax,
		SlippageRate:   slippage,
	}
}

// Costs rounds each component to the cent so repeated fills accumulate the
// same totals the trade log records.
func (f FixedRateCosts) Costs(side types.TradeSide, notional decimal.Decimal) TradeCosts {
	costs := TradeCosts{
		Commission: notional.Mul(f.CommissionRate).Round(2),
		Slippage:   notional.Mul(f.SlippageRate).Round(2),
		StampTax:   decimal.Zero,
	}
	if side == types.TradeSideSell {
		costs.StampTax = notional.Mul(f.StampTaxRate).Round(2)
	}
	return costs
}

var _ CostModel = FixedRateCosts{}
