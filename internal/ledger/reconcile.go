package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"papertrade/internal/store"
	"papertrade/internal/types"
)

// Epsilon is the tolerance for monetary comparisons across the ledger.
var Epsilon = decimal.NewFromFloat(0.01)

// ReconcileReport compares the live account state against a replay of the
// trade log from initial capital.
type ReconcileReport struct {
	UserID       string
	ExpectedCash decimal.Decimal
	ActualCash   decimal.Decimal
	CashDrift    decimal.Decimal
	// QuantityDrift maps instrument to replayed-minus-actual quantity for any
	// instrument whose holdings disagree. Empty when positions reconcile.
	QuantityDrift map[string]decimal.Decimal
	Clean         bool
}

// Reconcile replays the user's full trade log in timestamp order and checks
// that it reproduces the current available cash and position quantities. The
// trade log is append-only, so a drift here means ledger state was mutated
// outside ApplyTrade.
func (s *Service) Reconcile(ctx context.Context, userID string) (*ReconcileReport, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrAccountNotFound)
	}
	trades, err := uow.Trades().ListByUser(ctx, userID, store.TradeFilter{})
	if err != nil {
		return nil, err
	}
	positions, err := uow.Positions().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cash := account.InitialCapital
	quantities := make(map[string]decimal.Decimal)
	for _, t := range trades {
		cash = cash.Add(t.CashDelta())
		if t.Side == types.TradeSideBuy {
			quantities[t.Instrument] = quantities[t.Instrument].Add(t.Quantity)
		} else {
			quantities[t.Instrument] = quantities[t.Instrument].Sub(t.Quantity)
		}
	}

	report := &ReconcileReport{
		UserID:        userID,
		ExpectedCash:  cash,
		ActualCash:    account.AvailableCash,
		CashDrift:     cash.Sub(account.AvailableCash),
		QuantityDrift: make(map[string]decimal.Decimal),
	}
	held := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		held[p.Instrument] = p.Quantity
	}
	for instrument, want := range quantities {
		if diff := want.Sub(held[instrument]); !diff.IsZero() {
			report.QuantityDrift[instrument] = diff
		}
		delete(held, instrument)
	}
	for instrument, quantity := range held {
		// Position exists with no trade history behind it.
		report.QuantityDrift[instrument] = quantity.Neg()
	}
	report.Clean = report.CashDrift.Abs().LessThanOrEqual(Epsilon) && len(report.QuantityDrift) == 0
	return report, nil
}
