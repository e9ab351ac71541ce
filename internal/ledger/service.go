package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/logger"
	"papertrade/internal/store"
	"papertrade/internal/types"
)

// PriceLookup is the slice of the price source the ledger needs for
// revaluation.
type PriceLookup interface {
	LatestPrice(ctx context.Context, instrument string) (decimal.Decimal, error)
}

// Options tune service behavior beyond the cost model.
type Options struct {
	// PriceMissAlertCycles is how many consecutive revaluations an instrument
	// may miss a quote before a data-quality alert is logged. Zero disables
	// the alert.
	PriceMissAlertCycles int
}

// Service is the account ledger. Every mutating operation for a user runs
// under that user's lock and inside one store transaction, so cash, position
// and trade-log effects land together or not at all.
type Service struct {
	store store.Store
	costs CostModel
	locks *KeyedMutex
	opts  Options

	missMu     sync.Mutex
	missCounts map[string]int

	now   func() time.Time
	newID func() string
}

func NewService(st store.Store, costs CostModel, locks *KeyedMutex, opts Options) *Service {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Service{
		store:      st,
		costs:      costs,
		locks:      locks,
		opts:       opts,
		missCounts: make(map[string]int),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Locks exposes the per-user lock domain so the snapshot engine can serialize
// against ledger mutations.
func (s *Service) Locks() *KeyedMutex { return s.locks }

// InitAccount creates the account for userID if absent. Re-init of a funded
// account (one with recorded trades) fails with ErrAlreadyExists; re-init of
// an untouched account is a no-op returning the existing record.
func (s *Service) InitAccount(ctx context.Context, userID string, initialCapital decimal.Decimal) (*types.Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if initialCapital.IsNegative() {
		return nil, fmt.Errorf("initial capital cannot be negative")
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	existing, err := uow.Accounts().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.TradeCount > 0 {
			return nil, fmt.Errorf("user %s has %d recorded trades: %w", userID, existing.TradeCount, ErrAlreadyExists)
		}
		return existing, nil
	}

	now := s.now().UTC()
	account := &types.Account{
		UserID:         userID,
		InitialCapital: initialCapital,
		AvailableCash:  initialCapital,
		Status:         types.AccountStatusActive,
		CreateTime:     now,
		LastUpdateTime: now,
	}
	account.RecomputeTotals()
	if err := uow.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	logger.Infof("ledger: account initialized user=%s capital=%s", userID, initialCapital)
	return account, nil
}

// ApplyTrade executes one simulated fill atomically: cash movement, position
// update and trade-log append commit together. The fill price is the
// reference price; slippage is charged as a separate cost on notional.
func (s *Service) ApplyTrade(ctx context.Context, userID, instrument string, side types.TradeSide, quantity, referencePrice decimal.Decimal) (*types.Trade, error) {
	if userID == "" || instrument == "" {
		return nil, fmt.Errorf("user id and instrument are required")
	}
	if !side.Valid() {
		return nil, fmt.Errorf("invalid trade side %q", side)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	if !referencePrice.IsPositive() {
		return nil, fmt.Errorf("reference price must be positive, got %s", referencePrice)
	}
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
	if account.Status == types.AccountStatusClosed {
		return nil, fmt.Errorf("user %s: %w", userID, ErrAccountClosed)
	}

	notional := referencePrice.Mul(quantity)
	costs := s.costs.Costs(side, notional)
	now := s.now().UTC()

	trade := &types.Trade{
		ID:         s.newID(),
		UserID:     userID,
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		FillPrice:  referencePrice,
		Commission: costs.Commission,
		StampTax:   costs.StampTax,
		Slippage:   costs.Slippage,
		Timestamp:  now,
	}

	switch side {
	case types.TradeSideBuy:
		if err := s.applyBuy(ctx, uow, account, trade, now); err != nil {
			return nil, err
		}
	case types.TradeSideSell:
		if err := s.applySell(ctx, uow, account, trade, now); err != nil {
			return nil, err
		}
	}

	if err := uow.Trades().Insert(ctx, trade); err != nil {
		return nil, err
	}
	account.TradeCount++

	marketValue, err := sumMarketValue(ctx, uow, userID)
	if err != nil {
		return nil, err
	}
	account.TotalMarketValue = marketValue
	account.RecomputeTotals()
	account.LastUpdateTime = now
	if err := uow.Accounts().Save(ctx, account); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	logger.Infof("ledger: trade applied user=%s %s %s x%s @%s fees=%s",
		userID, side, instrument, quantity, referencePrice, trade.Fees())
	return trade, nil
}

func (s *Service) applyBuy(ctx context.Context, uow store.UnitOfWork, account *types.Account, trade *types.Trade, now time.Time) error {
	needed := trade.Notional().Add(trade.Fees())
	if account.AvailableCash.LessThan(needed) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, needed, account.AvailableCash)
	}
	account.AvailableCash = account.AvailableCash.Sub(needed)

	position, err := uow.Positions().Get(ctx, account.UserID, trade.Instrument)
	if err != nil {
		return err
	}
	if position == nil {
		position = &types.Position{
			UserID:     account.UserID,
			Instrument: trade.Instrument,
			CreateTime: now,
		}
	}
	// new_avg = (old_qty*old_avg + buy_qty*fill + buy_fees) / (old_qty+buy_qty)
	oldCost := position.Quantity.Mul(position.AvgCost)
	newQty := position.Quantity.Add(trade.Quantity)
	position.AvgCost = oldCost.Add(trade.Notional()).Add(trade.Fees()).Div(newQty)
	position.Quantity = newQty
	position.Revalue(trade.FillPrice)
	position.LastUpdateTime = now
	return uow.Positions().Save(ctx, position)
}

func (s *Service) applySell(ctx context.Context, uow store.UnitOfWork, account *types.Account, trade *types.Trade, now time.Time) error {
	position, err := uow.Positions().Get(ctx, account.UserID, trade.Instrument)
	if err != nil {
		return err
	}
	held := decimal.Zero
	if position != nil {
		held = position.Quantity
	}
	if held.LessThan(trade.Quantity) {
		return fmt.Errorf("%w: want to sell %s %s, hold %s", ErrInsufficientPosition, trade.Quantity, trade.Instrument, held)
	}
	account.AvailableCash = account.AvailableCash.Add(trade.Notional().Sub(trade.Fees()))

	remaining := held.Sub(trade.Quantity)
	if remaining.IsZero() {
		return uow.Positions().Delete(ctx, account.UserID, trade.Instrument)
	}
	// Sells never move the average cost.
	position.Quantity = remaining
	position.Revalue(trade.FillPrice)
	position.LastUpdateTime = now
	return uow.Positions().Save(ctx, position)
}

// RevaluePositions refreshes every held position from the price lookup and
// recomputes the account totals. A missing quote keeps the last known price
// and never fails the whole revaluation; quotes missing for more consecutive
// calls than the configured threshold raise a data-quality alert in the log.
func (s *Service) RevaluePositions(ctx context.Context, userID string, lookup PriceLookup) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().Get(ctx, userID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("user %s: %w", userID, ErrAccountNotFound)
	}
	positions, err := uow.Positions().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	total := decimal.Zero
	for i := range positions {
		position := &positions[i]
		price, err := lookup.LatestPrice(ctx, position.Instrument)
		if err != nil {
			// Keep the last known price; revaluation must not fail on one
			// stale instrument.
			s.recordPriceMiss(userID, position.Instrument, err)
			total = total.Add(position.MarketValue)
			continue
		}
		s.clearPriceMiss(userID, position.Instrument)
		position.Revalue(price)
		position.LastUpdateTime = now
		if err := uow.Positions().Save(ctx, position); err != nil {
			return err
		}
		total = total.Add(position.MarketValue)
	}

	account.TotalMarketValue = total
	account.RecomputeTotals()
	account.LastUpdateTime = now
	if err := uow.Accounts().Save(ctx, account); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *Service) recordPriceMiss(userID, instrument string, cause error) {
	logger.Debugf("ledger: no quote for %s (user=%s), keeping last price: %v", instrument, userID, cause)
	if s.opts.PriceMissAlertCycles <= 0 {
		return
	}
	key := userID + "|" + instrument
	s.missMu.Lock()
	s.missCounts[key]++
	count := s.missCounts[key]
	s.missMu.Unlock()
	if count == s.opts.PriceMissAlertCycles {
		logger.Errorf("ledger: data-quality alert: no quote for %s (user=%s) in %d consecutive revaluations", instrument, userID, count)
	}
}

func (s *Service) clearPriceMiss(userID, instrument string) {
	s.missMu.Lock()
	delete(s.missCounts, userID+"|"+instrument)
	s.missMu.Unlock()
}

// CloseAccount marks the account closed. Accounts are never hard-deleted.
func (s *Service) CloseAccount(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().Get(ctx, userID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("user %s: %w", userID, ErrAccountNotFound)
	}
	if account.Status == types.AccountStatusClosed {
		return uow.Commit()
	}
	account.Status = types.AccountStatusClosed
	account.LastUpdateTime = s.now().UTC()
	if err := uow.Accounts().Save(ctx, account); err != nil {
		return err
	}
	return uow.Commit()
}

// GetAccount returns the last committed account state.
func (s *Service) GetAccount(ctx context.Context, userID string) (*types.Account, error) {
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
	return account, nil
}

// ListActiveAccounts returns all accounts the scheduler should process.
func (s *Service) ListActiveAccounts(ctx context.Context) ([]types.Account, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.Accounts().ListActive(ctx)
}

// GetPositions returns the user's current holdings.
func (s *Service) GetPositions(ctx context.Context, userID string) ([]types.Position, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.Positions().ListByUser(ctx, userID)
}

// ListTrades returns the user's trade log, oldest first.
func (s *Service) ListTrades(ctx context.Context, userID string, filter store.TradeFilter) ([]types.Trade, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.Trades().ListByUser(ctx, userID, filter)
}

func sumMarketValue(ctx context.Context, uow store.UnitOfWork, userID string) (decimal.Decimal, error) {
	positions, err := uow.Positions().ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.MarketValue)
	}
	return total, nil
}

// IsNotFound reports whether err is the account-missing case.
func IsNotFound(err error) bool { return errors.Is(err, ErrAccountNotFound) }
