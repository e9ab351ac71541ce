package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/store"
	"papertrade/internal/types"
)

// ErrSnapshotConflict reports a stale write: an attempt to write a snapshot
// for a date older than the newest one already stored for the user.
var ErrSnapshotConflict = errors.New("snapshot conflict")

// DailyReturn is the outcome of one return computation. Valid is false when
// the previous trading day has no snapshot; zero is a legitimate observed
// return and must not be conflated with "unknown".
type DailyReturn struct {
	Return decimal.Decimal
	Rate   decimal.Decimal
	Valid  bool
}

// Engine produces one immutable valuation snapshot per user per calendar day
// and computes day-over-day returns from the snapshot series. It shares the
// ledger's per-user lock domain so snapshot writes never interleave with
// trades or revaluations for the same user.
type Engine struct {
	store store.Store
	locks *ledger.KeyedMutex
	now   func() time.Time
}

func NewEngine(st store.Store, locks *ledger.KeyedMutex) *Engine {
	if locks == nil {
		locks = ledger.NewKeyedMutex()
	}
	return &Engine{store: st, locks: locks, now: time.Now}
}

// CreateDailySnapshot upserts the snapshot for (userID, date) from the
// account's current post-revaluation state. Calling it again before day
// rollover overwrites the same record. Writing a date older than the newest
// stored snapshot fails with ErrSnapshotConflict: a delayed tick must never
// clobber history.
func (e *Engine) CreateDailySnapshot(ctx context.Context, userID string, date time.Time) (*types.Snapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	day := types.SnapshotDate(date)
	unlock := e.locks.Lock(userID)
	defer unlock()

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ledger.ErrAccountNotFound)
	}

	latest, err := uow.Snapshots().LatestDate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest > day {
		return nil, fmt.Errorf("%w: user %s already has snapshot %s, refusing to write %s", ErrSnapshotConflict, userID, latest, day)
	}

	snap := &types.Snapshot{
		UserID:           userID,
		Date:             day,
		TotalAssets:      account.TotalAssets,
		TotalMarketValue: account.TotalMarketValue,
		AvailableCash:    account.AvailableCash,
		CreateTime:       e.now().UTC(),
	}
	if err := uow.Snapshots().Upsert(ctx, snap); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	logger.Debugf("snapshot: wrote user=%s date=%s assets=%s", userID, day, snap.TotalAssets)
	return snap, nil
}

// ComputeDailyReturn diffs today's snapshot against the previous trading
// day's and writes the result onto the account. When the previous snapshot is
// missing the account keeps its last known daily-return fields and the result
// is marked invalid.
func (e *Engine) ComputeDailyReturn(ctx context.Context, userID string, today, previousTradingDate time.Time) (DailyReturn, error) {
	if userID == "" {
		return DailyReturn{}, fmt.Errorf("user id is required")
	}
	todayKey := types.SnapshotDate(today)
	prevKey := types.SnapshotDate(previousTradingDate)

	unlock := e.locks.Lock(userID)
	defer unlock()

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return DailyReturn{}, err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().Get(ctx, userID)
	if err != nil {
		return DailyReturn{}, err
	}
	if account == nil {
		return DailyReturn{}, fmt.Errorf("user %s: %w", userID, ledger.ErrAccountNotFound)
	}

	current, err := uow.Snapshots().Get(ctx, userID, todayKey)
	if err != nil {
		return DailyReturn{}, err
	}
	if current == nil {
		return DailyReturn{}, fmt.Errorf("user %s has no snapshot for %s", userID, todayKey)
	}
	previous, err := uow.Snapshots().Get(ctx, userID, prevKey)
	if err != nil {
		return DailyReturn{}, err
	}
	if previous == nil {
		logger.Warnf("snapshot: user=%s missing previous snapshot %s, daily return unavailable", userID, prevKey)
		return DailyReturn{Valid: false}, nil
	}

	result := DailyReturn{
		Return: current.TotalAssets.Sub(previous.TotalAssets),
		Valid:  true,
	}
	if previous.TotalAssets.IsPositive() {
		result.Rate = result.Return.Div(previous.TotalAssets)
	}

	account.DailyReturn = result.Return
	account.DailyReturnRate = result.Rate
	account.DailyReturnValid = true
	account.LastUpdateTime = e.now().UTC()
	if err := uow.Accounts().Save(ctx, account); err != nil {
		return DailyReturn{}, err
	}
	if err := uow.Commit(); err != nil {
		return DailyReturn{}, err
	}
	return result, nil
}

// ListSnapshots returns the user's snapshots in [from, to], oldest first.
// Empty bounds are open.
func (e *Engine) ListSnapshots(ctx context.Context, userID, from, to string) ([]types.Snapshot, error) {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.Snapshots().ListRange(ctx, userID, from, to)
}
