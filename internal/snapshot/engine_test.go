package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/ledger"
	"papertrade/internal/store/gormstore"
	"papertrade/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Service) {
	t.Helper()
	st, err := gormstore.NewGormStore(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	locks := ledger.NewKeyedMutex()
	svc := ledger.NewService(st, ledger.NewFixedRateCosts(decimal.Zero, decimal.Zero, decimal.Zero), locks, ledger.Options{})
	return NewEngine(st, locks), svc
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestCreateDailySnapshotIdempotent(t *testing.T) {
	engine, svc := newTestEngine(t)
	ctx := context.Background()
	_, err := svc.InitAccount(ctx, "alice", decimal.NewFromInt(3000000))
	require.NoError(t, err)

	first, err := engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-26"))
	require.NoError(t, err)
	assert.Equal(t, "2026-08-26", first.Date)

	// Re-snapshot the same day after more trading: one record, latest values.
	_, err = svc.ApplyTrade(ctx, "alice", "AAA", types.TradeSideBuy, decimal.NewFromInt(100), decimal.NewFromInt(10))
	require.NoError(t, err)
	second, err := engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-26"))
	require.NoError(t, err)

	all, err := engine.ListSnapshots(ctx, "alice", "", "")
	require.NoError(t, err)
	require.Len(t, all, 1, "same-day snapshot must overwrite, not duplicate")
	assert.True(t, all[0].TotalAssets.Equal(second.TotalAssets))
	assert.True(t, all[0].TotalMarketValue.Equal(decimal.NewFromInt(1000)))
}

func TestCreateDailySnapshotStaleWriteGuard(t *testing.T) {
	engine, svc := newTestEngine(t)
	ctx := context.Background()
	_, err := svc.InitAccount(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	_, err = engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-26"))
	require.NoError(t, err)

	// A delayed tick must not write an older date once a newer one exists.
	_, err = engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-25"))
	require.ErrorIs(t, err, ErrSnapshotConflict)

	all, err := engine.ListSnapshots(ctx, "alice", "", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2026-08-26", all[0].Date)
}

func TestCreateDailySnapshotUnknownUser(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateDailySnapshot(context.Background(), "ghost", day(t, "2026-08-26"))
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestComputeDailyReturn(t *testing.T) {
	engine, svc := newTestEngine(t)
	ctx := context.Background()
	_, err := svc.InitAccount(ctx, "alice", decimal.NewFromInt(3000000))
	require.NoError(t, err)

	_, err = engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-25"))
	require.NoError(t, err)

	// Simulate a 50,000 gain by buying and marking up.
	_, err = svc.ApplyTrade(ctx, "alice", "AAA", types.TradeSideBuy, decimal.NewFromInt(1000), decimal.NewFromInt(100))
	require.NoError(t, err)
	prices := stubPrices{"AAA": decimal.NewFromInt(150)}
	require.NoError(t, svc.RevaluePositions(ctx, "alice", prices))
	_, err = engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-26"))
	require.NoError(t, err)

	result, err := engine.ComputeDailyReturn(ctx, "alice", day(t, "2026-08-26"), day(t, "2026-08-25"))
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, "50000", result.Return.String())
	// 50000 / 3000000
	assert.True(t, result.Rate.Sub(decimal.NewFromFloat(0.0167)).Abs().LessThan(decimal.NewFromFloat(0.0001)),
		"rate %s", result.Rate)

	account, err := svc.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, account.DailyReturnValid)
	assert.Equal(t, "50000", account.DailyReturn.String())
}

func TestComputeDailyReturnMissingPrevious(t *testing.T) {
	engine, svc := newTestEngine(t)
	ctx := context.Background()
	_, err := svc.InitAccount(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = engine.CreateDailySnapshot(ctx, "alice", day(t, "2026-08-26"))
	require.NoError(t, err)

	result, err := engine.ComputeDailyReturn(ctx, "alice", day(t, "2026-08-26"), day(t, "2026-08-25"))
	require.NoError(t, err)
	assert.False(t, result.Valid, "missing previous snapshot means unavailable, not zero")

	// The account keeps its last-known daily return fields untouched.
	account, err := svc.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, account.DailyReturnValid)
}

func TestListSnapshotsRange(t *testing.T) {
	engine, svc := newTestEngine(t)
	ctx := context.Background()
	_, err := svc.InitAccount(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	for _, d := range []string{"2026-08-24", "2026-08-25", "2026-08-26"} {
		_, err := engine.CreateDailySnapshot(ctx, "alice", day(t, d))
		require.NoError(t, err)
	}
	got, err := engine.ListSnapshots(ctx, "alice", "2026-08-25", "2026-08-26")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-08-25", got[0].Date)
	assert.Equal(t, "2026-08-26", got[1].Date)
}

type stubPrices map[string]decimal.Decimal

func (s stubPrices) LatestPrice(_ context.Context, instrument string) (decimal.Decimal, error) {
	price, ok := s[instrument]
	if !ok {
		return decimal.Zero, assert.AnError
	}
	return price, nil
}
