package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/store"
	"papertrade/internal/types"
)

func TestReconcileReplaysTradeLog(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.InitAccount(ctx, "alice", dec(t, "500000"))
	require.NoError(t, err)

	steps := []struct {
		instrument string
		side       types.TradeSide
		qty        string
		price      string
	}{
		{"AAA", types.TradeSideBuy, "1000", "10"},
		{"BBB", types.TradeSideBuy, "200", "55.5"},
		{"AAA", types.TradeSideSell, "400", "12"},
		{"AAA", types.TradeSideBuy, "100", "11.2"},
		{"BBB", types.TradeSideSell, "200", "60"},
	}
	for _, s := range steps {
		_, err := svc.ApplyTrade(ctx, "alice", s.instrument, s.side, dec(t, s.qty), dec(t, s.price))
		require.NoError(t, err)
	}

	report, err := svc.Reconcile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, report.Clean, "drift: cash=%s quantities=%v", report.CashDrift, report.QuantityDrift)
	assertDecimal(t, report.ExpectedCash.String(), report.ActualCash)

	// Replay by hand from the recorded fills and compare against the live
	// account, independent of the service's own replay.
	trades, err := svc.ListTrades(ctx, "alice", store.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, len(steps))
	cash := dec(t, "500000")
	for _, trade := range trades {
		cash = cash.Add(trade.CashDelta())
	}
	account, err := svc.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, cash.Equal(account.AvailableCash), "replayed %s, account has %s", cash, account.AvailableCash)
	assertInvariant(t, svc, "alice")
}

func TestReconcileUnknownUser(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Reconcile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrAccountNotFound)
}
