package strategy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/store/gormstore"
	"papertrade/internal/types"
)

// scriptedGenerator returns a fixed intent list, optionally after blocking
// until its context expires.
type scriptedGenerator struct {
	name    string
	intents []types.TradeIntent
	block   bool
}

func (g *scriptedGenerator) Name() string { return g.name }

func (g *scriptedGenerator) GenerateSignals(ctx context.Context, _ decimal.Decimal, _ map[string]any, _ MarketView) ([]types.TradeIntent, error) {
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.intents, nil
}

func newRunnerFixture(t *testing.T, gen SignalGenerator, capital int64) (*Runner, *ledger.Service, *market.MemorySource) {
	t.Helper()
	st, err := gormstore.NewGormStore(filepath.Join(t.TempDir(), "runner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := ledger.NewService(st, ledger.NewFixedRateCosts(decimal.Zero, decimal.Zero, decimal.Zero), ledger.NewKeyedMutex(), ledger.Options{})
	_, err = svc.InitAccount(context.Background(), "alice", decimal.NewFromInt(capital))
	require.NoError(t, err)

	registry := NewRegistry()
	registry.Register(gen)
	prices := market.NewMemorySource()
	return NewRunner(svc, registry, prices, []string{"AAA", "BBB"}, 100*time.Millisecond), svc, prices
}

func TestRunStrategyContinuesPastFailedIntents(t *testing.T) {
	gen := &scriptedGenerator{
		name: "scripted",
		intents: []types.TradeIntent{
			{Instrument: "GHOST", Side: types.TradeSideBuy, Quantity: decimal.NewFromInt(1)},
			{Instrument: "BBB", Side: types.TradeSideBuy, Quantity: decimal.NewFromInt(1000000)},
			{Instrument: "AAA", Side: types.TradeSideBuy, Quantity: decimal.NewFromInt(10)},
		},
	}
	runner, svc, prices := newRunnerFixture(t, gen, 10000)
	prices.SetLatest("AAA", decimal.NewFromInt(10))
	prices.SetLatest("BBB", decimal.NewFromInt(10))

	result, err := runner.RunStrategy(context.Background(), "alice", types.StrategyJob{Strategy: "scripted"})
	require.NoError(t, err)

	require.Len(t, result.Failed, 2)
	assert.Contains(t, result.Failed[0].Reason, "no quote")
	assert.Contains(t, result.Failed[1].Reason, "insufficient")
	require.Len(t, result.Executed, 1, "later intents run despite earlier failures")
	assert.Equal(t, "AAA", result.Executed[0].Intent.Instrument)

	positions, err := svc.GetPositions(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestRunStrategyHonorsAllocationCap(t *testing.T) {
	gen := &scriptedGenerator{
		name: "scripted",
		intents: []types.TradeIntent{
			{Instrument: "AAA", Side: types.TradeSideBuy, Quantity: decimal.NewFromInt(30)},
			{Instrument: "BBB", Side: types.TradeSideBuy, Quantity: decimal.NewFromInt(30)},
		},
	}
	runner, svc, prices := newRunnerFixture(t, gen, 100000)
	prices.SetLatest("AAA", decimal.NewFromInt(10))
	prices.SetLatest("BBB", decimal.NewFromInt(10))

	// The account could afford both buys; the job's 500 allocation cannot.
	job := types.StrategyJob{Strategy: "scripted", AllocatedCash: decimal.NewFromInt(500)}
	result, err := runner.RunStrategy(context.Background(), "alice", job)
	require.NoError(t, err)

	require.Len(t, result.Executed, 1)
	assert.Equal(t, "AAA", result.Executed[0].Intent.Instrument)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Reason, "allocation exhausted")

	// The cap is per run, not a reserved balance; account cash only reflects
	// the executed buy.
	account, err := svc.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, account.AvailableCash.Equal(decimal.NewFromInt(99700)), "got %s", account.AvailableCash)
}

func TestRunStrategyGeneratorTimeout(t *testing.T) {
	gen := &scriptedGenerator{name: "slow", block: true}
	runner, _, _ := newRunnerFixture(t, gen, 10000)

	_, err := runner.RunStrategy(context.Background(), "alice", types.StrategyJob{Strategy: "slow"})
	require.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestRunStrategyUnknownStrategy(t *testing.T) {
	gen := &scriptedGenerator{name: "scripted"}
	runner, _, _ := newRunnerFixture(t, gen, 10000)

	_, err := runner.RunStrategy(context.Background(), "alice", types.StrategyJob{Strategy: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestRunStrategyUnknownUser(t *testing.T) {
	gen := &scriptedGenerator{name: "scripted"}
	runner, _, _ := newRunnerFixture(t, gen, 10000)

	_, err := runner.RunStrategy(context.Background(), "ghost", types.StrategyJob{Strategy: "scripted"})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
