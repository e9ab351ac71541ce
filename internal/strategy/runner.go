package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/market"
	"papertrade/internal/types"
)

// ErrUpstreamTimeout reports a signal generator that exceeded its time budget.
var ErrUpstreamTimeout = errors.New("signal generator timed out")

// ExecutedIntent pairs an intent with the trade it produced.
type ExecutedIntent struct {
	Intent types.TradeIntent
	Trade  *types.Trade
}

// FailedIntent records why an intent was not executed. One failed intent
// never cancels the remaining ones.
type FailedIntent struct {
	Intent types.TradeIntent
	Reason string
}

// RunResult aggregates a single strategy run.
type RunResult struct {
	UserID   string
	Strategy string
	Executed []ExecutedIntent
	Failed   []FailedIntent
}

// Runner turns a strategy's signals into ledger trades.
type Runner struct {
	ledger      *ledger.Service
	registry    *Registry
	prices      market.PriceSource
	instruments []string
	timeout     time.Duration
}

func NewRunner(ledgerSvc *ledger.Service, registry *Registry, prices market.PriceSource, instruments []string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		ledger:      ledgerSvc,
		registry:    registry,
		prices:      prices,
		instruments: instruments,
		timeout:     timeout,
	}
}

// RunStrategy calls the job's signal generator under a deadline and applies
// each returned intent through the ledger. Per-intent failures (insufficient
// funds, missing quote, allocation exhausted) are collected and the run
// continues.
//
// AllocatedCash is an advisory cap on this run's buy spend; all jobs still
// draw from the account's single shared cash pool and the ledger enforces
// only the real balance.
func (r *Runner) RunStrategy(ctx context.Context, userID string, job types.StrategyJob) (*RunResult, error) {
	generator, err := r.registry.Get(job.Strategy)
	if err != nil {
		return nil, err
	}
	account, err := r.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	positions, err := r.ledger.GetPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		holdings[p.Instrument] = p.Quantity
	}

	budget := account.AvailableCash
	if job.AllocatedCash.IsPositive() && job.AllocatedCash.LessThan(budget) {
		budget = job.AllocatedCash
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	intents, err := generator.GenerateSignals(genCtx, budget, job.Params, MarketView{
		Prices:      r.prices,
		Instruments: r.instruments,
		Holdings:    holdings,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("strategy %s for user %s: %w", job.Strategy, userID, ErrUpstreamTimeout)
		}
		return nil, fmt.Errorf("strategy %s for user %s: %w", job.Strategy, userID, err)
	}

	result := &RunResult{UserID: userID, Strategy: job.Strategy}
	spent := decimal.Zero
	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		price, err := r.prices.LatestPrice(ctx, intent.Instrument)
		if err != nil {
			result.Failed = append(result.Failed, FailedIntent{Intent: intent, Reason: fmt.Sprintf("no quote: %v", err)})
			continue
		}
		if intent.Side == types.TradeSideBuy {
			cost := price.Mul(intent.Quantity)
			if job.AllocatedCash.IsPositive() && spent.Add(cost).GreaterThan(job.AllocatedCash) {
				result.Failed = append(result.Failed, FailedIntent{
					Intent: intent,
					Reason: fmt.Sprintf("allocation exhausted: spent %s of %s, next needs %s", spent, job.AllocatedCash, cost),
				})
				continue
			}
		}
		trade, err := r.ledger.ApplyTrade(ctx, userID, intent.Instrument, intent.Side, intent.Quantity, price)
		if err != nil {
			result.Failed = append(result.Failed, FailedIntent{Intent: intent, Reason: err.Error()})
			continue
		}
		if intent.Side == types.TradeSideBuy {
			spent = spent.Add(trade.Notional().Add(trade.Fees()))
		}
		result.Executed = append(result.Executed, ExecutedIntent{Intent: intent, Trade: trade})
	}
	logger.Infof("strategy: user=%s strategy=%s executed=%d failed=%d",
		userID, job.Strategy, len(result.Executed), len(result.Failed))
	return result, nil
}
