package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"papertrade/internal/calendar"
	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/snapshot"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
)

// Job type names, used for the in-flight guard and failure reporting.
const (
	StageRevalue     = "revalue"
	StageSnapshot    = "snapshot"
	StageDailyReturn = "daily_return"
	StageStrategy    = "strategy"
)

// StageError is one caught per-user failure inside a cycle.
type StageError struct {
	UserID string
	Stage  string
	Date   string
	Err    error
}

func (e StageError) String() string {
	return fmt.Sprintf("user=%s stage=%s date=%s err=%v", e.UserID, e.Stage, e.Date, e.Err)
}

// CycleSummary reports one full pipeline cycle.
type CycleSummary struct {
	StartedAt  time.Time
	Duration   time.Duration
	TradingDay bool
	Users      int
	Succeeded  int
	Failures   []StageError
	// Skipped lists (user, stage) pairs the in-flight guard refused because a
	// previous run was still executing.
	Skipped []string
}

// Pipeline drives the full scheduled cycle per user, in mandatory order:
// revalue positions, write the daily snapshot, compute the daily return, then
// dispatch strategies against the settled valuation. Users fan out on a
// bounded group; within one user the stages are sequential, and one user's
// failure never aborts a sibling's processing.
type Pipeline struct {
	Store     store.Store
	Ledger    *ledger.Service
	Snapshots *snapshot.Engine
	Runner    *strategy.Runner
	Prices    ledger.PriceLookup
	Calendar  *calendar.Calendar
	// Parallelism bounds concurrent users per cycle; <=0 means 4.
	Parallelism int

	nowFn func() time.Time

	guardMu  sync.Mutex
	inFlight map[string]struct{}
}

func NewPipeline(st store.Store, ledgerSvc *ledger.Service, snapshots *snapshot.Engine, runner *strategy.Runner, prices ledger.PriceLookup, cal *calendar.Calendar, parallelism int) *Pipeline {
	return &Pipeline{
		Store:       st,
		Ledger:      ledgerSvc,
		Snapshots:   snapshots,
		Runner:      runner,
		Prices:      prices,
		Calendar:    cal,
		Parallelism: parallelism,
		nowFn:       time.Now,
		inFlight:    make(map[string]struct{}),
	}
}

// RunCycle processes every active account once. It is safe to trigger
// manually while the ticked cycle runs; the per-(user, stage) guard skips
// work that is still in flight instead of doubling it.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleSummary, error) {
	started := p.nowFn().UTC()
	summary := &CycleSummary{
		StartedAt:  started,
		TradingDay: p.Calendar.IsTradingDay(started),
	}

	accounts, err := p.Ledger.ListActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	summary.Users = len(accounts)

	limit := p.Parallelism
	if limit <= 0 {
		limit = 4
	}
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for _, account := range accounts {
		// Cancellation stops dispatching new users; in-flight users finish.
		if err := ctx.Err(); err != nil {
			break
		}
		userID := account.UserID
		group.Go(func() error {
			failures, skipped := p.processUser(groupCtx, userID, started, summary.TradingDay)
			mu.Lock()
			summary.Failures = append(summary.Failures, failures...)
			summary.Skipped = append(summary.Skipped, skipped...)
			if len(failures) == 0 {
				summary.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	summary.Duration = p.nowFn().UTC().Sub(started)
	logger.Infof("scheduler: cycle done trading_day=%v users=%d ok=%d failed=%d skipped=%d in %s",
		summary.TradingDay, summary.Users, summary.Succeeded, len(summary.Failures), len(summary.Skipped), summary.Duration.Truncate(time.Millisecond))
	for _, f := range summary.Failures {
		logger.Errorf("scheduler: %s", f)
	}
	return summary, nil
}

// processUser runs the stage sequence for one user. The first failed stage
// stops that user's pipeline (later stages would act on stale state) and is
// reported; siblings are unaffected. Transient failures are not retried
// in-line; the next tick picks them up.
func (p *Pipeline) processUser(ctx context.Context, userID string, cycleDate time.Time, tradingDay bool) (failures []StageError, skipped []string) {
	date := cycleDate.Format(calendar.DateFormat)
	fail := func(stage string, err error) {
		failures = append(failures, StageError{UserID: userID, Stage: stage, Date: date, Err: err})
	}

	ok, skip := p.runStage(userID, StageRevalue, func() error {
		return p.Ledger.RevaluePositions(ctx, userID, p.Prices)
	})
	if skip {
		skipped = append(skipped, userID+"/"+StageRevalue)
		return failures, skipped
	}
	if ok != nil {
		fail(StageRevalue, ok)
		return failures, skipped
	}

	if !tradingDay {
		// Market closed: valuations refreshed, but no snapshot, return or
		// strategy dispatch until the next trading day.
		return failures, skipped
	}

	ok, skip = p.runStage(userID, StageSnapshot, func() error {
		_, err := p.Snapshots.CreateDailySnapshot(ctx, userID, cycleDate)
		return err
	})
	if skip {
		skipped = append(skipped, userID+"/"+StageSnapshot)
		return failures, skipped
	}
	if ok != nil {
		fail(StageSnapshot, ok)
		return failures, skipped
	}

	ok, skip = p.runStage(userID, StageDailyReturn, func() error {
		previous := p.Calendar.PreviousTradingDay(cycleDate)
		_, err := p.Snapshots.ComputeDailyReturn(ctx, userID, cycleDate, previous)
		return err
	})
	if skip {
		skipped = append(skipped, userID+"/"+StageDailyReturn)
		return failures, skipped
	}
	if ok != nil {
		fail(StageDailyReturn, ok)
		return failures, skipped
	}

	ok, skip = p.runStage(userID, StageStrategy, func() error {
		return p.dispatchStrategies(ctx, userID)
	})
	if skip {
		skipped = append(skipped, userID+"/"+StageStrategy)
		return failures, skipped
	}
	if ok != nil {
		fail(StageStrategy, ok)
	}
	return failures, skipped
}

func (p *Pipeline) dispatchStrategies(ctx context.Context, userID string) error {
	uow, err := p.Store.Begin(ctx)
	if err != nil {
		return err
	}
	jobs, err := uow.StrategyJobs().ListActiveByUser(ctx, userID)
	uow.Rollback()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		result, err := p.Runner.RunStrategy(ctx, userID, job)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", job.Strategy, err)
		}
		for _, failed := range result.Failed {
			logger.Warnf("scheduler: user=%s strategy=%s intent %s %s x%s not executed: %s",
				userID, job.Strategy, failed.Intent.Side, failed.Intent.Instrument, failed.Intent.Quantity, failed.Reason)
		}
	}
	return nil
}

// runStage executes fn under the (userID, stage) in-flight guard. The second
// return is true when the guard refused because the same stage for the same
// user is still Running.
func (p *Pipeline) runStage(userID, stage string, fn func() error) (err error, skippedBusy bool) {
	key := userID + "|" + stage
	p.guardMu.Lock()
	if _, busy := p.inFlight[key]; busy {
		p.guardMu.Unlock()
		logger.Warnf("scheduler: user=%s stage=%s still running, skipping this tick", userID, stage)
		return nil, true
	}
	p.inFlight[key] = struct{}{}
	p.guardMu.Unlock()
	defer func() {
		p.guardMu.Lock()
		delete(p.inFlight, key)
		p.guardMu.Unlock()
	}()
	return fn(), false
}
