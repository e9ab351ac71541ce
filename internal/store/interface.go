package store

import (
	"context"
	"time"

	"papertrade/internal/types"
)

// TradeFilter narrows ListTrades results. Zero values mean "no constraint".
type TradeFilter struct {
	Instrument string
	Side       types.TradeSide
	Since      time.Time
	Until      time.Time
	Limit      int
}

// UnitOfWork defines a transaction scope. Every mutation inside one unit
// either commits as a whole or rolls back as a whole.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction. Safe to call after Commit.
	Rollback() error

	// Accounts returns the account repository within this transaction.
	Accounts() AccountRepository
	// Positions returns the position repository within this transaction.
	Positions() PositionRepository
	// Trades returns the trade repository within this transaction.
	Trades() TradeRepository
	// Snapshots returns the snapshot repository within this transaction.
	Snapshots() SnapshotRepository
	// StrategyJobs returns the strategy job repository within this transaction.
	StrategyJobs() StrategyJobRepository
}

// Store is the entry point for database access. It is the single source of
// truth: components never treat in-memory copies of ledger state as
// authoritative across calls.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// AccountRepository handles account persistence.
type AccountRepository interface {
	Get(ctx context.Context, userID string) (*types.Account, error)
	ListActive(ctx context.Context) ([]types.Account, error)
	// Create fails if an account already exists for the user.
	Create(ctx context.Context, account *types.Account) error
	Save(ctx context.Context, account *types.Account) error
}

// PositionRepository handles position persistence.
type PositionRepository interface {
	Get(ctx context.Context, userID, instrument string) (*types.Position, error)
	ListByUser(ctx context.Context, userID string) ([]types.Position, error)
	Save(ctx context.Context, position *types.Position) error
	// Delete removes a fully liquidated position.
	Delete(ctx context.Context, userID, instrument string) error
}

// TradeRepository is append-only: trades are never updated or deleted.
type TradeRepository interface {
	Insert(ctx context.Context, trade *types.Trade) error
	ListByUser(ctx context.Context, userID string, filter TradeFilter) ([]types.Trade, error)
}

// SnapshotRepository handles daily valuation snapshots.
type SnapshotRepository interface {
	Get(ctx context.Context, userID, date string) (*types.Snapshot, error)
	// Upsert replaces the record for (user, date) if one exists.
	Upsert(ctx context.Context, snapshot *types.Snapshot) error
	// LatestDate returns the newest stored snapshot date for the user, or ""
	// when the user has none.
	LatestDate(ctx context.Context, userID string) (string, error)
	ListRange(ctx context.Context, userID, from, to string) ([]types.Snapshot, error)
}

// StrategyJobRepository handles strategy scheduling metadata.
type StrategyJobRepository interface {
	Save(ctx context.Context, job *types.StrategyJob) error
	ListActiveByUser(ctx context.Context, userID string) ([]types.StrategyJob, error)
}
