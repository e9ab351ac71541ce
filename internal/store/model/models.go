package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Monetary columns are stored as decimal text to keep ledger math exact;
// shopspring/decimal scans and values them directly.

type AccountModel struct {
	UserID           string          `gorm:"column:user_id;primaryKey"`
	InitialCapital   decimal.Decimal `gorm:"column:initial_capital;type:TEXT"`
	AvailableCash    decimal.Decimal `gorm:"column:available_cash;type:TEXT"`
	FrozenCash       decimal.Decimal `gorm:"column:frozen_cash;type:TEXT"`
	TotalMarketValue decimal.Decimal `gorm:"column:total_market_value;type:TEXT"`
	TotalAssets      decimal.Decimal `gorm:"column:total_assets;type:TEXT"`
	TotalReturn      decimal.Decimal `gorm:"column:total_return;type:TEXT"`
	TotalReturnRate  decimal.Decimal `gorm:"column:total_return_rate;type:TEXT"`
	DailyReturn      decimal.Decimal `gorm:"column:daily_return;type:TEXT"`
	DailyReturnRate  decimal.Decimal `gorm:"column:daily_return_rate;type:TEXT"`
	DailyReturnValid bool            `gorm:"column:daily_return_valid"`
	TradeCount       int64           `gorm:"column:trade_count"`
	Status           string          `gorm:"column:status;index"`
	CreatedAtUnix    int64           `gorm:"column:created_at"`
	UpdatedAtUnix    int64           `gorm:"column:updated_at"`
}

func (AccountModel) TableName() string { return "accounts" }

type PositionModel struct {
	ID                int64           `gorm:"column:id;primaryKey"`
	UserID            string          `gorm:"column:user_id;uniqueIndex:idx_position_key,priority:1"`
	Instrument        string          `gorm:"column:instrument;uniqueIndex:idx_position_key,priority:2"`
	Quantity          decimal.Decimal `gorm:"column:quantity;type:TEXT"`
	AvgCost           decimal.Decimal `gorm:"column:avg_cost;type:TEXT"`
	CurrentPrice      decimal.Decimal `gorm:"column:current_price;type:TEXT"`
	MarketValue       decimal.Decimal `gorm:"column:market_value;type:TEXT"`
	UnrealizedPnL     decimal.Decimal `gorm:"column:unrealized_pnl;type:TEXT"`
	UnrealizedPnLRate decimal.Decimal `gorm:"column:unrealized_pnl_rate;type:TEXT"`
	CreatedAtUnix     int64           `gorm:"column:created_at"`
	UpdatedAtUnix     int64           `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

type TradeModel struct {
	ID            string          `gorm:"column:id;primaryKey"`
	UserID        string          `gorm:"column:user_id;index:idx_trade_user_ts,priority:1"`
	Instrument    string          `gorm:"column:instrument;index"`
	Side          string          `gorm:"column:side"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:TEXT"`
	FillPrice     decimal.Decimal `gorm:"column:fill_price;type:TEXT"`
	Commission    decimal.Decimal `gorm:"column:commission;type:TEXT"`
	StampTax      decimal.Decimal `gorm:"column:stamp_tax;type:TEXT"`
	Slippage      decimal.Decimal `gorm:"column:slippage;type:TEXT"`
	TimestampUnix int64           `gorm:"column:timestamp;index:idx_trade_user_ts,priority:2"`
}

func (TradeModel) TableName() string { return "trades" }

type SnapshotModel struct {
	ID               int64           `gorm:"column:id;primaryKey"`
	UserID           string          `gorm:"column:user_id;uniqueIndex:idx_snapshot_key,priority:1"`
	Date             string          `gorm:"column:date;uniqueIndex:idx_snapshot_key,priority:2"`
	TotalAssets      decimal.Decimal `gorm:"column:total_assets;type:TEXT"`
	TotalMarketValue decimal.Decimal `gorm:"column:total_market_value;type:TEXT"`
	AvailableCash    decimal.Decimal `gorm:"column:available_cash;type:TEXT"`
	CreatedAtUnix    int64           `gorm:"column:created_at"`
}

func (SnapshotModel) TableName() string { return "snapshots" }

type StrategyJobModel struct {
	ID              int64           `gorm:"column:id;primaryKey"`
	UserID          string          `gorm:"column:user_id;uniqueIndex:idx_strategy_job,priority:1"`
	Strategy        string          `gorm:"column:strategy;uniqueIndex:idx_strategy_job,priority:2"`
	IsActive        bool            `gorm:"column:is_active;index"`
	AllocatedCash   decimal.Decimal `gorm:"column:allocated_cash;type:TEXT"`
	ParamsJSON      datatypes.JSON  `gorm:"column:params_json;type:TEXT"`
	NextRunTimeUnix int64           `gorm:"column:next_run_time"`
	CreatedAtUnix   int64           `gorm:"column:created_at"`
	UpdatedAtUnix   int64           `gorm:"column:updated_at"`
}

func (StrategyJobModel) TableName() string { return "strategy_jobs" }
