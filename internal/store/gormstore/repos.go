package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"papertrade/internal/store"
	storemodel "papertrade/internal/store/model"
	"papertrade/internal/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ------------------------- accounts -------------------------

type accountRepo struct {
	db *gorm.DB
}

func (r *accountRepo) Get(ctx context.Context, userID string) (*types.Account, error) {
	var m storemodel.AccountModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account := accountModelToRecord(m)
	return &account, nil
}

func (r *accountRepo) ListActive(ctx context.Context) ([]types.Account, error) {
	var models []storemodel.AccountModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(types.AccountStatusActive)).
		Order("user_id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	accounts := make([]types.Account, 0, len(models))
	for _, m := range models {
		accounts = append(accounts, accountModelToRecord(m))
	}
	return accounts, nil
}

func (r *accountRepo) Create(ctx context.Context, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	m := accountRecordToModel(*account)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *accountRepo) Save(ctx context.Context, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	m := accountRecordToModel(*account)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

func accountModelToRecord(m storemodel.AccountModel) types.Account {
	return types.Account{
		UserID:           m.UserID,
		InitialCapital:   m.InitialCapital,
		AvailableCash:    m.AvailableCash,
		FrozenCash:       m.FrozenCash,
		TotalMarketValue: m.TotalMarketValue,
		TotalAssets:      m.TotalAssets,
		TotalReturn:      m.TotalReturn,
		TotalReturnRate:  m.TotalReturnRate,
		DailyReturn:      m.DailyReturn,
		DailyReturnRate:  m.DailyReturnRate,
		DailyReturnValid: m.DailyReturnValid,
		TradeCount:       m.TradeCount,
		Status:           types.AccountStatus(m.Status),
		CreateTime:       time.Unix(m.CreatedAtUnix, 0).UTC(),
		LastUpdateTime:   time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
}

func accountRecordToModel(a types.Account) storemodel.AccountModel {
	return storemodel.AccountModel{
		UserID:           a.UserID,
		InitialCapital:   a.InitialCapital,
		AvailableCash:    a.AvailableCash,
		FrozenCash:       a.FrozenCash,
		TotalMarketValue: a.TotalMarketValue,
		TotalAssets:      a.TotalAssets,
		TotalReturn:      a.TotalReturn,
		TotalReturnRate:  a.TotalReturnRate,
		DailyReturn:      a.DailyReturn,
		DailyReturnRate:  a.DailyReturnRate,
		DailyReturnValid: a.DailyReturnValid,
		TradeCount:       a.TradeCount,
		Status:           string(a.Status),
		CreatedAtUnix:    a.CreateTime.Unix(),
		UpdatedAtUnix:    a.LastUpdateTime.Unix(),
	}
}

// ------------------------- positions -------------------------

type positionRepo struct {
	db *gorm.DB
}

func (r *positionRepo) Get(ctx context.Context, userID, instrument string) (*types.Position, error) {
	var m storemodel.PositionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND instrument = ?", userID, instrument).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	position := positionModelToRecord(m)
	return &position, nil
}

func (r *positionRepo) ListByUser(ctx context.Context, userID string) ([]types.Position, error) {
	var models []storemodel.PositionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("instrument").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	positions := make([]types.Position, 0, len(models))
	for _, m := range models {
		positions = append(positions, positionModelToRecord(m))
	}
	return positions, nil
}

func (r *positionRepo) Save(ctx context.Context, position *types.Position) error {
	if position == nil {
		return fmt.Errorf("nil position")
	}
	m := positionRecordToModel(*position)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "instrument"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

func (r *positionRepo) Delete(ctx context.Context, userID, instrument string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND instrument = ?", userID, instrument).
		Delete(&storemodel.PositionModel{}).Error
}

func positionModelToRecord(m storemodel.PositionModel) types.Position {
	return types.Position{
		UserID:            m.UserID,
		Instrument:        m.Instrument,
		Quantity:          m.Quantity,
		AvgCost:           m.AvgCost,
		CurrentPrice:      m.CurrentPrice,
		MarketValue:       m.MarketValue,
		UnrealizedPnL:     m.UnrealizedPnL,
		UnrealizedPnLRate: m.UnrealizedPnLRate,
		CreateTime:        time.Unix(m.CreatedAtUnix, 0).UTC(),
		LastUpdateTime:    time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
}

func positionRecordToModel(p types.Position) storemodel.PositionModel {
	return storemodel.PositionModel{
		UserID:            p.UserID,
		Instrument:        p.Instrument,
		Quantity:          p.Quantity,
		AvgCost:           p.AvgCost,
		CurrentPrice:      p.CurrentPrice,
		MarketValue:       p.MarketValue,
		UnrealizedPnL:     p.UnrealizedPnL,
		UnrealizedPnLRate: p.UnrealizedPnLRate,
		CreatedAtUnix:     p.CreateTime.Unix(),
		UpdatedAtUnix:     p.LastUpdateTime.Unix(),
	}
}

// ------------------------- trades -------------------------

type tradeRepo struct {
	db *gorm.DB
}

func (r *tradeRepo) Insert(ctx context.Context, trade *types.Trade) error {
	if trade == nil {
		return fmt.Errorf("nil trade")
	}
	m := storemodel.TradeModel{
		ID:            trade.ID,
		UserID:        trade.UserID,
		Instrument:    trade.Instrument,
		Side:          string(trade.Side),
		Quantity:      trade.Quantity,
		FillPrice:     trade.FillPrice,
		Commission:    trade.Commission,
		StampTax:      trade.StampTax,
		Slippage:      trade.Slippage,
		TimestampUnix: trade.Timestamp.UnixNano(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *tradeRepo) ListByUser(ctx context.Context, userID string, filter store.TradeFilter) ([]types.Trade, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Instrument != "" {
		q = q.Where("instrument = ?", filter.Instrument)
	}
	if filter.Side != "" {
		q = q.Where("side = ?", string(filter.Side))
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp < ?", filter.Until.UnixNano())
	}
	q = q.Order("timestamp, id")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var models []storemodel.TradeModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	trades := make([]types.Trade, 0, len(models))
	for _, m := range models {
		trades = append(trades, types.Trade{
			ID:         m.ID,
			UserID:     m.UserID,
			Instrument: m.Instrument,
			Side:       types.TradeSide(m.Side),
			Quantity:   m.Quantity,
			FillPrice:  m.FillPrice,
			Commission: m.Commission,
			StampTax:   m.StampTax,
			Slippage:   m.Slippage,
			Timestamp:  time.Unix(0, m.TimestampUnix).UTC(),
		})
	}
	return trades, nil
}

// ------------------------- snapshots -------------------------

type snapshotRepo struct {
	db *gorm.DB
}

func (r *snapshotRepo) Get(ctx context.Context, userID, date string) (*types.Snapshot, error) {
	var m storemodel.SnapshotModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snapshot := snapshotModelToRecord(m)
	return &snapshot, nil
}

func (r *snapshotRepo) Upsert(ctx context.Context, snapshot *types.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}
	m := storemodel.SnapshotModel{
		UserID:           snapshot.UserID,
		Date:             snapshot.Date,
		TotalAssets:      snapshot.TotalAssets,
		TotalMarketValue: snapshot.TotalMarketValue,
		AvailableCash:    snapshot.AvailableCash,
		CreatedAtUnix:    snapshot.CreateTime.Unix(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_assets":       gorm.Expr("excluded.total_assets"),
				"total_market_value": gorm.Expr("excluded.total_market_value"),
				"available_cash":     gorm.Expr("excluded.available_cash"),
				"created_at":         gorm.Expr("excluded.created_at"),
			}),
		}).
		Create(&m).Error
}

func (r *snapshotRepo) LatestDate(ctx context.Context, userID string) (string, error) {
	var m storemodel.SnapshotModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Date, nil
}

func (r *snapshotRepo) ListRange(ctx context.Context, userID, from, to string) ([]types.Snapshot, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	var models []storemodel.SnapshotModel
	if err := q.Order("date").Find(&models).Error; err != nil {
		return nil, err
	}
	snapshots := make([]types.Snapshot, 0, len(models))
	for _, m := range models {
		snapshots = append(snapshots, snapshotModelToRecord(m))
	}
	return snapshots, nil
}

func snapshotModelToRecord(m storemodel.SnapshotModel) types.Snapshot {
	return types.Snapshot{
		UserID:           m.UserID,
		Date:             m.Date,
		TotalAssets:      m.TotalAssets,
		TotalMarketValue: m.TotalMarketValue,
		AvailableCash:    m.AvailableCash,
		CreateTime:       time.Unix(m.CreatedAtUnix, 0).UTC(),
	}
}

// ------------------------- strategy jobs -------------------------

type strategyJobRepo struct {
	db *gorm.DB
}

func (r *strategyJobRepo) Save(ctx context.Context, job *types.StrategyJob) error {
	if job == nil {
		return fmt.Errorf("nil strategy job")
	}
	params := datatypes.JSON("{}")
	if len(job.Params) > 0 {
		raw, err := json.Marshal(job.Params)
		if err != nil {
			return fmt.Errorf("marshal strategy params: %w", err)
		}
		params = datatypes.JSON(raw)
	}
	now := time.Now().Unix()
	m := storemodel.StrategyJobModel{
		UserID:          job.UserID,
		Strategy:        job.Strategy,
		IsActive:        job.IsActive,
		AllocatedCash:   job.AllocatedCash,
		ParamsJSON:      params,
		NextRunTimeUnix: job.NextRunTime.Unix(),
		CreatedAtUnix:   now,
		UpdatedAtUnix:   now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "strategy"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"is_active":      gorm.Expr("excluded.is_active"),
				"allocated_cash": gorm.Expr("excluded.allocated_cash"),
				"params_json":    gorm.Expr("excluded.params_json"),
				"next_run_time":  gorm.Expr("excluded.next_run_time"),
				"updated_at":     gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&m).Error
}

func (r *strategyJobRepo) ListActiveByUser(ctx context.Context, userID string) ([]types.StrategyJob, error) {
	var models []storemodel.StrategyJobModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("strategy").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	jobs := make([]types.StrategyJob, 0, len(models))
	for _, m := range models {
		var params map[string]any
		if len(m.ParamsJSON) > 0 {
			_ = json.Unmarshal(m.ParamsJSON, &params)
		}
		jobs = append(jobs, types.StrategyJob{
			UserID:        m.UserID,
			Strategy:      m.Strategy,
			IsActive:      m.IsActive,
			AllocatedCash: m.AllocatedCash,
			Params:        params,
			NextRunTime:   time.Unix(m.NextRunTimeUnix, 0).UTC(),
		})
	}
	return jobs, nil
}
