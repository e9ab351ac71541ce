package gormstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"papertrade/internal/store"
	storemodel "papertrade/internal/store/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements store.Store using Gorm + SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (or creates) the ledger database at path and migrates
// the schema.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.AccountModel{},
		&storemodel.PositionModel{},
		&storemodel.TradeModel{},
		&storemodel.SnapshotModel{},
		&storemodel.StrategyJobModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin starts a transaction and returns the unit of work bound to it.
func (s *GormStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &unitOfWork{tx: tx}, nil
}

var _ store.Store = (*GormStore)(nil)

type unitOfWork struct {
	tx   *gorm.DB
	done bool
}

func (u *unitOfWork) Commit() error {
	if u == nil || u.tx == nil || u.done {
		return nil
	}
	u.done = true
	return u.tx.Commit().Error
}

func (u *unitOfWork) Rollback() error {
	if u == nil || u.tx == nil || u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback().Error
}

func (u *unitOfWork) Accounts() store.AccountRepository      { return &accountRepo{db: u.tx} }
func (u *unitOfWork) Positions() store.PositionRepository    { return &positionRepo{db: u.tx} }
func (u *unitOfWork) Trades() store.TradeRepository          { return &tradeRepo{db: u.tx} }
func (u *unitOfWork) Snapshots() store.SnapshotRepository    { return &snapshotRepo{db: u.tx} }
func (u *unitOfWork) StrategyJobs() store.StrategyJobRepository { return &strategyJobRepo{db: u.tx} }
