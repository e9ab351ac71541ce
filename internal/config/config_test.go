package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
  log_level: debug
  http_addr: ":8080"
  db_path: /tmp/trade.db
trading:
  commission_rate: 0.0005
  stamp_tax_rate: 0.002
  slippage_rate: 0.0001
  price_miss_alert_cycles: 3
market:
  provider: binance
  rest_base_url: https://api.example.com
  http_timeout_seconds: 10
  instruments:
    - BTCUSDT
    - ETHUSDT
calendar:
  holidays:
    - "2026-12-25"
scheduler:
  interval: 15m
  offset_seconds: 30
  run_immediately: true
  user_parallelism: 8
  strategy_timeout_seconds: 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, 0.0005, cfg.Trading.CommissionRate)
	assert.Equal(t, 0.002, cfg.Trading.StampTaxRate)
	assert.Equal(t, 3, cfg.Trading.PriceMissAlertCycles)
	assert.Equal(t, "binance", cfg.Market.Provider)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Market.Instruments)
	assert.Equal(t, 10*time.Second, cfg.Market.HTTPTimeout())
	assert.Equal(t, []string{"2026-12-25"}, cfg.Calendar.Holidays)
	assert.Equal(t, "15m", cfg.Scheduler.Interval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Offset())
	assert.True(t, cfg.Scheduler.RunImmediately)
	assert.Equal(t, 8, cfg.Scheduler.UserParallelism)
	assert.Equal(t, 20*time.Second, cfg.Scheduler.StrategyTimeout())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: dev
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "data/papertrade.db", cfg.App.DBPath)
	assert.Equal(t, 0.0003, cfg.Trading.CommissionRate)
	assert.Equal(t, 0.001, cfg.Trading.StampTaxRate)
	assert.Equal(t, 5, cfg.Trading.PriceMissAlertCycles)
	assert.Equal(t, "memory", cfg.Market.Provider)
	assert.Equal(t, "1h", cfg.Scheduler.Interval)
	assert.Equal(t, 4, cfg.Scheduler.UserParallelism)

	assert.Equal(t, time.Hour, cfg.Scheduler.IntervalDuration())
}

func TestLoadRejectsBadRate(t *testing.T) {
	path := writeConfig(t, `
trading:
  commission_rate: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commission_rate")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
market:
  provider: bloomberg
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.provider")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  interval: soonish
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.interval")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("  ")
	require.Error(t, err)
}
