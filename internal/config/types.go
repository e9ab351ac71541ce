package config

import "time"

// Config is the main configuration carrier.
type Config struct {
	App       AppConfig       `toml:"app"`
	Trading   TradingConfig   `toml:"trading"`
	Market    MarketConfig    `toml:"market"`
	Calendar  CalendarConfig  `toml:"calendar"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
	DBPath   string `toml:"db_path"`
}

// TradingConfig holds the per-deployment transaction cost rates, all applied
// to notional. StampTaxRate is charged on sells only.
type TradingConfig struct {
	CommissionRate       float64 `toml:"commission_rate"`
	StampTaxRate         float64 `toml:"stamp_tax_rate"`
	SlippageRate         float64 `toml:"slippage_rate"`
	PriceMissAlertCycles int     `toml:"price_miss_alert_cycles"`
}

type MarketConfig struct {
	// Provider is "memory" (dev/tests) or "binance".
	Provider           string   `toml:"provider"`
	RESTBaseURL        string   `toml:"rest_base_url"`
	HTTPTimeoutSeconds int      `toml:"http_timeout_seconds"`
	Instruments        []string `toml:"instruments"`
}

func (m MarketConfig) HTTPTimeout() time.Duration {
	return time.Duration(m.HTTPTimeoutSeconds) * time.Second
}

type CalendarConfig struct {
	// Holidays are closed market days in "2006-01-02" form; weekends are
	// always closed.
	Holidays []string `toml:"holidays"`
}

type SchedulerConfig struct {
	// Interval is a kline-style duration string: "15m", "1h", "1d".
	Interval               string `toml:"interval"`
	OffsetSeconds          int    `toml:"offset_seconds"`
	RunImmediately         bool   `toml:"run_immediately"`
	UserParallelism        int    `toml:"user_parallelism"`
	StrategyTimeoutSeconds int    `toml:"strategy_timeout_seconds"`
}

func (s SchedulerConfig) Offset() time.Duration {
	return time.Duration(s.OffsetSeconds) * time.Second
}

func (s SchedulerConfig) StrategyTimeout() time.Duration {
	return time.Duration(s.StrategyTimeoutSeconds) * time.Second
}
