package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppHTTPAddr        = ":9980"
	defaultAppDBPath          = "data/papertrade.db"
	defaultCommissionRate     = 0.0003
	defaultStampTaxRate       = 0.001
	defaultSlippageRate       = 0.0
	defaultPriceMissAlert     = 5
	defaultMarketProvider     = "memory"
	defaultMarketTimeoutSec   = 15
	defaultSchedulerInterval  = "1h"
	defaultUserParallelism    = 4
	defaultStrategyTimeoutSec = 30
)

// Load reads the YAML config at path, applies defaults and validates.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", defaultAppEnv)
	v.SetDefault("app.log_level", defaultAppLogLevel)
	v.SetDefault("app.http_addr", defaultAppHTTPAddr)
	v.SetDefault("app.db_path", defaultAppDBPath)
	v.SetDefault("trading.commission_rate", defaultCommissionRate)
	v.SetDefault("trading.stamp_tax_rate", defaultStampTaxRate)
	v.SetDefault("trading.slippage_rate", defaultSlippageRate)
	v.SetDefault("trading.price_miss_alert_cycles", defaultPriceMissAlert)
	v.SetDefault("market.provider", defaultMarketProvider)
	v.SetDefault("market.http_timeout_seconds", defaultMarketTimeoutSec)
	v.SetDefault("scheduler.interval", defaultSchedulerInterval)
	v.SetDefault("scheduler.offset_seconds", 0)
	v.SetDefault("scheduler.run_immediately", false)
	v.SetDefault("scheduler.user_parallelism", defaultUserParallelism)
	v.SetDefault("scheduler.strategy_timeout_seconds", defaultStrategyTimeoutSec)
}

func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	return nil
}

func (t TradingConfig) validate() error {
	for name, rate := range map[string]float64{
		"trading.commission_rate": t.CommissionRate,
		"trading.stamp_tax_rate":  t.StampTaxRate,
		"trading.slippage_rate":   t.SlippageRate,
	} {
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("%s must be in [0, 1), got %v", name, rate)
		}
	}
	if t.PriceMissAlertCycles < 0 {
		return fmt.Errorf("trading.price_miss_alert_cycles must be >= 0")
	}
	return nil
}

func (m MarketConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Provider)) {
	case "memory", "binance":
	default:
		return fmt.Errorf("market.provider must be memory or binance, got %q", m.Provider)
	}
	if m.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("market.http_timeout_seconds must be positive")
	}
	return nil
}

func (s SchedulerConfig) validate() error {
	if _, ok := parseInterval(s.Interval); !ok {
		return fmt.Errorf("scheduler.interval %q is not a valid interval (want e.g. 15m, 1h, 1d)", s.Interval)
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("scheduler.offset_seconds must be >= 0")
	}
	if s.UserParallelism <= 0 {
		return fmt.Errorf("scheduler.user_parallelism must be positive")
	}
	if s.StrategyTimeoutSeconds <= 0 {
		return fmt.Errorf("scheduler.strategy_timeout_seconds must be positive")
	}
	return nil
}
