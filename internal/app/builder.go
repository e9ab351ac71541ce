package app

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"papertrade/internal/calendar"
	"papertrade/internal/config"
	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/scheduler"
	"papertrade/internal/snapshot"
	"papertrade/internal/store/gormstore"
	"papertrade/internal/strategy"
	httpapi "papertrade/internal/transport/http"
)

// build wires every component explicitly from config. There are no package
// singletons: the store handle, lock domain and services are constructed here
// and injected.
func build(cfg *config.Config) (*App, error) {
	st, err := gormstore.NewGormStore(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	prices, err := buildPriceSource(cfg.Market)
	if err != nil {
		st.Close()
		return nil, err
	}

	cal, err := calendar.New(cfg.Calendar.Holidays)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build trading calendar: %w", err)
	}

	costs := ledger.NewFixedRateCosts(
		decimal.NewFromFloat(cfg.Trading.CommissionRate),
		decimal.NewFromFloat(cfg.Trading.StampTaxRate),
		decimal.NewFromFloat(cfg.Trading.SlippageRate),
	)
	locks := ledger.NewKeyedMutex()
	ledgerSvc := ledger.NewService(st, costs, locks, ledger.Options{
		PriceMissAlertCycles: cfg.Trading.PriceMissAlertCycles,
	})
	snapshots := snapshot.NewEngine(st, locks)
	instruments := make([]string, 0, len(cfg.Market.Instruments))
	for _, raw := range cfg.Market.Instruments {
		if symbol := market.NormalizeSymbol(raw); symbol != "" {
			instruments = append(instruments, symbol)
		}
	}
	runner := strategy.NewRunner(ledgerSvc, strategy.DefaultRegistry(), prices,
		instruments, cfg.Scheduler.StrategyTimeout())
	pipeline := scheduler.NewPipeline(st, ledgerSvc, snapshots, runner, prices, cal,
		cfg.Scheduler.UserParallelism)

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Ledger:    ledgerSvc,
		Snapshots: snapshots,
		Pipeline:  pipeline,
		Store:     st,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}

	return &App{
		cfg:      cfg,
		store:    st,
		pipeline: pipeline,
		server:   server,
	}, nil
}

func buildPriceSource(cfg config.MarketConfig) (market.PriceSource, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "binance":
		return market.NewBinanceSource(market.BinanceConfig{
			RESTBaseURL: cfg.RESTBaseURL,
			HTTPTimeout: cfg.HTTPTimeout(),
		}), nil
	case "memory", "":
		return market.NewMemorySource(), nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Provider)
	}
}
