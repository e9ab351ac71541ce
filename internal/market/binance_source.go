package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

const maxHistoryLimit = 1000

// BinanceSource implements PriceSource on top of the go-binance SDK, mapping
// instruments straight to exchange symbols and daily klines to calendar
// closes.
type BinanceSource struct {
	client *binance.Client
}

// BinanceConfig describes the exchange endpoint.
type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) LatestPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	symbol := NormalizeSymbol(instrument)
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("instrument is required")
	}
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
	}
	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance price %s: parse %q: %w", symbol, prices[0].Price, err)
	}
	return price, nil
}

func (s *BinanceSource) HistoricalClose(ctx context.Context, instrument, date string) (decimal.Decimal, error) {
	symbol := NormalizeSymbol(instrument)
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid date %q: %w", date, err)
	}
	start := day.UTC()
	end := start.Add(24 * time.Hour)
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval("1d").
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli() - 1).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance klines %s: %w", symbol, err)
	}
	if len(klines) == 0 {
		return decimal.Zero, fmt.Errorf("%s@%s: %w", symbol, date, ErrUnavailable)
	}
	price, err := decimal.NewFromString(klines[0].Close)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance klines %s: parse %q: %w", symbol, klines[0].Close, err)
	}
	return price, nil
}

func (s *BinanceSource) HistoryCloses(ctx context.Context, instrument string, limit int) ([]float64, error) {
	symbol := NormalizeSymbol(instrument)
	if symbol == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval("1d").
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		f, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			continue
		}
		closes = append(closes, f)
	}
	return closes, nil
}

var _ PriceSource = (*BinanceSource)(nil)
