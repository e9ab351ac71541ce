package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrUnavailable reports that a source has no quote for the requested
// instrument (or instrument+date). Consumers degrade to the last known price
// rather than failing.
var ErrUnavailable = errors.New("price unavailable")

// PriceSource supplies latest and historical close prices per instrument.
type PriceSource interface {
	// LatestPrice returns the most recent price for the instrument.
	LatestPrice(ctx context.Context, instrument string) (decimal.Decimal, error)
	// HistoricalClose returns the close price for a calendar date ("2006-01-02").
	HistoricalClose(ctx context.Context, instrument, date string) (decimal.Decimal, error)
	// HistoryCloses returns up to limit daily closes ordered oldest to newest.
	HistoryCloses(ctx context.Context, instrument string, limit int) ([]float64, error)
}

// MemorySource is an in-memory PriceSource seeded with static quotes. Used in
// tests and as the dev-mode provider.
type MemorySource struct {
	mu      sync.RWMutex
	latest  map[string]decimal.Decimal
	history map[string][]float64          // oldest to newest daily closes
	daily   map[string]map[string]decimal.Decimal // instrument -> date -> close
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		latest:  make(map[string]decimal.Decimal),
		history: make(map[string][]float64),
		daily:   make(map[string]map[string]decimal.Decimal),
	}
}

// SetLatest sets the current quote and appends it to the instrument's history.
func (s *MemorySource) SetLatest(instrument string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[instrument] = price
	f, _ := price.Float64()
	s.history[instrument] = append(s.history[instrument], f)
}

// SetDailyClose records the close for one calendar date.
func (s *MemorySource) SetDailyClose(instrument, date string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily[instrument] == nil {
		s.daily[instrument] = make(map[string]decimal.Decimal)
	}
	s.daily[instrument][date] = price
}

// Remove drops the instrument entirely, simulating a source outage for it.
func (s *MemorySource) Remove(instrument string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, instrument)
	delete(s.history, instrument)
	delete(s.daily, instrument)
}

func (s *MemorySource) LatestPrice(_ context.Context, instrument string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.latest[strings.TrimSpace(instrument)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", instrument, ErrUnavailable)
	}
	return price, nil
}

func (s *MemorySource) HistoricalClose(_ context.Context, instrument, date string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDate, ok := s.daily[strings.TrimSpace(instrument)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s@%s: %w", instrument, date, ErrUnavailable)
	}
	price, ok := byDate[date]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s@%s: %w", instrument, date, ErrUnavailable)
	}
	return price, nil
}

func (s *MemorySource) HistoryCloses(_ context.Context, instrument string, limit int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.history[strings.TrimSpace(instrument)]
	if !ok || len(series) == 0 {
		return nil, fmt.Errorf("%s: %w", instrument, ErrUnavailable)
	}
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]float64, len(series))
	copy(out, series)
	return out, nil
}

var _ PriceSource = (*MemorySource)(nil)
