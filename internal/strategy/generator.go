package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"papertrade/internal/market"
	"papertrade/internal/types"
)

// MarketView is what a signal generator sees when it runs: the price source,
// the instrument universe it may pick from, and the user's current holdings.
type MarketView struct {
	Prices      market.PriceSource
	Instruments []string
	Holdings    map[string]decimal.Decimal
}

// SignalGenerator turns available cash plus market data into trade intents.
// Generators are pure signal logic; they never touch the ledger.
type SignalGenerator interface {
	Name() string
	GenerateSignals(ctx context.Context, availableCash decimal.Decimal, params map[string]any, view MarketView) ([]types.TradeIntent, error)
}

// Registry maps strategy names to generators.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]SignalGenerator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]SignalGenerator)}
}

// DefaultRegistry returns a registry with the built-in generators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSMACross())
	r.Register(NewMomentum())
	return r
}

func (r *Registry) Register(g SignalGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[strings.ToLower(g.Name())] = g
}

func (r *Registry) Get(name string) (SignalGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have: %s)", name, strings.Join(r.names(), ", "))
	}
	return g, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// intParam reads an integer out of loosely-typed strategy params (JSON
// numbers decode as float64).
func intParam(params map[string]any, key string, fallback int) int {
	if params == nil {
		return fallback
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// shareQuantity converts a cash budget at a price into a whole-share
// quantity.
func shareQuantity(budget, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return budget.Div(price).Floor()
}
