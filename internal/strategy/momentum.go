package strategy

import (
	"context"
	"fmt"
	"sort"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"papertrade/internal/logger"
	"papertrade/internal/types"
)

const (
	defaultMomentumLookback = 20
	defaultMomentumTopN     = 3
)

// Momentum ranks the universe by rate of change over a lookback window, buys
// the top performers with positive momentum and exits holdings whose momentum
// has turned negative. Params: "lookback", "top_n".
type Momentum struct{}

func NewMomentum() *Momentum { return &Momentum{} }

func (g *Momentum) Name() string { return "momentum" }

type momentumScore struct {
	instrument string
	roc        float64
}

func (g *Momentum) GenerateSignals(ctx context.Context, availableCash decimal.Decimal, params map[string]any, view MarketView) ([]types.TradeIntent, error) {
	lookback := intParam(params, "lookback", defaultMomentumLookback)
	topN := intParam(params, "top_n", defaultMomentumTopN)
	if lookback <= 0 || topN <= 0 {
		return nil, fmt.Errorf("momentum: need positive lookback and top_n, got lookback=%d top_n=%d", lookback, topN)
	}

	var scores []momentumScore
	var intents []types.TradeIntent
	for _, instrument := range view.Instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		closes, err := view.Prices.HistoryCloses(ctx, instrument, lookback+2)
		if err != nil || len(closes) < lookback+1 {
			logger.Debugf("momentum: insufficient history for %s", instrument)
			continue
		}
		roc := talib.Roc(closes, lookback)
		score := roc[len(roc)-1]
		held := view.Holdings[instrument]
		if held.IsPositive() && score < 0 {
			intents = append(intents, types.TradeIntent{
				Instrument: instrument,
				Side:       types.TradeSideSell,
				Quantity:   held,
				Rationale:  fmt.Sprintf("momentum turned negative (%d-day roc %.2f%%)", lookback, score),
			})
			continue
		}
		if held.IsZero() && score > 0 {
			scores = append(scores, momentumScore{instrument: instrument, roc: score})
		}
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].roc > scores[j].roc })
	if len(scores) > topN {
		scores = scores[:topN]
	}
	if len(scores) == 0 {
		return intents, nil
	}
	perInstrument := availableCash.Div(decimal.NewFromInt(int64(len(scores))))
	for _, s := range scores {
		price, err := view.Prices.LatestPrice(ctx, s.instrument)
		if err != nil {
			continue
		}
		quantity := shareQuantity(perInstrument, price)
		if !quantity.IsPositive() {
			continue
		}
		intents = append(intents, types.TradeIntent{
			Instrument: s.instrument,
			Side:       types.TradeSideBuy,
			Quantity:   quantity,
			Rationale:  fmt.Sprintf("top momentum (%d-day roc %.2f%%)", lookback, s.roc),
		})
	}
	return intents, nil
}

var _ SignalGenerator = (*Momentum)(nil)
