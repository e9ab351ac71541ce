package strategy

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"papertrade/internal/logger"
	"papertrade/internal/types"
)

const (
	defaultSMAFast = 5
	defaultSMASlow = 20
)

// SMACross is a moving-average crossover generator: it buys an instrument
// when the fast SMA crosses above the slow SMA on the latest bar and sells
// the whole holding on the opposite cross. Params: "fast", "slow".
type SMACross struct{}

func NewSMACross() *SMACross { return &SMACross{} }

func (g *SMACross) Name() string { return "sma_cross" }

func (g *SMACross) GenerateSignals(ctx context.Context, availableCash decimal.Decimal, params map[string]any, view MarketView) ([]types.TradeIntent, error) {
	fast := intParam(params, "fast", defaultSMAFast)
	slow := intParam(params, "slow", defaultSMASlow)
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("sma_cross: need 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}

	var buys []string
	var intents []types.TradeIntent
	for _, instrument := range view.Instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		closes, err := view.Prices.HistoryCloses(ctx, instrument, slow+2)
		if err != nil {
			logger.Debugf("sma_cross: no history for %s: %v", instrument, err)
			continue
		}
		if len(closes) < slow+1 {
			continue
		}
		fastSeries := talib.Sma(closes, fast)
		slowSeries := talib.Sma(closes, slow)
		last := len(closes) - 1
		crossedUp := fastSeries[last] > slowSeries[last] && fastSeries[last-1] <= slowSeries[last-1]
		crossedDown := fastSeries[last] < slowSeries[last] && fastSeries[last-1] >= slowSeries[last-1]

		held := view.Holdings[instrument]
		switch {
		case crossedUp && held.IsZero():
			buys = append(buys, instrument)
		case crossedDown && held.IsPositive():
			intents = append(intents, types.TradeIntent{
				Instrument: instrument,
				Side:       types.TradeSideSell,
				Quantity:   held,
				Rationale:  fmt.Sprintf("sma(%d) crossed below sma(%d)", fast, slow),
			})
		}
	}

	if len(buys) == 0 {
		return intents, nil
	}
	// Split the cash budget evenly across this run's buy signals.
	perInstrument := availableCash.Div(decimal.NewFromInt(int64(len(buys))))
	for _, instrument := range buys {
		price, err := view.Prices.LatestPrice(ctx, instrument)
		if err != nil {
			logger.Debugf("sma_cross: no quote for %s: %v", instrument, err)
			continue
		}
		quantity := shareQuantity(perInstrument, price)
		if !quantity.IsPositive() {
			continue
		}
		intents = append(intents, types.TradeIntent{
			Instrument: instrument,
			Side:       types.TradeSideBuy,
			Quantity:   quantity,
			Rationale:  fmt.Sprintf("sma(%d) crossed above sma(%d)", fast, slow),
		})
	}
	return intents, nil
}

var _ SignalGenerator = (*SMACross)(nil)
