package research

import (
	"context"

	"github.com/markcheno/go-talib"
	"github.com/pkg/errors"
	"github.com/xyths/loggrid/exchange"
)

const (
	natrPeriod  = 14
	candleLimit = 100
)

// CandleSource is the slice of the exchange gateway the screen needs.
type CandleSource interface {
	DayCandles(ctx context.Context, symbol string, size int) ([]exchange.Candle, error)
}

// Natr returns the latest completed daily normalized ATR (percent) for one
// symbol. The still-forming candle is excluded.
func Natr(ctx context.Context, src CandleSource, symbol string) (float64, error) {
	candles, err := src.DayCandles(ctx, symbol, candleLimit)
	if err != nil {
		return 0, err
	}
	if len(candles) < natrPeriod+2 {
		return 0, errors.Errorf("%s: not enough candles for NATR(%d): %d", symbol, natrPeriod, len(candles))
	}
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
		closes[i] = c.Close
	}
	natr := talib.Natr(high, low, closes, natrPeriod)
	return natr[len(natr)-2], nil
}

// SuggestSelector maps daily volatility to a risk selector: the wilder the
// symbol, the more conservative the suggested profile.
func SuggestSelector(natr float64) int {
	switch {
	case natr >= 10:
		return 1
	case natr >= 7:
		return 2
	case natr >= 5:
		return 3
	case natr >= 3:
		return 4
	default:
		return 5
	}
}
