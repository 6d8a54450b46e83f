package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xyths/loggrid/exchange"
)

type fakeCandles struct {
	candles []exchange.Candle
	err     error
}

func (f *fakeCandles) DayCandles(_ context.Context, _ string, _ int) ([]exchange.Candle, error) {
	return f.candles, f.err
}

func flatCandles(n int, price float64) []exchange.Candle {
	out := make([]exchange.Candle, n)
	for i := range out {
		out[i] = exchange.Candle{
			Timestamp: int64(i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		}
	}
	return out
}

func TestNatrFlatMarket(t *testing.T) {
	src := &fakeCandles{candles: flatCandles(60, 100)}
	natr, err := Natr(context.Background(), src, "doge_usdt")
	require.NoError(t, err)
	require.Equal(t, 0.0, natr)
}

func TestNatrTooFewCandles(t *testing.T) {
	src := &fakeCandles{candles: flatCandles(10, 100)}
	_, err := Natr(context.Background(), src, "doge_usdt")
	require.Error(t, err)
}

func TestSuggestSelector(t *testing.T) {
	tests := []struct {
		natr float64
		want int
	}{
		{12.5, 1},
		{10, 1},
		{8.2, 2},
		{5.5, 3},
		{4, 4},
		{1.2, 5},
		{0, 5},
	}
	for _, tt := range tests {
		if got := SuggestSelector(tt.natr); got != tt.want {
			t.Errorf("SuggestSelector(%f) = %d, want %d", tt.natr, got, tt.want)
		}
	}
}
