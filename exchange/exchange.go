package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound means the venue does not know the order id. This is
// ambiguous: the order may have been filled and purged, or may never have
// existed. Callers must not assume either.
var ErrOrderNotFound = errors.New("order not found")

// MarketDataError wraps a failure to obtain market data or balances for one
// symbol. The trading loop skips the symbol for the current tick.
type MarketDataError struct {
	Symbol string
	Err    error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data for %s: %s", e.Symbol, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// OrderRejectedError is a venue-side rejection of an order placement,
// e.g. insufficient margin or invalid tick size.
type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

// Gateway is the exchange capability consumed by the grid engine.
// All calls are blocking; timeouts are the implementation's business.
type Gateway interface {
	// Ticker returns the current bid/ask/last/volume for symbol.
	Ticker(ctx context.Context, symbol string) (Ticker, error)
	// FreeBalance returns the venue's free balance of one currency.
	FreeBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	// OpenOrders lists resting orders. An empty symbol means all symbols.
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	// PlaceLimitOrder places a limit order and returns the venue order id.
	PlaceLimitOrder(ctx context.Context, symbol, side string, amount, price decimal.Decimal) (string, error)
	// OrderStatus returns the normalized status of one order,
	// ErrOrderNotFound when the venue does not know the id.
	OrderStatus(ctx context.Context, orderId, symbol string) (string, error)
	CancelOrder(ctx context.Context, symbol, orderId string) error
	// DayCandles returns up to size daily candles, oldest first.
	DayCandles(ctx context.Context, symbol string, size int) ([]Candle, error)
}
