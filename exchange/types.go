package exchange

import "github.com/shopspring/decimal"

const (
	Buy  = "buy"
	Sell = "sell"
)

// Normalized order states. Venue-specific states are mapped to these three
// by each gateway; the grid engine never sees a raw venue state.
const (
	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

type Ticker struct {
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Last   decimal.Decimal
	Volume decimal.Decimal
}

// Order is a resting or historical order as reported by the venue.
type Order struct {
	Id     string
	Symbol string
	Side   string // Buy or Sell
	Amount decimal.Decimal
	Price  decimal.Decimal
	Status string
}

type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
