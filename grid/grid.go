package grid

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type Status string

const (
	Pending   Status = "pending"
	Active    Status = "active"
	Filled    Status = "filled"
	Cancelled Status = "cancelled"
)

// Level is one rung of the price ladder. Identity is (Symbol, Index, Side);
// the ledger never holds two rows for the same identity.
type Level struct {
	Symbol   string
	Index    int
	Side     Side
	Price    decimal.Decimal
	Amount   decimal.Decimal
	OrderRef string
	Status   Status
}

// Params is the process-lifetime grid configuration, computed once from a
// risk profile and the observed deposit, or supplied directly.
type Params struct {
	LevelCount      int
	Spread          decimal.Decimal
	LevelNotional   decimal.Decimal
	Multiplier      decimal.Decimal
	PricePrecision  int32
	AmountPrecision int32
}

// ConfigError is fatal: it aborts startup.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, a ...interface{}) error {
	return &ConfigError{msg: fmt.Sprintf(format, a...)}
}

// NewConfigError lets other packages report fatal configuration problems
// under the same taxonomy.
func NewConfigError(format string, a ...interface{}) error {
	return configErrorf(format, a...)
}

var one = decimal.NewFromInt(1)

func (p Params) Validate() error {
	if p.LevelCount <= 0 {
		return configErrorf("level count must be positive, got %d", p.LevelCount)
	}
	if !p.Spread.IsPositive() {
		return configErrorf("spread must be positive, got %s", p.Spread)
	}
	if !p.LevelNotional.IsPositive() {
		return configErrorf("level notional must be positive, got %s", p.LevelNotional)
	}
	if p.Multiplier.LessThan(one) {
		return configErrorf("log multiplier must be >= 1, got %s", p.Multiplier)
	}
	return nil
}

// Distance is the fractional offset of level index from the reference price:
// spread * multiplier^index. A multiplier of exactly 1 degenerates to
// uniform spacing, spread * (index+1); the plain power formula would put
// every level at the same price.
func (p Params) Distance(index int) decimal.Decimal {
	if p.Multiplier.Equal(one) {
		return p.Spread.Mul(decimal.NewFromInt(int64(index) + 1))
	}
	return p.Spread.Mul(p.Multiplier.Pow(decimal.NewFromInt(int64(index))))
}

// PriceFor computes the target price of a single level against ref,
// rounded to the configured price precision.
func (p Params) PriceFor(side Side, index int, ref decimal.Decimal) decimal.Decimal {
	d := p.Distance(index)
	if side == Buy {
		return ref.Mul(one.Sub(d)).Round(p.PricePrecision)
	}
	return ref.Mul(one.Add(d)).Round(p.PricePrecision)
}

// Calculate builds the full ladder for one symbol around ref: LevelCount buy
// levels below and LevelCount sell levels above, geometrically spaced so
// liquidity concentrates near the reference price and thins toward extremes.
// Every level starts Pending with no order attached.
func Calculate(symbol string, ref decimal.Decimal, p Params) ([]Level, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !ref.IsPositive() {
		return nil, configErrorf("reference price must be positive, got %s", ref)
	}
	amount := p.LevelNotional.DivRound(ref, p.AmountPrecision)
	levels := make([]Level, 0, 2*p.LevelCount)
	for _, side := range []Side{Buy, Sell} {
		for i := 0; i < p.LevelCount; i++ {
			levels = append(levels, Level{
				Symbol: symbol,
				Index:  i,
				Side:   side,
				Price:  p.PriceFor(side, i, ref),
				Amount: amount,
				Status: Pending,
			})
		}
	}
	return levels, nil
}
