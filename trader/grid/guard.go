package grid

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xyths/loggrid/exchange"
	"github.com/xyths/loggrid/grid"
)

// Verdict is the guard's answer for one candidate order. Insufficient is
// not an error: the level simply stays pending until capital frees up.
type Verdict struct {
	Sufficient bool
	Shortfall  decimal.Decimal
}

// Guard decides whether uncommitted capital covers a candidate order.
// The venue's own "free" figure already nets out resting orders on some
// account types but not reliably on others, so the guard recomputes the
// reservations itself from the live open-order list on every call.
// It holds no state and caches nothing.
type Guard struct {
	ex      exchange.Gateway
	symbols []SymbolConf
}

func NewGuard(ex exchange.Gateway, symbols []SymbolConf) *Guard {
	return &Guard{ex: ex, symbols: symbols}
}

// Check evaluates one candidate order on symbol sc.
// Buy: free quote balance minus the quote value reserved by every open buy
// order sharing the quote currency, across all symbols.
// Sell: free base balance minus the base amount reserved by open sell
// orders on this symbol. The boundary is inclusive: exact equality passes.
func (g *Guard) Check(ctx context.Context, sc SymbolConf, side grid.Side, amount, price decimal.Decimal) (Verdict, error) {
	if side == grid.Buy {
		return g.checkBuy(ctx, sc, amount, price)
	}
	return g.checkSell(ctx, sc, amount)
}

func (g *Guard) checkBuy(ctx context.Context, sc SymbolConf, amount, price decimal.Decimal) (Verdict, error) {
	required := amount.Mul(price)
	free, err := g.ex.FreeBalance(ctx, sc.Quote)
	if err != nil {
		return Verdict{}, err
	}
	open, err := g.ex.OpenOrders(ctx, "")
	if err != nil {
		return Verdict{}, err
	}
	reserved := decimal.Zero
	for _, o := range open {
		if o.Side != exchange.Buy || !g.sharesQuote(o.Symbol, sc.Quote) {
			continue
		}
		reserved = reserved.Add(o.Amount.Mul(o.Price))
	}
	return verdict(free.Sub(reserved), required), nil
}

func (g *Guard) checkSell(ctx context.Context, sc SymbolConf, amount decimal.Decimal) (Verdict, error) {
	free, err := g.ex.FreeBalance(ctx, sc.Base)
	if err != nil {
		return Verdict{}, err
	}
	open, err := g.ex.OpenOrders(ctx, sc.Symbol)
	if err != nil {
		return Verdict{}, err
	}
	reserved := decimal.Zero
	for _, o := range open {
		if o.Side != exchange.Sell {
			continue
		}
		reserved = reserved.Add(o.Amount)
	}
	return verdict(free.Sub(reserved), amount), nil
}

// sharesQuote reports whether an open order's symbol trades against quote.
// Configured symbols are matched exactly; anything else falls back to a
// suffix match so that stray manual orders still count as reservations.
func (g *Guard) sharesQuote(symbol, quote string) bool {
	for _, s := range g.symbols {
		if strings.EqualFold(s.Symbol, symbol) {
			return strings.EqualFold(s.Quote, quote)
		}
	}
	return strings.HasSuffix(strings.ToUpper(symbol), strings.ToUpper(quote))
}

func verdict(available, required decimal.Decimal) Verdict {
	if available.GreaterThanOrEqual(required) {
		return Verdict{Sufficient: true, Shortfall: decimal.Zero}
	}
	return Verdict{Sufficient: false, Shortfall: required.Sub(available)}
}
