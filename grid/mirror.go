package grid

// Mirror computes the opposite-side order for a just-filled level: same
// index, same base amount, price offset from the fill price by the level's
// own distance. A filled buy is mirrored by a sell above it and vice versa,
// so one fill captures the spread and restores liquidity on both sides.
func Mirror(filled Level, p Params) Level {
	side := filled.Side.Opposite()
	return Level{
		Symbol: filled.Symbol,
		Index:  filled.Index,
		Side:   side,
		Price:  p.PriceFor(side, filled.Index, filled.Price),
		Amount: filled.Amount,
		Status: Pending,
	}
}
