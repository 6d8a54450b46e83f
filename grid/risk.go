package grid

import "github.com/shopspring/decimal"

// Profile maps a single risk selector to concrete grid parameters. The table
// is fixed: a higher selector commits more of the deposit into a denser,
// tighter ladder.
type Profile struct {
	Selector       int
	DepositPercent int64
	LevelCount     int
	Spread         decimal.Decimal
	Label          string
}

var profiles = []Profile{
	{Selector: 1, DepositPercent: 60, LevelCount: 8, Spread: decimal.NewFromFloat(0.002), Label: "conservative"},
	{Selector: 2, DepositPercent: 70, LevelCount: 10, Spread: decimal.NewFromFloat(0.0015), Label: "moderate"},
	{Selector: 3, DepositPercent: 80, LevelCount: 12, Spread: decimal.NewFromFloat(0.001), Label: "active"},
	{Selector: 4, DepositPercent: 90, LevelCount: 15, Spread: decimal.NewFromFloat(0.0008), Label: "aggressive"},
	{Selector: 5, DepositPercent: 95, LevelCount: 20, Spread: decimal.NewFromFloat(0.0005), Label: "extreme"},
}

func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

var hundred = decimal.NewFromInt(100)

// Resolve derives grid parameters from a risk selector, the observed total
// deposit in quote currency and the number of configured symbols:
// levelNotional = deposit * depositPercent / 100 / symbolCount / levelCount.
// Multiplier and precisions are left for the caller to fill in.
func Resolve(selector int, deposit decimal.Decimal, symbolCount int) (Params, Profile, error) {
	if selector < 1 || selector > len(profiles) {
		return Params{}, Profile{}, configErrorf("risk selector must be 1..%d, got %d", len(profiles), selector)
	}
	if symbolCount == 0 {
		return Params{}, Profile{}, configErrorf("no symbols configured")
	}
	if !deposit.IsPositive() {
		return Params{}, Profile{}, configErrorf("deposit must be positive, got %s", deposit)
	}
	p := profiles[selector-1]
	trading := deposit.Mul(decimal.NewFromInt(p.DepositPercent)).Div(hundred)
	notional := trading.Div(decimal.NewFromInt(int64(symbolCount))).Div(decimal.NewFromInt(int64(p.LevelCount)))
	return Params{
		LevelCount:    p.LevelCount,
		Spread:        p.Spread,
		LevelNotional: notional,
	}, p, nil
}
