package grid

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xyths/hs"
	"github.com/xyths/loggrid/grid"
)

const (
	DefaultMultiplier      = 1.5
	DefaultInterval        = "10s"
	defaultPricePrecision  = 6
	defaultAmountPrecision = 2
)

// SymbolConf describes one trading pair. Symbol is the venue-native pair
// name; Base and Quote may be left empty when Symbol is written as
// "DOGE/USDT", in which case they are derived and the separator stripped.
type SymbolConf struct {
	Symbol          string `json:"symbol"`
	Base            string `json:"base"`
	Quote           string `json:"quote"`
	PricePrecision  int32  `json:"pricePrecision"`
	AmountPrecision int32  `json:"amountPrecision"`
}

// StrategyConf is the grid parameter surface: either a risk selector
// (parameters derived from the observed deposit) or the explicit
// levelCount/spread/levelNotional triple.
type StrategyConf struct {
	Symbols       []SymbolConf `json:"symbols"`
	RiskLevel     int          `json:"riskLevel"`
	LevelCount    int          `json:"levelCount"`
	Spread        float64      `json:"spread"`
	LevelNotional float64      `json:"levelNotional"`
	LogMultiplier float64      `json:"logMultiplier"`
	Interval      string       `json:"interval"`
}

type JournalConf struct {
	Path string `json:"path"`
}

type Config struct {
	Exchange hs.ExchangeConf    `json:"exchange"`
	Mongo    hs.MongoConf       `json:"mongo"`
	Strategy StrategyConf       `json:"strategy"`
	Journal  JournalConf        `json:"journal"`
	Log      hs.LogConf         `json:"log"`
	Robots   []hs.BroadcastConf `json:"robots"`
}

// normalize validates the config once, centrally, and fills in defaults.
// Any problem is a grid.ConfigError and aborts startup.
func (c *Config) normalize() (time.Duration, error) {
	if c.Exchange.Name == "" {
		return 0, configErrorf("exchange.name is required")
	}
	if len(c.Strategy.Symbols) == 0 {
		return 0, configErrorf("no symbols configured")
	}
	for i := range c.Strategy.Symbols {
		s := &c.Strategy.Symbols[i]
		if s.Base == "" || s.Quote == "" {
			parts := strings.Split(s.Symbol, "/")
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return 0, configErrorf("symbol %q: base/quote not given and not derivable", s.Symbol)
			}
			s.Base, s.Quote = parts[0], parts[1]
			s.Symbol = parts[0] + parts[1]
		}
		if s.PricePrecision == 0 {
			s.PricePrecision = defaultPricePrecision
		}
		if s.AmountPrecision == 0 {
			s.AmountPrecision = defaultAmountPrecision
		}
	}
	if c.Strategy.RiskLevel == 0 {
		if c.Strategy.LevelCount <= 0 || c.Strategy.Spread <= 0 || c.Strategy.LevelNotional <= 0 {
			return 0, configErrorf("either riskLevel or the full levelCount/spread/levelNotional triple is required")
		}
	}
	if c.Strategy.LogMultiplier == 0 {
		c.Strategy.LogMultiplier = DefaultMultiplier
	}
	if c.Strategy.LogMultiplier < 1 {
		return 0, configErrorf("logMultiplier must be >= 1, got %f", c.Strategy.LogMultiplier)
	}
	if c.Strategy.Interval == "" {
		c.Strategy.Interval = DefaultInterval
	}
	interval, err := time.ParseDuration(c.Strategy.Interval)
	if err != nil {
		return 0, configErrorf("bad interval %q: %s", c.Strategy.Interval, err)
	}
	return interval, nil
}

// explicitParams builds grid parameters from the explicit triple.
// Only valid when RiskLevel == 0.
func (c *Config) explicitParams() grid.Params {
	return grid.Params{
		LevelCount:    c.Strategy.LevelCount,
		Spread:        decimal.NewFromFloat(c.Strategy.Spread),
		LevelNotional: decimal.NewFromFloat(c.Strategy.LevelNotional),
		Multiplier:    decimal.NewFromFloat(c.Strategy.LogMultiplier),
	}
}

func configErrorf(format string, a ...interface{}) error {
	return grid.NewConfigError(format, a...)
}
