package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xyths/hs"
	"github.com/xyths/hs/broadcast"
	"github.com/xyths/loggrid/exchange"
	"github.com/xyths/loggrid/exchange/bybit"
	"github.com/xyths/loggrid/exchange/huobi"
	"github.com/xyths/loggrid/grid"
	"github.com/xyths/loggrid/journal"
	"github.com/xyths/loggrid/ledger"
	"github.com/xyths/loggrid/research"
	"github.com/xyths/loggrid/trader"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var _ trader.Trader = (*GridTrader)(nil)

const maxSuspend = 10 * time.Minute

var one = decimal.NewFromInt(1)

// Store is the slice of the level ledger the supervisor drives.
type Store interface {
	Upsert(ctx context.Context, level grid.Level, preserve bool) error
	LoadGrids(ctx context.Context) (map[string][]grid.Level, error)
	UpdateStatus(ctx context.Context, symbol string, index int, side grid.Side, status grid.Status) error
	UpdateOrder(ctx context.Context, symbol string, index int, side grid.Side, price decimal.Decimal, orderRef string, status grid.Status) error
	Wipe(ctx context.Context, symbol string) (int64, error)
}

// persistenceError marks a failed ledger write. An unpersisted transition
// must not be treated as committed, so these abort the whole run instead of
// being swallowed like per-level gateway errors.
type persistenceError struct {
	err error
}

func (e *persistenceError) Error() string { return fmt.Sprintf("persistence: %s", e.err) }
func (e *persistenceError) Unwrap() error { return e.err }

func persist(err error) error {
	if err == nil {
		return nil
	}
	return &persistenceError{err: err}
}

// GridTrader runs the price-grid strategy: it keeps one ladder of resting
// buy/sell orders per configured symbol, reconciles the ladder against the
// venue every tick and mirrors filled levels to the opposite side.
// Single-threaded by design: symbols are processed sequentially within a
// tick so the balance guard's view of reservations stays consistent.
type GridTrader struct {
	config   Config
	interval time.Duration

	Sugar   *zap.SugaredLogger
	db      *mongo.Database
	store   Store
	ex      exchange.Gateway
	guard   *Guard
	robots  []broadcast.Broadcaster
	journal *journal.Journal

	params   grid.Params
	profile  grid.Profile
	grids    map[string][]grid.Level
	breakers map[string]*breaker
	stopCh   chan struct{}
}

func New(configFilename string) (*GridTrader, error) {
	cfg := Config{}
	if err := hs.ParseJsonConfig(configFilename, &cfg); err != nil {
		return nil, err
	}
	interval, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	return &GridTrader{
		config:   cfg,
		interval: interval,
		grids:    make(map[string][]grid.Level),
		breakers: make(map[string]*breaker),
		stopCh:   make(chan struct{}, 1),
	}, nil
}

func (t *GridTrader) Init(ctx context.Context) error {
	l, err := hs.NewZapLogger(t.config.Log)
	if err != nil {
		return err
	}
	t.Sugar = l.Sugar()
	t.Sugar.Info("logger initialized")

	db, err := hs.ConnectMongo(ctx, t.config.Mongo)
	if err != nil {
		return err
	}
	t.db = db
	led := ledger.New(db)
	if err = led.Init(ctx); err != nil {
		return persist(err)
	}
	t.store = led
	t.Sugar.Info("ledger initialized")

	if err = t.initGateway(); err != nil {
		return err
	}
	t.guard = NewGuard(t.ex, t.config.Strategy.Symbols)

	for _, conf := range t.config.Robots {
		t.robots = append(t.robots, broadcast.New(conf))
	}

	if t.config.Journal.Path != "" {
		j, err := journal.Open(t.config.Journal.Path)
		if err != nil {
			return err
		}
		t.journal = j
		t.Sugar.Infof("journal opened at %s", t.config.Journal.Path)
	}

	if err = t.initParams(ctx); err != nil {
		return err
	}
	for _, sc := range t.config.Strategy.Symbols {
		t.breakers[sc.Symbol] = newBreaker(t.interval, maxSuspend)
	}
	t.Sugar.Info("grid trader initialized")
	return nil
}

func (t *GridTrader) initGateway() error {
	cfg := t.config.Exchange
	switch cfg.Name {
	case "bybit":
		t.ex = bybit.New(cfg.Key, cfg.Secret, cfg.Host)
	case "huobi":
		ex, err := huobi.New(cfg.Key, cfg.Secret, cfg.Host)
		if err != nil {
			return err
		}
		t.ex = ex
	default:
		return grid.NewConfigError("unknown exchange %q", cfg.Name)
	}
	return nil
}

// initParams derives the grid parameters either from the risk selector and
// the observed deposit or from the explicit triple.
func (t *GridTrader) initParams(ctx context.Context) error {
	if t.config.Strategy.RiskLevel > 0 {
		quote := t.config.Strategy.Symbols[0].Quote
		deposit, err := t.ex.FreeBalance(ctx, quote)
		if err != nil {
			return err
		}
		params, profile, err := grid.Resolve(t.config.Strategy.RiskLevel, deposit, len(t.config.Strategy.Symbols))
		if err != nil {
			return err
		}
		t.params = params
		t.profile = profile
		t.Sugar.Infow("risk parameters resolved",
			"selector", profile.Selector,
			"profile", profile.Label,
			"deposit", deposit,
			"levelCount", params.LevelCount,
			"spread", params.Spread,
			"levelNotional", params.LevelNotional,
		)
	} else {
		t.params = t.config.explicitParams()
	}
	t.params.Multiplier = decimal.NewFromFloat(t.config.Strategy.LogMultiplier)
	return t.params.Validate()
}

func (t *GridTrader) paramsFor(sc SymbolConf) grid.Params {
	p := t.params
	p.PricePrecision = sc.PricePrecision
	p.AmountPrecision = sc.AmountPrecision
	return p
}

func (t *GridTrader) Print(ctx context.Context) error {
	for _, sc := range t.config.Strategy.Symbols {
		ticker, err := t.ex.Ticker(ctx, sc.Symbol)
		if err != nil {
			t.Sugar.Errorf("ticker %s error: %s", sc.Symbol, err)
			continue
		}
		levels, err := grid.Calculate(sc.Symbol, ticker.Last, t.paramsFor(sc))
		if err != nil {
			return err
		}
		t.Sugar.Infof("%s reference price %s", sc.Symbol, ticker.Last)
		t.Sugar.Infof("Index\tSide\tPrice\tAmount")
		for _, lv := range levels {
			t.Sugar.Infof("%2d\t%s\t%s\t%s", lv.Index, lv.Side,
				lv.Price.StringFixed(sc.PricePrecision),
				lv.Amount.StringFixed(sc.AmountPrecision))
		}
	}
	return nil
}

func (t *GridTrader) Start(ctx context.Context) error {
	if err := t.loadOrCreate(ctx); err != nil {
		return err
	}
	t.reconcile(ctx)
	if err := t.tick(ctx); err != nil {
		return t.finish(err)
	}
	for {
		select {
		case <-ctx.Done():
			t.Sugar.Info("context cancelled")
			return nil
		case <-t.stopCh:
			t.Sugar.Info("grid trader stopped")
			return nil
		case <-time.After(t.interval):
			if err := t.tick(ctx); err != nil {
				return t.finish(err)
			}
		}
	}
}

func (t *GridTrader) finish(err error) error {
	if errors.Is(err, context.Canceled) {
		t.Sugar.Info("context cancelled")
		return nil
	}
	return err
}

func (t *GridTrader) Stop(ctx context.Context) error {
	t.stopCh <- struct{}{}
	return nil
}

func (t *GridTrader) Close(ctx context.Context) {
	if t.journal != nil {
		_ = t.journal.Close()
	}
	if t.db != nil {
		_ = t.db.Client().Disconnect(ctx)
	}
}

// loadOrCreate resumes persisted grids and builds fresh ones for symbols
// that have no rows yet. A symbol whose reference price is unavailable at
// startup is deferred to a later tick, not failed.
func (t *GridTrader) loadOrCreate(ctx context.Context) error {
	grids, err := t.store.LoadGrids(ctx)
	if err != nil {
		return persist(err)
	}
	for _, sc := range t.config.Strategy.Symbols {
		if levels := grids[sc.Symbol]; len(levels) > 0 {
			t.grids[sc.Symbol] = levels
			t.Sugar.Infow("grid restored", "symbol", sc.Symbol, "levels", len(levels))
			continue
		}
		if err := t.createGrid(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}

// reconcile sweeps venue open orders against the ledger once at startup.
// An open order no row references was placed in the window between a
// successful placement and the ledger write; its slot has already been
// regenerated, so the orphan is cancelled to free its reservation. Sweep
// failures are logged and left for the clear command.
func (t *GridTrader) reconcile(ctx context.Context) {
	known := make(map[string]bool)
	for _, levels := range t.grids {
		for _, lv := range levels {
			if lv.OrderRef != "" {
				known[lv.OrderRef] = true
			}
		}
	}
	for _, sc := range t.config.Strategy.Symbols {
		open, err := t.ex.OpenOrders(ctx, sc.Symbol)
		if err != nil {
			t.Sugar.Errorw("open order sweep failed", "symbol", sc.Symbol, "error", err)
			continue
		}
		for _, o := range open {
			if known[o.Id] {
				continue
			}
			t.Sugar.Warnw("orphan order found, cancelling",
				"symbol", sc.Symbol, "order", o.Id,
				"side", o.Side, "price", o.Price, "amount", o.Amount)
			if err := t.ex.CancelOrder(ctx, sc.Symbol, o.Id); err != nil {
				t.Sugar.Errorw("orphan cancel failed",
					"symbol", sc.Symbol, "order", o.Id, "error", err)
			}
		}
	}
}

func (t *GridTrader) createGrid(ctx context.Context, sc SymbolConf) error {
	ticker, err := t.ex.Ticker(ctx, sc.Symbol)
	if err != nil {
		t.Sugar.Errorw("no reference price, grid deferred",
			"symbol", sc.Symbol, "error", err)
		return nil
	}
	levels, err := grid.Calculate(sc.Symbol, ticker.Last, t.paramsFor(sc))
	if err != nil {
		return err
	}
	for _, lv := range levels {
		if err := persist(t.store.Upsert(ctx, lv, false)); err != nil {
			return err
		}
	}
	t.grids[sc.Symbol] = levels
	t.Sugar.Infow("grid created",
		"symbol", sc.Symbol,
		"levels", len(levels),
		"reference", ticker.Last,
	)
	return nil
}

// tick drives one reconciliation pass over all symbols in configured order.
// Symbol-level failures trip that symbol's breaker and never abort the
// pass; only persistence failures and cancellation propagate.
func (t *GridTrader) tick(ctx context.Context) error {
	for _, sc := range t.config.Strategy.Symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		br := t.breakers[sc.Symbol]
		if d := br.suspended(time.Now()); d > 0 {
			t.Sugar.Infow("symbol suspended", "symbol", sc.Symbol, "resume_in", d)
			continue
		}
		if err := t.tickSymbol(ctx, sc); err != nil {
			var pe *persistenceError
			if errors.As(err, &pe) || errors.Is(err, context.Canceled) {
				return err
			}
			br.fail(time.Now())
			t.Sugar.Errorw("symbol tick failed", "symbol", sc.Symbol, "error", err)
			continue
		}
		br.ok()
	}
	return nil
}

func (t *GridTrader) tickSymbol(ctx context.Context, sc SymbolConf) error {
	ticker, err := t.ex.Ticker(ctx, sc.Symbol)
	if err != nil {
		return err
	}
	ref := ticker.Last
	if !ref.IsPositive() {
		return &exchange.MarketDataError{Symbol: sc.Symbol, Err: fmt.Errorf("non-positive last price %s", ref)}
	}
	if len(t.grids[sc.Symbol]) == 0 {
		if err := t.createGrid(ctx, sc); err != nil {
			return err
		}
	}
	if err := t.sync(ctx, sc); err != nil {
		return err
	}
	if err := t.regenerate(ctx, sc, ref); err != nil {
		return err
	}
	return t.place(ctx, sc, ref)
}

// sync reconciles every active level with the venue. Per-level gateway
// errors are logged and leave the level unchanged for this tick.
func (t *GridTrader) sync(ctx context.Context, sc SymbolConf) error {
	levels := t.grids[sc.Symbol]
	for i := range levels {
		lv := &levels[i]
		if lv.Status != grid.Active || lv.OrderRef == "" {
			continue
		}
		status, err := t.ex.OrderStatus(ctx, lv.OrderRef, sc.Symbol)
		if errors.Is(err, exchange.ErrOrderNotFound) {
			// ambiguous: filled-and-purged or never existed; touch nothing
			t.Sugar.Warnw("order unknown to venue",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side, "order", lv.OrderRef)
			continue
		}
		if err != nil {
			t.Sugar.Errorw("order status query failed",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side, "order", lv.OrderRef, "error", err)
			continue
		}
		switch status {
		case exchange.OrderStatusFilled:
			if err := t.onFilled(ctx, sc, lv); err != nil {
				return err
			}
		case exchange.OrderStatusCancelled:
			if err := persist(t.store.UpdateStatus(ctx, sc.Symbol, lv.Index, lv.Side, grid.Cancelled)); err != nil {
				return err
			}
			lv.Status = grid.Cancelled
			t.Sugar.Infow("order cancelled on venue",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side, "price", lv.Price)
		}
	}
	return nil
}

func (t *GridTrader) onFilled(ctx context.Context, sc SymbolConf, lv *grid.Level) error {
	if err := persist(t.store.UpdateStatus(ctx, sc.Symbol, lv.Index, lv.Side, grid.Filled)); err != nil {
		return err
	}
	lv.Status = grid.Filled
	t.Sugar.Infow("order filled",
		"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side,
		"price", lv.Price, "amount", lv.Amount)
	t.recordFill(sc, *lv)
	t.announce(sc, *lv)
	return t.mirror(ctx, sc, *lv)
}

// mirror places the opposite-side order for a filled level. When capital is
// short the mirror level is persisted pending and retried on later ticks
// instead of being dropped.
func (t *GridTrader) mirror(ctx context.Context, sc SymbolConf, filled grid.Level) error {
	m := grid.Mirror(filled, t.paramsFor(sc))
	// the mirror supersedes whatever occupies the opposite identity; a
	// still-live order there must come off the book first
	if old := t.levelAt(sc.Symbol, m.Index, m.Side); old != nil && old.Status == grid.Active && old.OrderRef != "" {
		if err := t.ex.CancelOrder(ctx, sc.Symbol, old.OrderRef); err != nil {
			t.Sugar.Errorw("cancel of superseded order failed",
				"symbol", sc.Symbol, "level", old.Index, "side", old.Side, "order", old.OrderRef, "error", err)
		} else {
			t.Sugar.Infow("superseded order cancelled",
				"symbol", sc.Symbol, "level", old.Index, "side", old.Side, "order", old.OrderRef)
		}
	}
	v, err := t.guard.Check(ctx, sc, m.Side, m.Amount, m.Price)
	if err != nil {
		t.Sugar.Errorw("balance check failed, mirror deferred",
			"symbol", sc.Symbol, "level", m.Index, "side", m.Side, "error", err)
		return t.park(ctx, sc, m)
	}
	if !v.Sufficient {
		t.Sugar.Infow("insufficient balance, mirror deferred",
			"symbol", sc.Symbol, "level", m.Index, "side", m.Side,
			"price", m.Price, "shortfall", v.Shortfall)
		return t.park(ctx, sc, m)
	}
	orderId, err := t.ex.PlaceLimitOrder(ctx, sc.Symbol, string(m.Side), m.Amount, m.Price)
	if err != nil {
		t.Sugar.Errorw("mirror placement failed, level left pending",
			"symbol", sc.Symbol, "level", m.Index, "side", m.Side, "error", err)
		return t.park(ctx, sc, m)
	}
	m.Status = grid.Active
	m.OrderRef = orderId
	if err := persist(t.store.Upsert(ctx, m, true)); err != nil {
		return err
	}
	t.setLevel(sc.Symbol, m)
	t.Sugar.Infow("mirror order placed",
		"symbol", sc.Symbol, "level", m.Index, "side", m.Side,
		"price", m.Price, "amount", m.Amount, "order", orderId)
	return nil
}

// park persists a mirror level as pending so a later tick can place it.
func (t *GridTrader) park(ctx context.Context, sc SymbolConf, m grid.Level) error {
	m.Status = grid.Pending
	m.OrderRef = ""
	if err := persist(t.store.Upsert(ctx, m, true)); err != nil {
		return err
	}
	t.setLevel(sc.Symbol, m)
	return nil
}

func (t *GridTrader) levelAt(symbol string, index int, side grid.Side) *grid.Level {
	levels := t.grids[symbol]
	for i := range levels {
		if levels[i].Index == index && levels[i].Side == side {
			return &levels[i]
		}
	}
	return nil
}

func (t *GridTrader) setLevel(symbol string, lv grid.Level) {
	levels := t.grids[symbol]
	for i := range levels {
		if levels[i].Index == lv.Index && levels[i].Side == lv.Side {
			levels[i] = lv
			return
		}
	}
	t.grids[symbol] = append(levels, lv)
}

// regenerate refreshes the target price of every level slot that has no
// live order, using the current reference price but keeping the level's own
// offset. Filled and cancelled instances become pending again here.
func (t *GridTrader) regenerate(ctx context.Context, sc SymbolConf, ref decimal.Decimal) error {
	p := t.paramsFor(sc)
	levels := t.grids[sc.Symbol]
	for i := range levels {
		lv := &levels[i]
		if lv.Status == grid.Active && lv.OrderRef != "" {
			continue
		}
		price := p.PriceFor(lv.Side, lv.Index, ref)
		if lv.Status == grid.Pending && lv.OrderRef == "" && lv.Price.Equal(price) {
			continue
		}
		if err := persist(t.store.UpdateOrder(ctx, sc.Symbol, lv.Index, lv.Side, price, "", grid.Pending)); err != nil {
			return err
		}
		t.Sugar.Debugw("level regenerated",
			"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side,
			"old", lv.Price, "new", price)
		lv.Price = price
		lv.OrderRef = ""
		lv.Status = grid.Pending
	}
	return nil
}

// place submits pending levels, nearest to the reference price first, so
// capital goes to the levels most likely to fill soon. Insufficient balance
// skips the level for this tick; capital running out mid-pass just leaves
// the farther levels pending.
func (t *GridTrader) place(ctx context.Context, sc SymbolConf, ref decimal.Decimal) error {
	levels := t.grids[sc.Symbol]
	var candidates []*grid.Level
	for i := range levels {
		if levels[i].Status == grid.Pending {
			candidates = append(candidates, &levels[i])
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		di := candidates[i].Price.Sub(ref).Abs()
		dj := candidates[j].Price.Sub(ref).Abs()
		return di.LessThan(dj)
	})
	placed, skipped := 0, 0
	for _, lv := range candidates {
		v, err := t.guard.Check(ctx, sc, lv.Side, lv.Amount, lv.Price)
		if err != nil {
			t.Sugar.Errorw("balance check failed, placement skipped",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side, "error", err)
			skipped++
			continue
		}
		if !v.Sufficient {
			t.Sugar.Infow("placement skipped, insufficient balance",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side,
				"price", lv.Price, "shortfall", v.Shortfall)
			skipped++
			continue
		}
		orderId, err := t.ex.PlaceLimitOrder(ctx, sc.Symbol, string(lv.Side), lv.Amount, lv.Price)
		if err != nil {
			t.Sugar.Errorw("placement failed, retry next tick",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side,
				"price", lv.Price, "error", err)
			skipped++
			continue
		}
		if err := persist(t.store.UpdateOrder(ctx, sc.Symbol, lv.Index, lv.Side, lv.Price, orderId, grid.Active)); err != nil {
			return err
		}
		lv.OrderRef = orderId
		lv.Status = grid.Active
		placed++
		t.Sugar.Infow("order placed",
			"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side,
			"price", lv.Price, "amount", lv.Amount, "order", orderId)
	}
	if placed+skipped > 0 {
		t.Sugar.Infow("placement pass done",
			"symbol", sc.Symbol, "placed", placed, "skipped", skipped)
	}
	return nil
}

// Clear cancels every live grid order and removes the symbol's rows.
func (t *GridTrader) Clear(ctx context.Context, dryRun bool) error {
	grids, err := t.store.LoadGrids(ctx)
	if err != nil {
		return persist(err)
	}
	for _, sc := range t.config.Strategy.Symbols {
		cancelled := make(map[string]bool)
		for _, lv := range grids[sc.Symbol] {
			if lv.OrderRef == "" || lv.Status != grid.Active {
				continue
			}
			if dryRun {
				t.Sugar.Infow("would cancel order",
					"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side, "order", lv.OrderRef)
				continue
			}
			if err := t.ex.CancelOrder(ctx, sc.Symbol, lv.OrderRef); err != nil {
				t.Sugar.Errorw("cancel failed",
					"symbol", sc.Symbol, "order", lv.OrderRef, "error", err)
				continue
			}
			cancelled[lv.OrderRef] = true
			t.Sugar.Infow("order cancelled",
				"symbol", sc.Symbol, "level", lv.Index, "side", lv.Side, "order", lv.OrderRef)
		}
		if dryRun {
			t.Sugar.Infof("would wipe %s levels", sc.Symbol)
			continue
		}
		// residual open orders the ledger never knew about
		open, err := t.ex.OpenOrders(ctx, sc.Symbol)
		if err != nil {
			t.Sugar.Errorw("open order sweep failed", "symbol", sc.Symbol, "error", err)
		}
		for _, o := range open {
			if cancelled[o.Id] {
				continue
			}
			if err := t.ex.CancelOrder(ctx, sc.Symbol, o.Id); err != nil {
				t.Sugar.Errorw("cancel failed",
					"symbol", sc.Symbol, "order", o.Id, "error", err)
				continue
			}
			t.Sugar.Infow("residual order cancelled", "symbol", sc.Symbol, "order", o.Id)
		}
		n, err := t.store.Wipe(ctx, sc.Symbol)
		if err != nil {
			return persist(err)
		}
		t.Sugar.Infof("wiped %d %s levels", n, sc.Symbol)
	}
	return nil
}

// Suggest reads recent daily volatility and recommends a risk selector for
// each configured symbol. Needs only the gateway, not the ledger, so it
// does its own lightweight setup instead of Init.
func (t *GridTrader) Suggest(ctx context.Context) error {
	l, err := hs.NewZapLogger(t.config.Log)
	if err != nil {
		return err
	}
	t.Sugar = l.Sugar()
	if err := t.initGateway(); err != nil {
		return err
	}
	profiles := grid.Profiles()
	for _, sc := range t.config.Strategy.Symbols {
		natr, err := research.Natr(ctx, t.ex, sc.Symbol)
		if err != nil {
			t.Sugar.Errorf("volatility screen for %s failed: %s", sc.Symbol, err)
			continue
		}
		p := profiles[research.SuggestSelector(natr)-1]
		t.Sugar.Infof("%s: NATR %.2f%%, suggested risk level %d (%s): %d levels, %s spread, %d%% of deposit",
			sc.Symbol, natr, p.Selector, p.Label, p.LevelCount, p.Spread, p.DepositPercent)
	}
	return nil
}

// Clean compacts the level ledger, removing stale duplicate rows left by
// older releases that wrote blind inserts.
func (t *GridTrader) Clean(ctx context.Context, dryRun bool) error {
	l, err := hs.NewZapLogger(t.config.Log)
	if err != nil {
		return err
	}
	t.Sugar = l.Sugar()
	db, err := hs.ConnectMongo(ctx, t.config.Mongo)
	if err != nil {
		return err
	}
	t.db = db
	led := ledger.New(db)
	if dryRun {
		n, err := led.StaleRows(ctx)
		if err != nil {
			return persist(err)
		}
		t.Sugar.Infof("would remove %d stale level rows", n)
		return nil
	}
	n, err := led.Compact(ctx)
	if err != nil {
		return persist(err)
	}
	t.Sugar.Infof("removed %d stale level rows", n)
	return nil
}

func (t *GridTrader) recordFill(sc SymbolConf, lv grid.Level) {
	if t.journal == nil {
		return
	}
	profit := decimal.Zero
	if lv.Side == grid.Sell {
		// spread captured against the mirrored buy implied by this level's offset
		implied := lv.Price.Div(one.Add(t.paramsFor(sc).Distance(lv.Index)))
		profit = lv.Price.Sub(implied).Mul(lv.Amount)
	}
	err := t.journal.Record(journal.Trade{
		Symbol: sc.Symbol,
		Side:   string(lv.Side),
		Amount: lv.Amount.String(),
		Price:  lv.Price.String(),
		Profit: profit.Round(8).String(),
	})
	if err != nil {
		t.Sugar.Errorf("journal write error: %s", err)
	}
}

func (t *GridTrader) announce(sc SymbolConf, lv grid.Level) {
	if len(t.robots) == 0 {
		return
	}
	labels := []string{t.config.Exchange.Label}
	timeStr := time.Now().Format("2006-01-02 15:04:05")
	total := lv.Price.Mul(lv.Amount)
	for _, robot := range t.robots {
		robot.Broadcast(labels,
			strings.ToUpper(sc.Symbol),
			timeStr,
			string(lv.Side),
			lv.Price.String(),
			lv.Amount.String(),
			total.String(),
			"-",
		)
	}
}
