package grid

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xyths/loggrid/exchange"
	"github.com/xyths/loggrid/grid"
	"go.uber.org/zap"
)

type levelKey struct {
	symbol string
	index  int
	side   grid.Side
}

type memStore struct {
	rows    map[levelKey]grid.Level
	failure error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[levelKey]grid.Level)}
}

func (m *memStore) Upsert(_ context.Context, level grid.Level, preserve bool) error {
	if m.failure != nil {
		return m.failure
	}
	if !preserve {
		level.Status = grid.Pending
		level.OrderRef = ""
	}
	m.rows[levelKey{level.Symbol, level.Index, level.Side}] = level
	return nil
}

func (m *memStore) LoadGrids(_ context.Context) (map[string][]grid.Level, error) {
	if m.failure != nil {
		return nil, m.failure
	}
	out := make(map[string][]grid.Level)
	for _, lv := range m.rows {
		out[lv.Symbol] = append(out[lv.Symbol], lv)
	}
	for _, levels := range out {
		sort.Slice(levels, func(i, j int) bool {
			if levels[i].Side != levels[j].Side {
				return levels[i].Side < levels[j].Side
			}
			return levels[i].Index < levels[j].Index
		})
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, symbol string, index int, side grid.Side, status grid.Status) error {
	if m.failure != nil {
		return m.failure
	}
	k := levelKey{symbol, index, side}
	lv, ok := m.rows[k]
	if !ok {
		return nil
	}
	lv.Status = status
	m.rows[k] = lv
	return nil
}

func (m *memStore) UpdateOrder(_ context.Context, symbol string, index int, side grid.Side, price decimal.Decimal, orderRef string, status grid.Status) error {
	if m.failure != nil {
		return m.failure
	}
	k := levelKey{symbol, index, side}
	lv, ok := m.rows[k]
	if !ok {
		return nil
	}
	lv.Price = price
	lv.OrderRef = orderRef
	lv.Status = status
	m.rows[k] = lv
	return nil
}

func (m *memStore) Wipe(_ context.Context, symbol string) (int64, error) {
	if m.failure != nil {
		return 0, m.failure
	}
	var n int64
	for k := range m.rows {
		if k.symbol == symbol {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func newTestTrader(ex exchange.Gateway, store Store) *GridTrader {
	cfg := Config{}
	cfg.Exchange.Label = "test"
	cfg.Strategy.Symbols = []SymbolConf{
		{Symbol: "DOGEUSDT", Base: "DOGE", Quote: "USDT", PricePrecision: 4, AmountPrecision: 1},
	}
	tr := &GridTrader{
		config:   cfg,
		interval: time.Second,
		Sugar:    zap.NewNop().Sugar(),
		store:    store,
		ex:       ex,
		params: grid.Params{
			LevelCount:    2,
			Spread:        decimal.RequireFromString("0.01"),
			LevelNotional: decimal.NewFromInt(10),
			Multiplier:    decimal.NewFromInt(2),
		},
		grids:    make(map[string][]grid.Level),
		breakers: make(map[string]*breaker),
		stopCh:   make(chan struct{}, 1),
	}
	tr.guard = NewGuard(ex, tr.config.Strategy.Symbols)
	for _, sc := range tr.config.Strategy.Symbols {
		tr.breakers[sc.Symbol] = newBreaker(tr.interval, maxSuspend)
	}
	return tr
}

func richGateway() *fakeGateway {
	ex := newFakeGateway()
	ex.tickers["DOGEUSDT"] = exchange.Ticker{Last: decimal.RequireFromString("0.25")}
	ex.balances["USDT"] = decimal.NewFromInt(1000)
	ex.balances["DOGE"] = decimal.NewFromInt(1000)
	return ex
}

func TestTickCreatesAndPlacesGrid(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	require.Len(t, store.rows, 4, "2 buy + 2 sell levels persisted")

	require.NoError(t, tr.tick(ctx))
	require.Len(t, ex.placed, 4)

	// nearest levels go out first: the 1% pair before the 2% pair
	ref := decimal.RequireFromString("0.25")
	for i := 1; i < len(ex.placed); i++ {
		prev := ex.placed[i-1].Price.Sub(ref).Abs()
		cur := ex.placed[i].Price.Sub(ref).Abs()
		require.True(t, prev.LessThanOrEqual(cur),
			"placement %d (%s) farther from reference than placement %d (%s)",
			i-1, ex.placed[i-1].Price, i, ex.placed[i].Price)
	}
	near := []string{ex.placed[0].Price.String(), ex.placed[1].Price.String()}
	require.ElementsMatch(t, []string{"0.2475", "0.2525"}, near)

	for k, lv := range store.rows {
		require.Equal(t, grid.Active, lv.Status, "%v", k)
		require.NotEmpty(t, lv.OrderRef, "%v", k)
	}

	// prices offset by 1% and 2% from the 0.25 reference
	buy0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}]
	require.Equal(t, "0.2475", buy0.Price.String())
	sell1 := store.rows[levelKey{"DOGEUSDT", 1, grid.Sell}]
	require.Equal(t, "0.255", sell1.Price.String())
	require.Equal(t, "40", buy0.Amount.String())
}

func TestFillSpawnsMirror(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	require.NoError(t, tr.tick(ctx))

	buy0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}]
	oldSell0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Sell}]
	ex.statuses[buy0.OrderRef] = exchange.OrderStatusFilled

	require.NoError(t, tr.tick(ctx))

	require.Equal(t, grid.Filled, store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}].Status)
	require.Contains(t, ex.cancelled, oldSell0.OrderRef, "superseded opposite order is cancelled")

	// sell mirror offset 1% above the 0.2475 fill
	sell0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Sell}]
	require.Equal(t, grid.Active, sell0.Status)
	require.Equal(t, "0.25", sell0.Price.String())
	require.NotEqual(t, oldSell0.OrderRef, sell0.OrderRef)

	// the filled buy slot is regenerated and replaced on the next pass
	require.NoError(t, tr.tick(ctx))
	buy0 = store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}]
	require.Equal(t, grid.Active, buy0.Status)
	require.Equal(t, "0.2475", buy0.Price.String())
}

func TestMirrorDeferredWhenShort(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	require.NoError(t, tr.tick(ctx))

	buy0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}]
	ex.statuses[buy0.OrderRef] = exchange.OrderStatusFilled
	ex.balances["DOGE"] = decimal.Zero

	require.NoError(t, tr.tick(ctx))

	// mirror could not be afforded: slot parked pending, not dropped
	sell0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Sell}]
	require.Equal(t, grid.Pending, sell0.Status)
	require.Empty(t, sell0.OrderRef)

	ex.balances["DOGE"] = decimal.NewFromInt(1000)
	require.NoError(t, tr.tick(ctx))
	sell0 = store.rows[levelKey{"DOGEUSDT", 0, grid.Sell}]
	require.Equal(t, grid.Active, sell0.Status, "parked mirror placed once capital frees up")
}

func TestUnknownOrderLeavesLevelUntouched(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	require.NoError(t, tr.tick(ctx))

	buy0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}]
	delete(ex.statuses, buy0.OrderRef)

	require.NoError(t, tr.tick(ctx))
	after := store.rows[levelKey{"DOGEUSDT", 0, grid.Buy}]
	require.Equal(t, grid.Active, after.Status)
	require.Equal(t, buy0.OrderRef, after.OrderRef)
}

func TestRestartReclassifiesLevels(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	ctx := context.Background()

	// pre-crash state: one filled on venue, one cancelled, one still open
	seed := []struct {
		index  int
		side   grid.Side
		price  string
		ref    string
		status string
	}{
		{0, grid.Buy, "0.2475", "f1", exchange.OrderStatusFilled},
		{1, grid.Buy, "0.245", "f2", exchange.OrderStatusCancelled},
		{0, grid.Sell, "0.2525", "f3", exchange.OrderStatusOpen},
	}
	for _, s := range seed {
		require.NoError(t, store.Upsert(ctx, grid.Level{
			Symbol:   "DOGEUSDT",
			Index:    s.index,
			Side:     s.side,
			Price:    decimal.RequireFromString(s.price),
			Amount:   decimal.NewFromInt(40),
			OrderRef: s.ref,
			Status:   grid.Active,
		}, true))
		ex.statuses[s.ref] = s.status
	}

	tr := newTestTrader(ex, store)
	require.NoError(t, tr.loadOrCreate(ctx))
	require.Len(t, tr.grids["DOGEUSDT"], 3, "restored, not rebuilt")

	require.NoError(t, tr.tick(ctx))

	require.Contains(t, ex.cancelled, "f3", "fill of buy 0 supersedes the resting sell 0")
	sell0 := store.rows[levelKey{"DOGEUSDT", 0, grid.Sell}]
	require.Equal(t, grid.Active, sell0.Status)
	require.Equal(t, "0.25", sell0.Price.String())

	// cancelled buy 1 regenerated at the current reference and replaced
	buy1 := store.rows[levelKey{"DOGEUSDT", 1, grid.Buy}]
	require.Equal(t, grid.Active, buy1.Status)
	require.Equal(t, "0.245", buy1.Price.String())
	require.NotEqual(t, "f2", buy1.OrderRef)
}

func TestStartupCancelsOrphanOrders(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	ctx := context.Background()

	// pre-crash state: sell 0 is tracked, but the crash hit between a
	// buy placement succeeding and its ledger write
	require.NoError(t, store.Upsert(ctx, grid.Level{
		Symbol:   "DOGEUSDT",
		Index:    0,
		Side:     grid.Sell,
		Price:    decimal.RequireFromString("0.2525"),
		Amount:   decimal.NewFromInt(40),
		OrderRef: "f1",
		Status:   grid.Active,
	}, true))
	ex.statuses["f1"] = exchange.OrderStatusOpen
	ex.statuses["ghost"] = exchange.OrderStatusOpen
	ex.open = []exchange.Order{
		{Id: "f1", Symbol: "DOGEUSDT", Side: exchange.Sell,
			Price: decimal.RequireFromString("0.2525"), Amount: decimal.NewFromInt(40),
			Status: exchange.OrderStatusOpen},
		{Id: "ghost", Symbol: "DOGEUSDT", Side: exchange.Buy,
			Price: decimal.RequireFromString("0.2475"), Amount: decimal.NewFromInt(40),
			Status: exchange.OrderStatusOpen},
	}

	tr := newTestTrader(ex, store)
	require.NoError(t, tr.loadOrCreate(ctx))
	tr.reconcile(ctx)

	require.Contains(t, ex.cancelled, "ghost", "untracked order is cancelled")
	require.NotContains(t, ex.cancelled, "f1", "tracked order survives the sweep")
}

func TestPersistenceFailureAborts(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	store.failure = errors.New("disk on fire")

	err := tr.tick(ctx)
	require.Error(t, err)
	var pe *persistenceError
	require.True(t, errors.As(err, &pe))
}

func TestBreakerSuspendsSickSymbol(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	ex.tickerErr["DOGEUSDT"] = errors.New("venue 502")

	for i := 0; i < breakerThreshold; i++ {
		require.NoError(t, tr.tick(ctx), "market data errors never abort the pass")
	}
	require.False(t, tr.breakers["DOGEUSDT"].ready(time.Now()))

	// while suspended the symbol is skipped entirely
	before := len(ex.placed)
	require.NoError(t, tr.tick(ctx))
	require.Len(t, ex.placed, before)
}

func TestClearCancelsAndWipes(t *testing.T) {
	ex := richGateway()
	store := newMemStore()
	tr := newTestTrader(ex, store)
	ctx := context.Background()

	require.NoError(t, tr.loadOrCreate(ctx))
	require.NoError(t, tr.tick(ctx))
	require.Len(t, store.rows, 4)

	require.NoError(t, tr.Clear(ctx, true))
	require.Empty(t, ex.cancelled, "dry run touches nothing")
	require.Len(t, store.rows, 4)

	require.NoError(t, tr.Clear(ctx, false))
	require.Len(t, ex.cancelled, 4)
	require.Empty(t, store.rows)
}
