package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xyths/loggrid/grid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collName = "levels"

// Ledger is the durable store of grid levels, one document per
// (symbol, level, side). Writes are synchronous: a transition is committed
// only after the document hits the collection.
type Ledger struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *Ledger {
	return &Ledger{coll: db.Collection(collName)}
}

// Init compacts legacy duplicate rows and enforces the uniqueness
// constraint. Earlier schema versions had no unique index, so a deployment
// may carry several rows per identity; the newest row wins.
func (l *Ledger) Init(ctx context.Context) error {
	if _, err := l.Compact(ctx); err != nil {
		return err
	}
	_, err := l.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "symbol", Value: 1},
			{Key: "level", Value: 1},
			{Key: "side", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type row struct {
	ID        interface{} `bson:"_id,omitempty"`
	Symbol    string      `bson:"symbol"`
	Level     int         `bson:"level"`
	Side      string      `bson:"side"`
	Amount    string      `bson:"amount"`
	Price     string      `bson:"price"`
	OrderRef  string      `bson:"orderRef"`
	Status    string      `bson:"status"`
	UpdatedAt time.Time   `bson:"updatedAt"`
}

type identity struct {
	symbol string
	level  int
	side   string
}

// Compact removes all but the most recently written row per identity and
// reports how many duplicates were dropped.
func (l *Ledger) Compact(ctx context.Context) (int64, error) {
	stale, err := l.staleIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	res, err := l.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: stale}}}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// StaleRows reports how many rows Compact would remove, without removing
// them.
func (l *Ledger) StaleRows(ctx context.Context) (int64, error) {
	stale, err := l.staleIDs(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(stale)), nil
}

func (l *Ledger) staleIDs(ctx context.Context) ([]interface{}, error) {
	cursor, err := l.coll.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var rows []row
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	seen := make(map[identity]bool)
	var stale []interface{}
	for _, r := range rows {
		id := identity{r.Symbol, r.Level, r.Side}
		if seen[id] {
			stale = append(stale, r.ID)
			continue
		}
		seen[id] = true
	}
	return stale, nil
}

// Upsert writes one level keyed on its identity. With preserve false the
// stored status and order ref are reset to pending/none, which is what a
// grid rebuild wants; with preserve true the level's own values are kept,
// which is what the mirror generator and a resumed run want.
func (l *Ledger) Upsert(ctx context.Context, level grid.Level, preserve bool) error {
	status := grid.Pending
	orderRef := ""
	if preserve {
		status = level.Status
		orderRef = level.OrderRef
	}
	_, err := l.coll.UpdateOne(ctx,
		filterFor(level.Symbol, level.Index, level.Side),
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "amount", Value: level.Amount.String()},
				{Key: "price", Value: level.Price.String()},
				{Key: "orderRef", Value: orderRef},
				{Key: "status", Value: string(status)},
				{Key: "updatedAt", Value: time.Now().UTC()},
			}},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// LoadGrids returns every stored grid, keyed by symbol, levels sorted by
// (level, side). Legacy duplicate rows are deduplicated in memory by
// keeping the most recently written one, in case Compact has not run yet.
func (l *Ledger) LoadGrids(ctx context.Context) (map[string][]grid.Level, error) {
	cursor, err := l.coll.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{
			{Key: "symbol", Value: 1},
			{Key: "level", Value: 1},
			{Key: "side", Value: 1},
			{Key: "updatedAt", Value: -1},
		}))
	if err != nil {
		return nil, err
	}
	var rows []row
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	grids := make(map[string][]grid.Level)
	seen := make(map[identity]bool)
	for _, r := range rows {
		id := identity{r.Symbol, r.Level, r.Side}
		if seen[id] {
			continue
		}
		seen[id] = true
		level, err := r.toLevel()
		if err != nil {
			return nil, err
		}
		grids[r.Symbol] = append(grids[r.Symbol], level)
	}
	return grids, nil
}

func (r row) toLevel() (grid.Level, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return grid.Level{}, err
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return grid.Level{}, err
	}
	return grid.Level{
		Symbol:   r.Symbol,
		Index:    r.Level,
		Side:     grid.Side(r.Side),
		Amount:   amount,
		Price:    price,
		OrderRef: r.OrderRef,
		Status:   grid.Status(r.Status),
	}, nil
}

// UpdateStatus transitions one level's status in place.
func (l *Ledger) UpdateStatus(ctx context.Context, symbol string, index int, side grid.Side, status grid.Status) error {
	_, err := l.coll.UpdateOne(ctx,
		filterFor(symbol, index, side),
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "status", Value: string(status)},
				{Key: "updatedAt", Value: time.Now().UTC()},
			}},
		},
	)
	return err
}

// UpdateOrder rewrites one level's price, order ref and status, as happens
// on regeneration and on placement.
func (l *Ledger) UpdateOrder(ctx context.Context, symbol string, index int, side grid.Side, price decimal.Decimal, orderRef string, status grid.Status) error {
	_, err := l.coll.UpdateOne(ctx,
		filterFor(symbol, index, side),
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "price", Value: price.String()},
				{Key: "orderRef", Value: orderRef},
				{Key: "status", Value: string(status)},
				{Key: "updatedAt", Value: time.Now().UTC()},
			}},
		},
	)
	return err
}

// Wipe deletes all rows for one symbol. Used by the clear command only;
// during normal operation levels are superseded in place, never deleted.
func (l *Ledger) Wipe(ctx context.Context, symbol string) (int64, error) {
	res, err := l.coll.DeleteMany(ctx, bson.D{{Key: "symbol", Value: symbol}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func filterFor(symbol string, index int, side grid.Side) bson.D {
	return bson.D{
		{Key: "symbol", Value: symbol},
		{Key: "level", Value: index},
		{Key: "side", Value: string(side)},
	}
}
