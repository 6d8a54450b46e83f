package journal

import (
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// Trade is one observed fill. Profit is only derivable for sell fills
// (the spread captured against the mirrored buy) and stays zero otherwise.
type Trade struct {
	ID        uint `gorm:"primary_key"`
	Symbol    string
	Side      string
	Amount    string
	Price     string
	Profit    string
	CreatedAt time.Time
}

// Journal records fills into a local sqlite file, one row per fill.
type Journal struct {
	db *gorm.DB
}

func Open(path string) (*Journal, error) {
	db, err := gorm.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err = db.AutoMigrate(&Trade{}).Error; err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(t Trade) error {
	return j.db.Create(&t).Error
}

// Recent returns the latest trades for one symbol, newest first.
// An empty symbol returns trades across all symbols.
func (j *Journal) Recent(symbol string, limit int) ([]Trade, error) {
	var trades []Trade
	q := j.db.Order("created_at desc").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	err := q.Find(&trades).Error
	return trades, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
