package models

import "time"

// Volume buckets assigned during cleaning.
const (
	VolumeLow    = "LOW"
	VolumeMedium = "MEDIUM"
	VolumeHigh   = "HIGH"
)

// DateLayout is the calendar date layout used in paths, CSV and JSON output.
const DateLayout = "2006-01-02"

// RawPrice is one row of an ingested per-symbol CSV file. Fields that could
// not be parsed are left nil so the cleaning stage can decide what to drop.
type RawPrice struct {
	Symbol            string
	Exchange          string
	Date              *time.Time
	Open              *float64
	High              *float64
	Low               *float64
	Close             *float64
	Volume            *int64
	Interval          string
	DownloadTimestamp string
	SourcePath        string
}

// PriceRecord is a cleaned and enriched daily price row.
type PriceRecord struct {
	Symbol         string
	Exchange       string
	Date           time.Time
	Open           *float64
	High           *float64
	Low            *float64
	Close          float64
	Volume         int64
	DailyReturn    *float64
	PriceRange     *float64
	AvgPrice       *float64
	VolumeCategory string
	Year           int
	Month          int
	Day            int
}

// Key identifies the instrument a record belongs to.
func (r PriceRecord) Key() SymbolKey {
	return SymbolKey{Symbol: r.Symbol, Exchange: r.Exchange}
}

// SymbolKey is the partition key of every per-instrument computation.
type SymbolKey struct {
	Symbol   string
	Exchange string
}

func (k SymbolKey) String() string {
	return k.Exchange + ":" + k.Symbol
}

// Less orders keys by symbol, then exchange.
func (k SymbolKey) Less(o SymbolKey) bool {
	if k.Symbol != o.Symbol {
		return k.Symbol < o.Symbol
	}
	return k.Exchange < o.Exchange
}

// Float returns a pointer to v, for populating optional columns.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}
