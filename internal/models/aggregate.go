package models

import "time"

// Aggregate summarises one instrument over the cleaned dataset.
type Aggregate struct {
	Symbol          string
	Exchange        string
	RecordCount     int64
	FirstDate       time.Time
	LastDate        time.Time
	DataSpanDays    int64
	AvgPrice        float64
	PriceVolatility *float64
	AvgVolume       float64
	MaxVolume       int64
	MinVolume       int64
	AvgDailyReturn  *float64
	PriceRangeRatio *float64
}

// Key identifies the instrument the aggregate belongs to.
func (a Aggregate) Key() SymbolKey {
	return SymbolKey{Symbol: a.Symbol, Exchange: a.Exchange}
}

// ClusterAssignment places one instrument in a risk/return cluster.
type ClusterAssignment struct {
	Symbol          string
	Exchange        string
	AvgDailyReturn  float64
	PriceVolatility float64
	AvgVolume       float64
	ClusterID       int
	Description     string
	// ScaledFeatures are the standardized inputs in ClusterFeatures order.
	ScaledFeatures []float64
}

// ClusterFeatures names the aggregate columns clustering runs on.
var ClusterFeatures = []string{"avg_daily_return", "price_volatility", "avg_volume"}
