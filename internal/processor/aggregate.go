package processor

import (
	"gonum.org/v1/gonum/stat"

	"stockflow/internal/models"
	"stockflow/internal/table"
)

const hoursPerDay = 24

// Aggregate summarises each (symbol, exchange) partition of the cleaned
// table. Results are ordered by symbol, then exchange.
func Aggregate(rows []models.PriceRecord) []models.Aggregate {
	keys, parts := table.Partition(rows, models.PriceRecord.Key)
	out := make([]models.Aggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, aggregatePartition(k, parts[k]))
	}
	return out
}

func aggregatePartition(key models.SymbolKey, rows []models.PriceRecord) models.Aggregate {
	closes := make([]float64, len(rows))
	volumes := make([]float64, len(rows))
	var returns []float64

	agg := models.Aggregate{
		Symbol:      key.Symbol,
		Exchange:    key.Exchange,
		RecordCount: int64(len(rows)),
		FirstDate:   rows[0].Date,
		LastDate:    rows[0].Date,
		MaxVolume:   rows[0].Volume,
		MinVolume:   rows[0].Volume,
	}
	for i, r := range rows {
		closes[i] = r.Close
		volumes[i] = float64(r.Volume)
		if r.DailyReturn != nil {
			returns = append(returns, *r.DailyReturn)
		}
		if r.Date.Before(agg.FirstDate) {
			agg.FirstDate = r.Date
		}
		if r.Date.After(agg.LastDate) {
			agg.LastDate = r.Date
		}
		agg.MaxVolume = max(agg.MaxVolume, r.Volume)
		agg.MinVolume = min(agg.MinVolume, r.Volume)
	}

	agg.DataSpanDays = int64(agg.LastDate.Sub(agg.FirstDate).Hours() / hoursPerDay)
	agg.AvgPrice = stat.Mean(closes, nil)
	agg.AvgVolume = stat.Mean(volumes, nil)
	if len(closes) >= 2 {
		agg.PriceVolatility = models.Float(stat.StdDev(closes, nil))
		if agg.AvgPrice != 0 {
			agg.PriceRangeRatio = models.Float(*agg.PriceVolatility / agg.AvgPrice * 100)
		}
	}
	if len(returns) > 0 {
		agg.AvgDailyReturn = models.Float(stat.Mean(returns, nil))
	}
	return agg
}
