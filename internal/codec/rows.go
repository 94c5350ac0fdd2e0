package codec

import (
	"time"

	"stockflow/internal/models"
)

// PriceRow is the parquet layout of the cleaned daily table.
type PriceRow struct {
	Symbol         string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Exchange       string   `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date           int32    `parquet:"name=date, type=INT32, convertedtype=DATE"`
	Open           *float64 `parquet:"name=open, type=DOUBLE, repetitiontype=OPTIONAL"`
	High           *float64 `parquet:"name=high, type=DOUBLE, repetitiontype=OPTIONAL"`
	Low            *float64 `parquet:"name=low, type=DOUBLE, repetitiontype=OPTIONAL"`
	Close          float64  `parquet:"name=close, type=DOUBLE"`
	Volume         int64    `parquet:"name=volume, type=INT64"`
	DailyReturn    *float64 `parquet:"name=daily_return, type=DOUBLE, repetitiontype=OPTIONAL"`
	PriceRange     *float64 `parquet:"name=price_range, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgPrice       *float64 `parquet:"name=avg_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	VolumeCategory string   `parquet:"name=volume_category, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year           int32    `parquet:"name=year, type=INT32"`
	Month          int32    `parquet:"name=month, type=INT32"`
	Day            int32    `parquet:"name=day, type=INT32"`
}

// AggregateRow is the parquet layout of the per-instrument summary table.
type AggregateRow struct {
	Symbol          string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Exchange        string   `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecordCount     int64    `parquet:"name=record_count, type=INT64"`
	FirstDate       int32    `parquet:"name=first_date, type=INT32, convertedtype=DATE"`
	LastDate        int32    `parquet:"name=last_date, type=INT32, convertedtype=DATE"`
	DataSpanDays    int64    `parquet:"name=data_span_days, type=INT64"`
	AvgPrice        float64  `parquet:"name=avg_price, type=DOUBLE"`
	PriceVolatility *float64 `parquet:"name=price_volatility, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgVolume       float64  `parquet:"name=avg_volume, type=DOUBLE"`
	MaxVolume       int64    `parquet:"name=max_volume, type=INT64"`
	MinVolume       int64    `parquet:"name=min_volume, type=INT64"`
	AvgDailyReturn  *float64 `parquet:"name=avg_daily_return, type=DOUBLE, repetitiontype=OPTIONAL"`
	PriceRangeRatio *float64 `parquet:"name=price_range_ratio, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// ClusterRow is the parquet layout of the cluster assignment table.
type ClusterRow struct {
	Symbol                string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Exchange              string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	AvgDailyReturn        float64 `parquet:"name=avg_daily_return, type=DOUBLE"`
	PriceVolatility       float64 `parquet:"name=price_volatility, type=DOUBLE"`
	AvgVolume             float64 `parquet:"name=avg_volume, type=DOUBLE"`
	Cluster               int32   `parquet:"name=cluster, type=INT32"`
	ClusterDescription    string  `parquet:"name=cluster_description, type=BYTE_ARRAY, convertedtype=UTF8"`
	AvgDailyReturnScaled  float64 `parquet:"name=avg_daily_return_scaled, type=DOUBLE"`
	PriceVolatilityScaled float64 `parquet:"name=price_volatility_scaled, type=DOUBLE"`
	AvgVolumeScaled       float64 `parquet:"name=avg_volume_scaled, type=DOUBLE"`
}

const secondsPerDay = 24 * 60 * 60

// EpochDays converts a calendar date to days since 1970-01-01.
func EpochDays(t time.Time) int32 {
	y, m, d := t.Date()
	return int32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// FromEpochDays is the inverse of EpochDays.
func FromEpochDays(days int32) time.Time {
	return time.Unix(int64(days)*secondsPerDay, 0).UTC()
}

func NewPriceRow(r models.PriceRecord) PriceRow {
	return PriceRow{
		Symbol:         r.Symbol,
		Exchange:       r.Exchange,
		Date:           EpochDays(r.Date),
		Open:           r.Open,
		High:           r.High,
		Low:            r.Low,
		Close:          r.Close,
		Volume:         r.Volume,
		DailyReturn:    r.DailyReturn,
		PriceRange:     r.PriceRange,
		AvgPrice:       r.AvgPrice,
		VolumeCategory: r.VolumeCategory,
		Year:           int32(r.Year),
		Month:          int32(r.Month),
		Day:            int32(r.Day),
	}
}

func (p PriceRow) Record() models.PriceRecord {
	return models.PriceRecord{
		Symbol:         p.Symbol,
		Exchange:       p.Exchange,
		Date:           FromEpochDays(p.Date),
		Open:           p.Open,
		High:           p.High,
		Low:            p.Low,
		Close:          p.Close,
		Volume:         p.Volume,
		DailyReturn:    p.DailyReturn,
		PriceRange:     p.PriceRange,
		AvgPrice:       p.AvgPrice,
		VolumeCategory: p.VolumeCategory,
		Year:           int(p.Year),
		Month:          int(p.Month),
		Day:            int(p.Day),
	}
}

func NewAggregateRow(a models.Aggregate) AggregateRow {
	return AggregateRow{
		Symbol:          a.Symbol,
		Exchange:        a.Exchange,
		RecordCount:     a.RecordCount,
		FirstDate:       EpochDays(a.FirstDate),
		LastDate:        EpochDays(a.LastDate),
		DataSpanDays:    a.DataSpanDays,
		AvgPrice:        a.AvgPrice,
		PriceVolatility: a.PriceVolatility,
		AvgVolume:       a.AvgVolume,
		MaxVolume:       a.MaxVolume,
		MinVolume:       a.MinVolume,
		AvgDailyReturn:  a.AvgDailyReturn,
		PriceRangeRatio: a.PriceRangeRatio,
	}
}

func NewClusterRow(c models.ClusterAssignment) ClusterRow {
	row := ClusterRow{
		Symbol:             c.Symbol,
		Exchange:           c.Exchange,
		AvgDailyReturn:     c.AvgDailyReturn,
		PriceVolatility:    c.PriceVolatility,
		AvgVolume:          c.AvgVolume,
		Cluster:            int32(c.ClusterID),
		ClusterDescription: c.Description,
	}
	if len(c.ScaledFeatures) == 3 {
		row.AvgDailyReturnScaled = c.ScaledFeatures[0]
		row.PriceVolatilityScaled = c.ScaledFeatures[1]
		row.AvgVolumeScaled = c.ScaledFeatures[2]
	}
	return row
}

// Rows maps records to their storage layout.
func Rows[R, T any](records []R, conv func(R) T) []T {
	out := make([]T, len(records))
	for i, r := range records {
		out[i] = conv(r)
	}
	return out
}
