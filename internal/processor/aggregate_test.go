package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/models"
)

func TestAggregate(t *testing.T) {
	cleaned, _ := Clean([]models.RawPrice{
		raw("B", 1, 10, 10, 100),
		raw("A", 1, 10, 10, 100),
		raw("A", 2, 10, 11, 300),
		raw("A", 5, 10, 12, 200),
	})
	aggs := Aggregate(cleaned)
	require.Len(t, aggs, 2)

	a := aggs[0]
	assert.Equal(t, "A", a.Symbol)
	assert.Equal(t, int64(3), a.RecordCount)
	assert.Equal(t, int64(4), a.DataSpanDays)
	assert.InDelta(t, 11.0, a.AvgPrice, 1e-9)
	require.NotNil(t, a.PriceVolatility)
	assert.InDelta(t, 1.0, *a.PriceVolatility, 1e-9)
	assert.InDelta(t, 200.0, a.AvgVolume, 1e-9)
	assert.Equal(t, int64(300), a.MaxVolume)
	assert.Equal(t, int64(100), a.MinVolume)
	assert.InDelta(t, 10.0, *a.AvgDailyReturn, 1e-9)
	assert.InDelta(t, 100.0/11.0, *a.PriceRangeRatio, 1e-9)

	b := aggs[1]
	assert.Equal(t, "B", b.Symbol)
	assert.Nil(t, b.PriceVolatility, "single row has no sample stddev")
	assert.Nil(t, b.PriceRangeRatio)
	assert.Equal(t, int64(0), b.DataSpanDays)
}

func TestAggregateIgnoresMissingReturns(t *testing.T) {
	cleaned, _ := Clean([]models.RawPrice{raw("A", 1, 0, 10, 100), raw("A", 2, 0, 10, 100)})
	aggs := Aggregate(cleaned)
	require.Len(t, aggs, 1)
	assert.Nil(t, aggs[0].AvgDailyReturn)
	assert.False(t, math.IsNaN(*aggs[0].PriceVolatility))
	assert.Equal(t, 0.0, *aggs[0].PriceVolatility)
}
