package analysis

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/models"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(symbol string, closes []float64, volume int64) []models.PriceRecord {
	rows := make([]models.PriceRecord, len(closes))
	for i, c := range closes {
		d := start.AddDate(0, 0, i)
		rows[i] = models.PriceRecord{
			Symbol: symbol, Exchange: "NYSE", Date: d,
			Open: models.Float(c), Close: c, Volume: volume,
			Year: d.Year(), Month: int(d.Month()), Day: d.Day(),
		}
	}
	return rows
}

func linear(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

func TestRisingSeries(t *testing.T) {
	out := ComputeIndicators(series("ABC", linear(100, 25), 50_000), DefaultParams())
	require.Len(t, out, 25)

	first, last := out[0], out[24]
	assert.Equal(t, 100.0, *first.MA5, "partial window from the first row")
	assert.Nil(t, first.RSI)
	assert.Nil(t, first.BBUpper)

	assert.Equal(t, 122.0, *last.MA5)
	assert.Equal(t, 100.0, *last.RSI)
	assert.InDelta(t, 1.0, *last.VolumeRatio, 1e-12)
}

func TestMovingAverageIsExactTrailingMean(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = float64(r.IntN(1000) + 1)
	}
	p := DefaultParams()
	out := ComputeIndicators(series("X", closes, 10), p)

	got := func(rec models.AnalysisRecord) [4]*float64 {
		return [4]*float64{rec.MA5, rec.MA10, rec.MA20, rec.MA50}
	}
	for i, rec := range out {
		for j, n := range p.MAWindows {
			lo := max(0, i-n+1)
			sum := 0.0
			for _, c := range closes[lo : i+1] {
				sum += c
			}
			want := sum / float64(i+1-lo)
			require.NotNil(t, got(rec)[j])
			assert.Equal(t, want, *got(rec)[j], "row %d window %d", i, n)
		}
	}
}

func TestIndicatorsSortByDate(t *testing.T) {
	rows := series("X", []float64{1, 2, 3}, 10)
	shuffled := []models.PriceRecord{rows[2], rows[0], rows[1]}
	out := ComputeIndicators(shuffled, DefaultParams())
	assert.Equal(t, 1.0, out[0].Close)
	assert.Equal(t, 2.0, *out[2].MA5)
}

func TestRSIBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	closes := make([]float64, 200)
	price := 100.0
	for i := range closes {
		price = math.Max(1, price+r.NormFloat64()*3)
		closes[i] = price
	}
	out := ComputeIndicators(series("X", closes, 10), DefaultParams())
	for i, rec := range out[1:] {
		require.NotNil(t, rec.RSI, "row %d", i+1)
		assert.GreaterOrEqual(t, *rec.RSI, 0.0)
		assert.LessOrEqual(t, *rec.RSI, 100.0)
	}
}

func TestRSIAllLosses(t *testing.T) {
	out := ComputeIndicators(series("X", []float64{10, 9, 8, 7}, 10), DefaultParams())
	assert.Equal(t, 0.0, *out[3].RSI)
}

func TestBollingerPartialWindow(t *testing.T) {
	out := ComputeIndicators(series("X", []float64{10, 12, 14}, 10), DefaultParams())

	assert.Nil(t, out[0].BBUpper)
	require.NotNil(t, out[1].BBUpper)
	assert.InDelta(t, 11+2*math.Sqrt2, *out[1].BBUpper, 1e-12)

	last := out[2]
	require.NotNil(t, last.BBUpper)
	assert.InDelta(t, 16.0, *last.BBUpper, 1e-12)
	assert.InDelta(t, 8.0, *last.BBLower, 1e-12)
	assert.InDelta(t, 0.75, *last.BBPosition, 1e-12)
}

func TestFlatSeriesHasNoBandPosition(t *testing.T) {
	out := ComputeIndicators(series("X", []float64{5, 5, 5}, 10), DefaultParams())
	assert.Equal(t, 5.0, *out[2].BBUpper)
	assert.Nil(t, out[2].BBPosition)
	assert.Equal(t, 0.0, *out[2].MACD)
}

func TestMACDUsesSimpleMeans(t *testing.T) {
	out := ComputeIndicators(series("X", linear(1, 30), 10), DefaultParams())
	// mean(19..30) - mean(5..30)
	assert.InDelta(t, 24.5-17.5, *out[29].MACD, 1e-12)
}

func TestPartitionIsolation(t *testing.T) {
	ctx := context.Background()
	p := DefaultParams()
	alone, err := Analyze(ctx, series("AAA", linear(10, 30), 100), p, 2)
	require.NoError(t, err)

	mixed := append(series("ZZZ", linear(500, 40), 9_000_000), series("AAA", linear(10, 30), 100)...)
	mixed = append(mixed, series("BBB", []float64{3, 1, 4, 1, 5}, 7)...)
	all, err := Analyze(ctx, mixed, p, 3)
	require.NoError(t, err)

	var aaa []models.AnalysisRecord
	for _, r := range all {
		if r.Symbol == "AAA" {
			aaa = append(aaa, r)
		}
	}
	assert.Equal(t, alone, aaa)
	assert.Equal(t, "AAA", all[0].Symbol)
	assert.Equal(t, "ZZZ", all[len(all)-1].Symbol)
}
