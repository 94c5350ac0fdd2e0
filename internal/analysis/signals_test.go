package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/models"
)

func TestCrossoverFiresOnTransitionOnly(t *testing.T) {
	// down, then up, then down again
	closes := append(linear(100, 30), linear(100, 30)...)
	for i := 0; i < 30; i++ {
		closes[i] = float64(130 - i)
	}
	closes = append(closes, []float64{120, 110, 100, 90, 80, 70, 60}...)

	out, err := Analyze(context.Background(), series("X", closes, 100), DefaultParams(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.SignalHold, out[0].MACrossover)
	var buys, sells int
	for i, r := range out {
		switch r.MACrossover {
		case models.SignalBuy:
			buys++
			assert.True(t, *r.MA5 > *r.MA20)
			assert.True(t, *out[i-1].MA5 <= *out[i-1].MA20)
		case models.SignalSell:
			sells++
			assert.True(t, *r.MA5 < *r.MA20)
			assert.True(t, *out[i-1].MA5 >= *out[i-1].MA20)
		}
	}
	assert.Equal(t, 1, buys)
	assert.GreaterOrEqual(t, sells, 1)
}

func TestFirstRowNeverBuys(t *testing.T) {
	out, err := Analyze(context.Background(), series("X", []float64{5}, 100), DefaultParams(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, out[0].MACrossover)
	assert.Equal(t, models.ZoneNeutral, out[0].RSISignal)
	assert.Equal(t, models.ZoneWithinBands, out[0].BBSignal)
	assert.Equal(t, models.VolumeSignalNormal, out[0].VolumeSignal)
	assert.Equal(t, models.SignalHold, out[0].CombinedSignal)
}

func TestCombinePriority(t *testing.T) {
	cases := []struct {
		cross, rsi, band, want string
	}{
		{models.SignalBuy, models.ZoneOversold, models.ZoneOversold, models.SignalStrongBuy},
		{models.SignalSell, models.ZoneOverbought, models.ZoneOverbought, models.SignalStrongSell},
		{models.SignalBuy, models.ZoneOversold, models.ZoneWithinBands, models.SignalBuy},
		{models.SignalBuy, models.ZoneOverbought, models.ZoneOverbought, models.SignalBuy},
		{models.SignalSell, models.ZoneNeutral, models.ZoneOverbought, models.SignalSell},
		{models.SignalHold, models.ZoneOversold, models.ZoneOversold, models.SignalHold},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, combine(c.cross, c.rsi, c.band), "%+v", c)
	}
}

func TestThresholdClassifiers(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, models.ZoneOversold, rsiSignal(models.Float(29.9), p))
	assert.Equal(t, models.ZoneNeutral, rsiSignal(models.Float(30), p))
	assert.Equal(t, models.ZoneOverbought, rsiSignal(models.Float(70.1), p))

	assert.Equal(t, models.ZoneOversold, bandSignal(1, models.Float(2), models.Float(4)))
	assert.Equal(t, models.ZoneOverbought, bandSignal(5, models.Float(2), models.Float(4)))
	assert.Equal(t, models.ZoneWithinBands, bandSignal(3, nil, nil))

	assert.Equal(t, models.VolumeSignalHigh, volumeSignal(models.Float(2.1), p))
	assert.Equal(t, models.VolumeSignalLow, volumeSignal(models.Float(0.4), p))
	assert.Equal(t, models.VolumeSignalNormal, volumeSignal(models.Float(2), p))
}

func TestCombinedSignalDomain(t *testing.T) {
	closes := []float64{50, 40, 30, 25, 22, 21, 30, 45, 60, 70, 72, 71, 50, 35, 20, 15, 40, 80, 10, 90}
	out, err := Analyze(context.Background(), series("X", closes, 100), DefaultParams(), 1)
	require.NoError(t, err)
	for _, r := range out {
		assert.Contains(t, models.CombinedSignals, r.CombinedSignal)
		if r.CombinedSignal == models.SignalStrongBuy {
			assert.Equal(t, []string{models.SignalBuy, models.ZoneOversold, models.ZoneOversold},
				[]string{r.MACrossover, r.RSISignal, r.BBSignal})
		}
		if r.CombinedSignal == models.SignalStrongSell {
			assert.Equal(t, []string{models.SignalSell, models.ZoneOverbought, models.ZoneOverbought},
				[]string{r.MACrossover, r.RSISignal, r.BBSignal})
		}
	}
}
