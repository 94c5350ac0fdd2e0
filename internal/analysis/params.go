package analysis

import appconfig "stockflow/config"

// anomalyFlagThreshold is the number of raised flags that marks a row as
// anomalous. It is not configurable.
const anomalyFlagThreshold = 2

// Params carries the window sizes and thresholds of the analysis job.
type Params struct {
	// MAWindows back MA5, MA10, MA20 and MA50 in that order. The crossover
	// compares the first against the third.
	MAWindows       [4]int
	RSIWindow       int
	RSIOversold     float64
	RSIOverbought   float64
	BollingerWindow int
	BollingerK      float64
	MACDFast        int
	MACDSlow        int
	VolumeWindow    int
	VolumeHighRatio float64
	VolumeLowRatio  float64
	VolumeZScore    float64
	PriceChangePct  float64
	OpeningGapPct   float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		MAWindows:       [4]int{5, 10, 20, 50},
		RSIWindow:       14,
		RSIOversold:     30,
		RSIOverbought:   70,
		BollingerWindow: 20,
		BollingerK:      2,
		MACDFast:        12,
		MACDSlow:        26,
		VolumeWindow:    10,
		VolumeHighRatio: 2,
		VolumeLowRatio:  0.5,
		VolumeZScore:    3,
		PriceChangePct:  10,
		OpeningGapPct:   5,
	}
}

// ParamsFromConfig maps the validated analysis section onto Params.
func ParamsFromConfig(c appconfig.AnalysisConfig) Params {
	p := Params{
		RSIWindow:       c.RSIWindow,
		RSIOversold:     c.RSIOversold,
		RSIOverbought:   c.RSIOverbought,
		BollingerWindow: c.BollingerWindow,
		BollingerK:      c.BollingerK,
		MACDFast:        c.MACDFast,
		MACDSlow:        c.MACDSlow,
		VolumeWindow:    c.VolumeWindow,
		VolumeHighRatio: c.VolumeHighRatio,
		VolumeLowRatio:  c.VolumeLowRatio,
		VolumeZScore:    c.VolumeZScore,
		PriceChangePct:  c.PriceChangePct,
		OpeningGapPct:   c.OpeningGapPct,
	}
	copy(p.MAWindows[:], c.MAWindows)
	return p
}
