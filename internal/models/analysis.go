package models

// Signal values emitted by the signal generator.
const (
	SignalBuy        = "BUY"
	SignalSell       = "SELL"
	SignalHold       = "HOLD"
	SignalStrongBuy  = "STRONG_BUY"
	SignalStrongSell = "STRONG_SELL"

	ZoneOversold    = "OVERSOLD"
	ZoneOverbought  = "OVERBOUGHT"
	ZoneNeutral     = "NEUTRAL"
	ZoneWithinBands = "WITHIN_BANDS"

	VolumeSignalHigh   = "HIGH_VOLUME"
	VolumeSignalLow    = "LOW_VOLUME"
	VolumeSignalNormal = "NORMAL_VOLUME"
)

// CombinedSignals lists every combined_signal value in report order.
var CombinedSignals = []string{SignalStrongBuy, SignalBuy, SignalHold, SignalSell, SignalStrongSell}

// Indicators are trailing-window values for one row. Nil means the value is
// undefined for that row.
type Indicators struct {
	MA5         *float64
	MA10        *float64
	MA20        *float64
	MA50        *float64
	RSI         *float64
	BBUpper     *float64
	BBLower     *float64
	BBPosition  *float64
	MACD        *float64
	VolumeRatio *float64
}

// Anomalies holds the outlier flags of one row.
type Anomalies struct {
	VolumeZScore    *float64
	IsVolumeAnomaly bool
	PriceChangePct  *float64
	IsPriceAnomaly  bool
	OpeningGapPct   *float64
	IsGapAnomaly    bool
	AnomalyScore    int
	HasAnomaly      bool
}

// Signals holds the rule-based trading recommendation of one row.
type Signals struct {
	MACrossover    string
	RSISignal      string
	BBSignal       string
	VolumeSignal   string
	CombinedSignal string
}

// AnalysisRecord is a cleaned row annotated by the technical-analysis job.
type AnalysisRecord struct {
	PriceRecord
	Indicators
	Anomalies
	Signals
}
