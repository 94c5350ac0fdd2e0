package analysis

import "stockflow/internal/models"

// GenerateSignals classifies each of one instrument's date-ordered rows from
// its indicator columns. Only the crossover looks at the previous row.
func GenerateSignals(rows []models.AnalysisRecord, p Params) {
	for i := range rows {
		rec := &rows[i]
		var prev *models.AnalysisRecord
		if i > 0 {
			prev = &rows[i-1]
		}
		rec.MACrossover = crossover(rec, prev)
		rec.RSISignal = rsiSignal(rec.RSI, p)
		rec.BBSignal = bandSignal(rec.Close, rec.BBLower, rec.BBUpper)
		rec.VolumeSignal = volumeSignal(rec.VolumeRatio, p)
		rec.CombinedSignal = combine(rec.MACrossover, rec.RSISignal, rec.BBSignal)
	}
}

// crossover fires on the row where the fast average moves across the slow
// one, never on the first row.
func crossover(cur, prev *models.AnalysisRecord) string {
	if prev == nil || cur.MA5 == nil || cur.MA20 == nil || prev.MA5 == nil || prev.MA20 == nil {
		return models.SignalHold
	}
	switch {
	case *cur.MA5 > *cur.MA20 && *prev.MA5 <= *prev.MA20:
		return models.SignalBuy
	case *cur.MA5 < *cur.MA20 && *prev.MA5 >= *prev.MA20:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

func rsiSignal(rsi *float64, p Params) string {
	switch {
	case rsi == nil:
		return models.ZoneNeutral
	case *rsi < p.RSIOversold:
		return models.ZoneOversold
	case *rsi > p.RSIOverbought:
		return models.ZoneOverbought
	default:
		return models.ZoneNeutral
	}
}

func bandSignal(price float64, lower, upper *float64) string {
	switch {
	case lower != nil && price < *lower:
		return models.ZoneOversold
	case upper != nil && price > *upper:
		return models.ZoneOverbought
	default:
		return models.ZoneWithinBands
	}
}

func volumeSignal(ratio *float64, p Params) string {
	switch {
	case ratio == nil:
		return models.VolumeSignalNormal
	case *ratio > p.VolumeHighRatio:
		return models.VolumeSignalHigh
	case *ratio < p.VolumeLowRatio:
		return models.VolumeSignalLow
	default:
		return models.VolumeSignalNormal
	}
}

// combine applies the priority table: unanimous agreement first, then the
// crossover alone, then HOLD.
func combine(cross, rsi, band string) string {
	switch {
	case cross == models.SignalBuy && rsi == models.ZoneOversold && band == models.ZoneOversold:
		return models.SignalStrongBuy
	case cross == models.SignalSell && rsi == models.ZoneOverbought && band == models.ZoneOverbought:
		return models.SignalStrongSell
	case cross == models.SignalBuy:
		return models.SignalBuy
	case cross == models.SignalSell:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}
