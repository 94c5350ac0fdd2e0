package analysis

import (
	"math"
	"sort"

	"stockflow/internal/models"
	"stockflow/internal/table"
)

// ComputeIndicators annotates one instrument's rows with trailing-window
// indicators. Rows are ordered by date first; every value depends only on
// the current and earlier rows. Windows shorter than their size at the start
// of the series are averaged over the rows available.
func ComputeIndicators(rows []models.PriceRecord, p Params) []models.AnalysisRecord {
	out := make([]models.AnalysisRecord, len(rows))
	for i, r := range rows {
		out[i].PriceRecord = r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	var ma [4]*table.Window
	for i, w := range p.MAWindows {
		ma[i] = table.NewWindow(w)
	}
	bb := table.NewWindow(p.BollingerWindow)
	fast := table.NewWindow(p.MACDFast)
	slow := table.NewWindow(p.MACDSlow)
	vol := table.NewWindow(p.VolumeWindow)

	for i := range out {
		rec := &out[i]
		c := rec.Close
		for _, w := range ma {
			w.Push(c)
		}
		bb.Push(c)
		fast.Push(c)
		slow.Push(c)
		vol.Push(float64(rec.Volume))

		rec.MA5 = ma[0].Mean()
		rec.MA10 = ma[1].Mean()
		rec.MA20 = ma[2].Mean()
		rec.MA50 = ma[3].Mean()

		rec.BBUpper, rec.BBLower, rec.BBPosition = bollinger(bb, c, p.BollingerK)

		if f, s := fast.Mean(), slow.Mean(); f != nil && s != nil {
			rec.MACD = models.Float(*f - *s)
		}
		if m := vol.Mean(); m != nil && *m != 0 {
			rec.VolumeRatio = models.Float(float64(rec.Volume) / *m)
		}
	}

	applyRSI(out, p.RSIWindow)
	return out
}

func bollinger(w *table.Window, price, k float64) (upper, lower, position *float64) {
	mean, sd := w.Mean(), w.StdDev()
	if mean == nil || sd == nil {
		return nil, nil, nil
	}
	u := *mean + k*(*sd)
	l := *mean - k*(*sd)
	upper, lower = &u, &l
	if width := u - l; width != 0 {
		position = models.Float((price - l) / width)
	}
	return upper, lower, position
}

// priceChanges returns each row's gain and loss against the previous row's
// close. The first row has no previous close and is NaN in both.
func priceChanges(rows []models.AnalysisRecord) (gains, losses []float64) {
	gains = make([]float64, len(rows))
	losses = make([]float64, len(rows))
	for i := range rows {
		if i == 0 {
			gains[i], losses[i] = math.NaN(), math.NaN()
			continue
		}
		change := rows[i].Close - rows[i-1].Close
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
	}
	return gains, losses
}

// applyRSI runs in two passes: per-row gains and losses first, then RSI from
// their trailing averages. RSI is 100 when the average loss is zero and
// undefined until a first price change exists.
func applyRSI(rows []models.AnalysisRecord, window int) {
	gains, losses := priceChanges(rows)
	gw := table.NewWindow(window)
	lw := table.NewWindow(window)
	for i := range rows {
		gw.Push(gains[i])
		lw.Push(losses[i])
		avgGain, avgLoss := gw.Mean(), lw.Mean()
		if avgGain == nil || avgLoss == nil {
			continue
		}
		if *avgLoss == 0 {
			rows[i].RSI = models.Float(100)
			continue
		}
		rs := *avgGain / *avgLoss
		rows[i].RSI = models.Float(100 - 100/(1+rs))
	}
}
