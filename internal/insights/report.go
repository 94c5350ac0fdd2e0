package insights

import (
	"fmt"
	"sort"
	"time"

	"stockflow/internal/models"
)

// Options bounds the report lists.
type Options struct {
	TopN       int
	AnomalyCap int
}

// DefaultOptions returns top-10 lists and at most 20 anomalies.
func DefaultOptions() Options {
	return Options{TopN: 10, AnomalyCap: 20}
}

// Build summarises the signal-annotated dataset. Gainers and volume leaders
// come from the latest date present; anomalies and signal counts cover the
// whole dataset. Ties are broken by symbol, then exchange.
func Build(rows []models.AnalysisRecord, clusters []models.ClusterAssignment, opts Options) (*models.Insights, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("build insights: %w", models.ErrNoRows)
	}
	defaults := DefaultOptions()
	if opts.TopN <= 0 {
		opts.TopN = defaults.TopN
	}
	if opts.AnomalyCap <= 0 {
		opts.AnomalyCap = defaults.AnomalyCap
	}

	latest := rows[0].Date
	for _, r := range rows[1:] {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}

	var today []models.AnalysisRecord
	signals := make(map[string]int64)
	for _, r := range rows {
		if r.Date.Equal(latest) {
			today = append(today, r)
		}
		signals[r.CombinedSignal]++
	}

	report := &models.Insights{
		AsOf:           latest.Format(models.DateLayout),
		TopGainers:     topGainers(today, opts.TopN),
		TopVolume:      topVolume(today, opts.TopN),
		AnomalyStocks:  anomalyStocks(rows, opts.AnomalyCap),
		TradingSignals: signals,
	}
	if len(clusters) > 0 {
		report.ClusterDistribution = make(map[string]int)
		for _, c := range clusters {
			report.ClusterDistribution[c.Description]++
		}
	}
	return report, nil
}

func byKey(a, b models.PriceRecord) bool {
	return a.Key().Less(b.Key())
}

func topGainers(rows []models.AnalysisRecord, n int) []models.Gainer {
	var up []models.AnalysisRecord
	for _, r := range rows {
		if r.DailyReturn != nil && *r.DailyReturn > 0 {
			up = append(up, r)
		}
	}
	sort.Slice(up, func(i, j int) bool {
		if *up[i].DailyReturn != *up[j].DailyReturn {
			return *up[i].DailyReturn > *up[j].DailyReturn
		}
		return byKey(up[i].PriceRecord, up[j].PriceRecord)
	})

	out := make([]models.Gainer, 0, min(n, len(up)))
	for _, r := range up[:min(n, len(up))] {
		out = append(out, models.Gainer{
			Symbol:      r.Symbol,
			Exchange:    r.Exchange,
			DailyReturn: *r.DailyReturn,
			Price:       r.Close,
			Volume:      r.Volume,
		})
	}
	return out
}

func topVolume(rows []models.AnalysisRecord, n int) []models.VolumeLeader {
	sorted := append([]models.AnalysisRecord(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Volume != sorted[j].Volume {
			return sorted[i].Volume > sorted[j].Volume
		}
		return byKey(sorted[i].PriceRecord, sorted[j].PriceRecord)
	})

	out := make([]models.VolumeLeader, 0, min(n, len(sorted)))
	for _, r := range sorted[:min(n, len(sorted))] {
		out = append(out, models.VolumeLeader{
			Symbol:   r.Symbol,
			Exchange: r.Exchange,
			Volume:   r.Volume,
			Price:    r.Close,
		})
	}
	return out
}

type anomalyKey struct {
	symbol   string
	exchange string
	date     time.Time
	score    int
}

// anomalyStocks returns distinct flagged rows, newest first.
func anomalyStocks(rows []models.AnalysisRecord, limit int) []models.AnomalyStock {
	seen := make(map[anomalyKey]bool)
	var flagged []anomalyKey
	for _, r := range rows {
		if !r.HasAnomaly {
			continue
		}
		k := anomalyKey{r.Symbol, r.Exchange, r.Date, r.AnomalyScore}
		if seen[k] {
			continue
		}
		seen[k] = true
		flagged = append(flagged, k)
	}
	sort.Slice(flagged, func(i, j int) bool {
		a, b := flagged[i], flagged[j]
		if !a.date.Equal(b.date) {
			return a.date.After(b.date)
		}
		if a.symbol != b.symbol {
			return a.symbol < b.symbol
		}
		if a.exchange != b.exchange {
			return a.exchange < b.exchange
		}
		return a.score > b.score
	})

	out := make([]models.AnomalyStock, 0, min(limit, len(flagged)))
	for _, k := range flagged[:min(limit, len(flagged))] {
		out = append(out, models.AnomalyStock{
			Symbol:       k.symbol,
			Exchange:     k.exchange,
			Date:         k.date.Format(models.DateLayout),
			AnomalyScore: k.score,
		})
	}
	return out
}
