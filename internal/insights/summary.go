package insights

import (
	"fmt"
	"sort"

	"stockflow/internal/models"
	"stockflow/logger"
)

// LogSummary writes the report headline: the best gainers and the signal
// distribution.
func LogSummary(log *logger.Entry, report *models.Insights, top int) {
	gainers := make([]string, 0, top)
	for _, g := range report.TopGainers[:min(top, len(report.TopGainers))] {
		gainers = append(gainers, fmt.Sprintf("%s %.2f%%", g.Symbol, g.DailyReturn))
	}

	signals := make([]string, 0, len(report.TradingSignals))
	for s := range report.TradingSignals {
		signals = append(signals, s)
	}
	sort.Strings(signals)
	distribution := make([]string, 0, len(signals))
	for _, s := range signals {
		distribution = append(distribution, fmt.Sprintf("%s=%d", s, report.TradingSignals[s]))
	}

	log.WithFields(logger.Fields{
		"as_of":          report.AsOf,
		"top_gainers":    gainers,
		"signals":        distribution,
		"anomaly_stocks": len(report.AnomalyStocks),
		"clusters":       report.ClusterDistribution,
	}).Info("insights summary")
}
