package analysis

import (
	"context"

	"stockflow/internal/models"
	"stockflow/internal/table"
)

// Indicators runs ComputeIndicators on every instrument concurrently. The
// result is grouped by instrument in key order, dates ascending.
func Indicators(ctx context.Context, rows []models.PriceRecord, p Params, workers int) ([]models.AnalysisRecord, error) {
	return table.MapPartitions(ctx, rows, models.PriceRecord.Key, workers,
		func(_ context.Context, _ models.SymbolKey, part []models.PriceRecord) ([]models.AnalysisRecord, error) {
			return ComputeIndicators(part, p), nil
		})
}

// Anomalies runs DetectAnomalies on every instrument of an Indicators result.
func Anomalies(ctx context.Context, rows []models.AnalysisRecord, p Params, workers int) ([]models.AnalysisRecord, error) {
	return table.MapPartitions(ctx, rows, analysisKey, workers,
		func(_ context.Context, _ models.SymbolKey, part []models.AnalysisRecord) ([]models.AnalysisRecord, error) {
			DetectAnomalies(part, p)
			return part, nil
		})
}

// Signals runs GenerateSignals on every instrument of an Anomalies result.
func Signals(ctx context.Context, rows []models.AnalysisRecord, p Params, workers int) ([]models.AnalysisRecord, error) {
	return table.MapPartitions(ctx, rows, analysisKey, workers,
		func(_ context.Context, _ models.SymbolKey, part []models.AnalysisRecord) ([]models.AnalysisRecord, error) {
			GenerateSignals(part, p)
			return part, nil
		})
}

// Analyze chains Indicators, Anomalies and Signals.
func Analyze(ctx context.Context, rows []models.PriceRecord, p Params, workers int) ([]models.AnalysisRecord, error) {
	out, err := Indicators(ctx, rows, p, workers)
	if err != nil {
		return nil, err
	}
	if out, err = Anomalies(ctx, out, p, workers); err != nil {
		return nil, err
	}
	return Signals(ctx, out, p, workers)
}

func analysisKey(r models.AnalysisRecord) models.SymbolKey {
	return r.Key()
}
