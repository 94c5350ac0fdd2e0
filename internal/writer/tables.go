package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"stockflow/internal/codec"
	"stockflow/internal/models"
)

func priceMonth(r models.PriceRecord) (int, int)       { return r.Year, r.Month }
func analysisMonth(r models.AnalysisRecord) (int, int) { return r.Year, r.Month }

// partitionedParquet encodes one parquet object per year/month partition.
func partitionedParquet[T, R any](s *Sink, table string, rows []T, ym func(T) (int, int), conv func(T) R) ([]object, error) {
	keys, groups := byMonth(rows, ym)
	objects := make([]object, 0, len(keys))
	for _, k := range keys {
		part := groups[k]
		data, err := codec.EncodeParquet(codec.Rows(part, conv), s.parquetOptions())
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", table, k.dir(), err)
		}
		objects = append(objects, object{
			key:       path.Join(table, k.dir(), partFile(formatParquet)),
			format:    formatParquet,
			data:      data,
			rows:      int64(len(part)),
			partition: k.partition(),
		})
	}
	return objects, nil
}

// partitionedCSV encodes one CSV object per year/month partition.
func partitionedCSV[T any](table string, cols []codec.Column[T], rows []T, ym func(T) (int, int)) ([]object, error) {
	keys, groups := byMonth(rows, ym)
	objects := make([]object, 0, len(keys))
	for _, k := range keys {
		part := groups[k]
		data, err := codec.EncodeCSV(cols, part)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", table, k.dir(), err)
		}
		objects = append(objects, object{
			key:       path.Join(table, k.dir(), partFile(formatCSV)),
			format:    formatCSV,
			data:      data,
			rows:      int64(len(part)),
			partition: k.partition(),
		})
	}
	return objects, nil
}

func singleParquet[T, R any](s *Sink, table string, rows []T, conv func(T) R) ([]object, error) {
	data, err := codec.EncodeParquet(codec.Rows(rows, conv), s.parquetOptions())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", table, err)
	}
	return []object{{key: path.Join(table, partFile(formatParquet)), format: formatParquet, data: data, rows: int64(len(rows))}}, nil
}

func singleCSV[T any](table string, cols []codec.Column[T], rows []T) ([]object, error) {
	data, err := codec.EncodeCSV(cols, rows)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", table, err)
	}
	return []object{{key: path.Join(table, partFile(formatCSV)), format: formatCSV, data: data, rows: int64(len(rows))}}, nil
}

// WriteCleaned stores the cleaned daily table as year/month partitioned
// parquet, plus the CSV mirror when enabled.
func (s *Sink) WriteCleaned(ctx context.Context, rows []models.PriceRecord) ([]TableResult, error) {
	table := s.paths.Cleaned
	objects, err := partitionedParquet(s, table, rows, priceMonth, codec.NewPriceRow)
	if err != nil {
		return nil, err
	}
	res, err := s.overwrite(ctx, table, columnNames(codec.PriceColumns), objects)
	if err != nil {
		return nil, err
	}
	results := []TableResult{res}
	if !s.cfg.CSVMirror {
		return results, nil
	}

	mirror, err := s.mirror(table)
	if err != nil {
		return results, err
	}
	csvObjects, err := partitionedCSV(mirror, codec.PriceColumns, rows, priceMonth)
	if err != nil {
		return results, err
	}
	res, err = s.overwrite(ctx, mirror, columnNames(codec.PriceColumns), csvObjects)
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}

// WriteAggregates stores the per-instrument summary. It has no date
// columns, so it is written unpartitioned.
func (s *Sink) WriteAggregates(ctx context.Context, aggs []models.Aggregate) ([]TableResult, error) {
	table := s.paths.Aggregates
	objects, err := singleParquet(s, table, aggs, codec.NewAggregateRow)
	if err != nil {
		return nil, err
	}
	res, err := s.overwrite(ctx, table, columnNames(codec.AggregateColumns), objects)
	if err != nil {
		return nil, err
	}
	results := []TableResult{res}
	if !s.cfg.CSVMirror {
		return results, nil
	}

	mirror, err := s.mirror(table)
	if err != nil {
		return results, err
	}
	csvObjects, err := singleCSV(mirror, codec.AggregateColumns, aggs)
	if err != nil {
		return results, err
	}
	res, err = s.overwrite(ctx, mirror, columnNames(codec.AggregateColumns), csvObjects)
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}

// WriteAnalysis stores the signal-annotated table as header CSV, one file
// per year/month.
func (s *Sink) WriteAnalysis(ctx context.Context, rows []models.AnalysisRecord) (TableResult, error) {
	table := s.paths.Analysis
	objects, err := partitionedCSV(table, codec.AnalysisColumns, rows, analysisMonth)
	if err != nil {
		return TableResult{}, err
	}
	return s.overwrite(ctx, table, columnNames(codec.AnalysisColumns), objects)
}

// WriteClusters stores the cluster assignments, plus the CSV mirror when
// enabled.
func (s *Sink) WriteClusters(ctx context.Context, clusters []models.ClusterAssignment) ([]TableResult, error) {
	table := s.paths.Clusters
	objects, err := singleParquet(s, table, clusters, codec.NewClusterRow)
	if err != nil {
		return nil, err
	}
	res, err := s.overwrite(ctx, table, columnNames(codec.ClusterColumns), objects)
	if err != nil {
		return nil, err
	}
	results := []TableResult{res}
	if !s.cfg.CSVMirror {
		return results, nil
	}

	mirror, err := s.mirror(table)
	if err != nil {
		return results, err
	}
	csvObjects, err := singleCSV(mirror, codec.ClusterColumns, clusters)
	if err != nil {
		return results, err
	}
	res, err = s.overwrite(ctx, mirror, columnNames(codec.ClusterColumns), csvObjects)
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}

// InsightsKey is where WriteInsights puts the report.
func (s *Sink) InsightsKey() string {
	return path.Join(s.paths.Insights, "insights.json")
}

// WriteInsights stores the report as a single JSON document.
func (s *Sink) WriteInsights(ctx context.Context, report *models.Insights) (TableResult, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return TableResult{}, fmt.Errorf("marshal insights: %w", err)
	}
	obj := object{key: s.InsightsKey(), format: formatJSON, data: data, rows: 1}
	return s.overwrite(ctx, s.paths.Insights, []string{"insights"}, []object{obj})
}
