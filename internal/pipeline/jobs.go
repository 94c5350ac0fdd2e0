package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockflow/internal/analysis"
	"stockflow/internal/cluster"
	"stockflow/internal/insights"
	"stockflow/internal/metrics"
	"stockflow/internal/models"
	"stockflow/internal/processor"
	"stockflow/internal/reader"
	"stockflow/internal/writer"
	"stockflow/logger"
)

// Job names accepted by Run.
const (
	JobProcess = "process"
	JobAnalyze = "analyze"
	JobAll     = "all"
)

// ProcessResult summarises a process job.
type ProcessResult struct {
	Read       reader.ReadStats
	Clean      processor.CleanStats
	Cleaned    []models.PriceRecord
	Aggregates []models.Aggregate
	Tables     []writer.TableResult
}

// AnalyzeResult summarises an analyze job.
type AnalyzeResult struct {
	Source   string
	Rows     []models.AnalysisRecord
	Clusters []models.ClusterAssignment
	Insights *models.Insights
	Tables   []writer.TableResult
}

// Run executes the named job. On success the job is marked in the metrics
// registry; the registry is pushed and the run report logged either way.
func (e *Engine) Run(ctx context.Context, job string) error {
	log := e.log.WithRun(e.runID).WithFields(logger.Fields{"job": job})
	log.Info("job started")
	start := time.Now()

	var err error
	switch job {
	case JobProcess:
		_, err = e.Process(ctx)
	case JobAnalyze:
		_, err = e.Analyze(ctx)
	case JobAll:
		if _, err = e.Process(ctx); err == nil {
			_, err = e.Analyze(ctx)
		}
	default:
		return fmt.Errorf("unknown job %q", job)
	}

	if err == nil {
		metrics.MarkSuccess(job, time.Now())
	}
	if perr := metrics.Push(ctx, e.cfg.Metrics.Pushgateway.URL, e.cfg.Metrics.Pushgateway.Job); perr != nil {
		log.WithError(perr).Warn("failed to push metrics")
	}
	logger.LogReport(e.log, "run report")

	if err != nil {
		log.WithError(err).Error("job failed")
		return err
	}
	logger.LogPerformanceEntry(log, "pipeline", job, time.Since(start), nil)
	return nil
}

// Process reads the raw files, cleans them, and writes the cleaned table and
// the per-instrument aggregates.
func (e *Engine) Process(ctx context.Context) (*ProcessResult, error) {
	res := &ProcessResult{}
	var raw []models.RawPrice

	err := e.runStage(ctx, JobProcess, "read_raw", func(ctx context.Context) (int, error) {
		var err error
		raw, res.Read, err = e.reader.ReadRaw(ctx, e.cfg.Paths.Raw)
		return len(raw), err
	})
	if err != nil {
		return nil, err
	}
	e.handoff("read_raw", "clean", len(raw), "raw_price")

	err = e.runStage(ctx, JobProcess, "clean", func(context.Context) (int, error) {
		res.Cleaned, res.Clean = processor.Clean(raw)
		e.observeClean(res.Clean)
		if len(res.Cleaned) == 0 {
			return 0, models.ErrNoRows
		}
		return len(res.Cleaned), nil
	})
	if err != nil {
		return nil, err
	}
	e.handoff("clean", "write_cleaned", len(res.Cleaned), "price_record")

	err = e.runStage(ctx, JobProcess, "write_cleaned", func(ctx context.Context) (int, error) {
		tables, err := e.sink.WriteCleaned(ctx, res.Cleaned)
		res.Tables = append(res.Tables, tables...)
		return len(res.Cleaned), err
	})
	if err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobProcess, "aggregate", func(context.Context) (int, error) {
		res.Aggregates = processor.Aggregate(res.Cleaned)
		return len(res.Aggregates), nil
	})
	if err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobProcess, "write_aggregates", func(ctx context.Context) (int, error) {
		tables, err := e.sink.WriteAggregates(ctx, res.Aggregates)
		res.Tables = append(res.Tables, tables...)
		return len(res.Aggregates), err
	})
	if err != nil {
		return nil, err
	}

	if e.repo != nil {
		err = e.runStage(ctx, JobProcess, "export_aggregates", func(ctx context.Context) (int, error) {
			return len(res.Aggregates), e.repo.ReplaceAggregates(ctx, e.runID, res.Aggregates)
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// handoff logs the rows passed from one stage to the next.
func (e *Engine) handoff(from, to string, rows int, dataType string) {
	logger.LogDataFlowEntry(e.log.WithRun(e.runID).WithComponent("pipeline"), from, to, rows, dataType)
}

func (e *Engine) observeClean(stats processor.CleanStats) {
	metrics.ObserveDropped(e.log, "missing_close", stats.MissingClose)
	metrics.ObserveDropped(e.log, "invalid_volume", stats.InvalidVolume)
	metrics.ObserveDropped(e.log, "missing_date", stats.MissingDate)
	metrics.ObserveDropped(e.log, "duplicate", stats.Duplicates)
	e.log.WithRun(e.runID).WithComponent("processor").WithFields(logger.Fields{
		"input":          stats.Input,
		"output":         stats.Output,
		"missing_close":  stats.MissingClose,
		"invalid_volume": stats.InvalidVolume,
		"missing_date":   stats.MissingDate,
		"duplicates":     stats.Duplicates,
	}).Info("cleaned raw rows")
}

// Analyze loads the cleaned table, annotates it with indicators, anomalies
// and signals, clusters the instruments, and writes the analysis table,
// cluster table and insights report.
func (e *Engine) Analyze(ctx context.Context) (*AnalyzeResult, error) {
	res := &AnalyzeResult{}
	workers := e.cfg.Pipeline.MaxWorkers
	var cleaned []models.PriceRecord

	err := e.runStage(ctx, JobAnalyze, "read_cleaned", func(ctx context.Context) (int, error) {
		var err error
		cleaned, res.Source, err = e.reader.ReadCleaned(ctx, e.cfg.Paths.Cleaned, e.cfg.Paths.MirrorSuffix)
		if err == nil && len(cleaned) == 0 {
			err = models.ErrNoRows
		}
		return len(cleaned), err
	})
	if err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobAnalyze, "indicators", func(ctx context.Context) (int, error) {
		var err error
		res.Rows, err = analysis.Indicators(ctx, cleaned, e.params, workers)
		return len(res.Rows), err
	})
	if err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobAnalyze, "anomalies", func(ctx context.Context) (int, error) {
		var err error
		res.Rows, err = analysis.Anomalies(ctx, res.Rows, e.params, workers)
		return len(res.Rows), err
	})
	if err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobAnalyze, "signals", func(ctx context.Context) (int, error) {
		var err error
		res.Rows, err = analysis.Signals(ctx, res.Rows, e.params, workers)
		return len(res.Rows), err
	})
	if err != nil {
		return nil, err
	}
	e.handoff("signals", "write_analysis", len(res.Rows), "analysis_record")

	err = e.runStage(ctx, JobAnalyze, "write_analysis", func(ctx context.Context) (int, error) {
		table, err := e.sink.WriteAnalysis(ctx, res.Rows)
		res.Tables = append(res.Tables, table)
		return len(res.Rows), err
	})
	if err != nil {
		return nil, err
	}

	if err := e.clusterStages(ctx, cleaned, res); err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobAnalyze, "insights", func(context.Context) (int, error) {
		var err error
		if res.Insights, err = insights.Build(res.Rows, res.Clusters, e.insightsOptions()); err != nil {
			return 0, err
		}
		return len(res.Insights.AnomalyStocks), nil
	})
	if err != nil {
		return nil, err
	}

	err = e.runStage(ctx, JobAnalyze, "write_insights", func(ctx context.Context) (int, error) {
		table, err := e.sink.WriteInsights(ctx, res.Insights)
		res.Tables = append(res.Tables, table)
		return 1, err
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, res.Insights); err != nil {
			e.log.WithComponent("cache").WithError(err).Warn("failed to cache insights")
		}
	}
	insights.LogSummary(e.log.WithRun(e.runID).WithComponent("insights"), res.Insights, 3)
	return res, nil
}

// clusterStages groups the instruments and persists the assignments. Too
// few usable instruments is not a failure: the cluster table is emptied and
// the report is built without clusters.
func (e *Engine) clusterStages(ctx context.Context, cleaned []models.PriceRecord, res *AnalyzeResult) error {
	var model *cluster.Model
	err := e.runStage(ctx, JobAnalyze, "cluster", func(context.Context) (int, error) {
		var err error
		res.Clusters, model, err = cluster.Cluster(processor.Aggregate(cleaned), e.clusterOptions())
		if errors.Is(err, cluster.ErrInsufficientData) {
			e.log.WithRun(e.runID).WithComponent("cluster").WithError(err).Warn("skipping clustering")
			res.Clusters = nil
			return 0, nil
		}
		return len(res.Clusters), err
	})
	if err != nil {
		return err
	}
	if model != nil {
		e.log.WithRun(e.runID).WithComponent("cluster").WithFields(logger.Fields{
			"sizes":      model.Sizes,
			"iterations": model.Iterations,
			"inertia":    model.Inertia,
		}).Info("clustered instruments")
	}

	err = e.runStage(ctx, JobAnalyze, "write_clusters", func(ctx context.Context) (int, error) {
		tables, err := e.sink.WriteClusters(ctx, res.Clusters)
		res.Tables = append(res.Tables, tables...)
		return len(res.Clusters), err
	})
	if err != nil {
		return err
	}

	if e.repo != nil {
		return e.runStage(ctx, JobAnalyze, "export_clusters", func(ctx context.Context) (int, error) {
			return len(res.Clusters), e.repo.ReplaceClusters(ctx, e.runID, res.Clusters)
		})
	}
	return nil
}
