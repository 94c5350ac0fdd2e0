package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	appconfig "stockflow/config"
	"stockflow/internal/analysis"
	"stockflow/internal/cache"
	"stockflow/internal/cluster"
	"stockflow/internal/database"
	"stockflow/internal/insights"
	"stockflow/internal/metrics"
	"stockflow/internal/reader"
	"stockflow/internal/storage"
	"stockflow/internal/writer"
	"stockflow/logger"
)

// Engine holds everything a job run needs. Create one per run and Close it
// when the run ends, whatever the outcome.
type Engine struct {
	cfg         *appconfig.Config
	store       storage.Store
	reader      *reader.Reader
	sink        *writer.Sink
	cache       *cache.InsightsCache
	repo        *database.Repository
	params      analysis.Params
	runID       string
	log         *logger.Log
	tracer      trace.Tracer
	unsubscribe func()
	closed      bool
}

// NewEngine opens the configured store and optional collaborators. Redis and
// Postgres are best effort: a failure to connect is logged and the run
// continues without them.
func NewEngine(ctx context.Context, cfg *appconfig.Config) (*Engine, error) {
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e := NewEngineWithStore(cfg, store)
	log := e.log.WithComponent("engine")

	if e.cache, err = cache.NewInsightsCache(ctx, cfg.Cache.Redis); err != nil {
		log.WithError(err).Warn("insights cache disabled")
		e.cache = nil
	}
	if e.repo, err = database.Open(ctx, cfg.Database); err != nil {
		log.WithError(err).Warn("database export disabled")
		e.repo = nil
	}
	return e, nil
}

// NewEngineWithStore builds an engine over an existing store with no cache
// or database. Metric events raised while the engine is open are totalled
// in the run report.
func NewEngineWithStore(cfg *appconfig.Config, store storage.Store) *Engine {
	runID := uuid.NewString()
	return &Engine{
		cfg:         cfg,
		store:       store,
		reader:      reader.NewReader(store, cfg.Pipeline.ReadWorkers),
		sink:        writer.NewSink(store, cfg, runID),
		params:      analysis.ParamsFromConfig(cfg.Analysis),
		runID:       runID,
		log:         logger.GetLogger(),
		tracer:      otel.Tracer("stockflow/pipeline"),
		unsubscribe: metrics.ReportTotals(),
	}
}

// RunID identifies this engine's run in logs, manifests and metrics.
func (e *Engine) RunID() string { return e.runID }

// Store returns the store the engine reads and writes.
func (e *Engine) Store() storage.Store { return e.store }

func (e *Engine) clusterOptions() cluster.Options {
	a := e.cfg.Analysis
	return cluster.Options{K: a.Clusters, Seed: a.ClusterSeed, MaxIter: a.ClusterMaxIter, Tolerance: a.ClusterTolerance}
}

func (e *Engine) insightsOptions() insights.Options {
	return insights.Options{TopN: e.cfg.Analysis.InsightsTopN, AnomalyCap: e.cfg.Analysis.InsightsAnomalyCap}
}

// Close releases the engine's connections. It is safe to call twice.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.unsubscribe()
	return errors.Join(e.cache.Close(), e.repo.Close())
}
