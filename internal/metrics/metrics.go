// Registers the pipeline collectors:
//
//	#stockflow_stage_duration_seconds
//	#stockflow_stage_failures_total
//	#stockflow_rows_total
//	#stockflow_rows_dropped_total
//	#stockflow_last_success_timestamp_seconds
//
// A batch run has no scrape endpoint, so the registry is pushed to a
// Prometheus Pushgateway when the job finishes.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"stockflow/logger"
)

var (
	once     sync.Once
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	rowsDropped   *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
)

// Init creates and registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		stageDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockflow_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"job", "stage"},
		)
		stageFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockflow_stage_failures_total",
				Help: "Number of failed pipeline stages",
			},
			[]string{"job", "stage"},
		)
		rowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockflow_rows_total",
				Help: "Rows produced by each pipeline stage",
			},
			[]string{"job", "stage"},
		)
		rowsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockflow_rows_dropped_total",
				Help: "Rows removed during cleaning, by reason",
			},
			[]string{"reason"},
		)
		lastSuccess = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockflow_last_success_timestamp_seconds",
				Help: "Unix time of the last successful job run",
			},
			[]string{"job"},
		)

		registry.MustRegister(stageDuration, stageFailures, rowsTotal, rowsDropped, lastSuccess)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Registry returns the collector registry, initialising it when needed.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// ObserveStage records the outcome of one stage and emits it as a metric event.
func ObserveStage(log *logger.Log, job, stage string, duration time.Duration, rows int, err error) {
	Init()
	stageDuration.WithLabelValues(job, stage).Observe(duration.Seconds())
	fields := logger.Fields{"job": job, "stage": stage, "unit": "count"}
	if err != nil {
		stageFailures.WithLabelValues(job, stage).Inc()
		EmitMetric(log, "pipeline", "stage_failures", 1, "counter", fields)
		return
	}
	rowsTotal.WithLabelValues(job, stage).Add(float64(rows))
	EmitMetric(log, "pipeline", "stage_rows", rows, "gauge", fields)
}

// ObserveDropped records rows removed by the cleaner for one reason.
func ObserveDropped(log *logger.Log, reason string, count int) {
	if count <= 0 {
		return
	}
	Init()
	rowsDropped.WithLabelValues(reason).Add(float64(count))
	EmitMetric(log, "processor", "rows_dropped", count, "counter", logger.Fields{"reason": reason, "unit": "count"})
}

// MarkSuccess sets the last-success gauge of job to now.
func MarkSuccess(job string, now time.Time) {
	Init()
	lastSuccess.WithLabelValues(job).Set(float64(now.Unix()))
}

// Push sends the registry to a Pushgateway. An empty url disables pushing.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(Registry()).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	logger.GetLogger().WithComponent("metrics").WithFields(logger.Fields{"url": url, "job": job}).Debug("pushed metrics")
	return nil
}
