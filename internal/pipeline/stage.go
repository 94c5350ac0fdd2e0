package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockflow/internal/metrics"
	"stockflow/logger"
)

// StageError reports which stage of a job failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageFunc does the work of one stage and returns the number of rows it
// produced.
type stageFunc func(ctx context.Context) (int, error)

// runStage runs fn under a span, the configured stage timeout and panic
// recovery. Any failure comes back as a *StageError.
func (e *Engine) runStage(ctx context.Context, job, stage string, fn stageFunc) (err error) {
	ctx, span := e.tracer.Start(ctx, job+"."+stage)
	defer span.End()
	span.SetAttributes(attribute.String("run_id", e.runID), attribute.String("job", job))

	if timeout := e.cfg.Pipeline.StageTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := e.log.WithRun(e.runID).WithFields(logger.Fields{"job": job}).WithStage(stage)
	start := time.Now()
	rows := 0

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		elapsed := time.Since(start)
		if err != nil {
			err = &StageError{Stage: stage, Err: err}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.WithError(err).Error("stage failed")
		} else {
			span.SetAttributes(attribute.Int("rows", rows))
			logger.LogPerformanceEntry(log, "pipeline", stage, elapsed, logger.Fields{"rows": rows})
		}
		metrics.ObserveStage(e.log, job, stage, elapsed, rows, err)
	}()

	rows, err = fn(ctx)
	return err
}
