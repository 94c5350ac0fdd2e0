package logger

import (
	"io"
	"runtime"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWarnAndErrorCountedPerComponent(t *testing.T) {
	ResetReport()
	t.Cleanup(ResetReport)

	log := Logger()
	log.SetOutput(io.Discard)
	log.WithComponent("reader").Warn("skipping file")
	log.WithComponent("reader").Warn("skipping file")
	log.WithComponent("writer").Error("upload failed")

	snap := Snapshot()
	if snap.Warnings["reader"] != 2 {
		t.Fatalf("expected 2 reader warnings, got %v", snap.Warnings)
	}
	if snap.Errors["writer"] != 1 {
		t.Fatalf("expected 1 writer error, got %v", snap.Errors)
	}
}

func TestRecordIO(t *testing.T) {
	ResetReport()
	t.Cleanup(ResetReport)

	RecordWrite("processed/daily_stocks", 100)
	RecordWrite("processed/daily_stocks", 50)
	RecordRead("raw", 10)

	snap := Snapshot()
	if got := snap.Writes["processed/daily_stocks"]; got["objects"] != 2 || got["bytes"] != 150 {
		t.Fatalf("unexpected write stats: %v", got)
	}
	if got := snap.Reads["raw"]; got["objects"] != 1 || got["bytes"] != 10 {
		t.Fatalf("unexpected read stats: %v", got)
	}
}

func TestWithStage(t *testing.T) {
	entry := Logger().WithRun("run-1").WithStage("clean")
	if entry.Entry.Data["stage"] != "clean" || entry.Entry.Data["run_id"] != "run-1" {
		t.Fatalf("stage/run fields missing: %v", entry.Entry.Data)
	}
}

func TestRecordMetricTotals(t *testing.T) {
	ResetReport()
	t.Cleanup(ResetReport)

	RecordMetric("processor.rows_dropped.duplicate", 2)
	RecordMetric("processor.rows_dropped.duplicate", 1.5)

	if got := Snapshot().Metrics["processor.rows_dropped.duplicate"]; got != 3.5 {
		t.Fatalf("unexpected metric total: %v", got)
	}
	ResetReport()
	if got := Snapshot().Metrics; len(got) != 0 {
		t.Fatalf("metrics not reset: %v", got)
	}
}

func TestCallerPointsPastWrappers(t *testing.T) {
	log := Logger()
	log.SetOutput(io.Discard)
	hook := logtest.NewLocal(log.Logger)

	log.WithComponent("pipeline").WithStage("clean").Info("stage finished")

	entry := hook.LastEntry()
	if entry == nil || entry.Caller == nil {
		t.Fatal("expected caller on entry")
	}
	if !strings.HasSuffix(entry.Caller.File, "logger_test.go") {
		t.Fatalf("caller should be the test file, got %s", entry.Caller.File)
	}
}

func TestPrettyCallerKeepsDirectory(t *testing.T) {
	_, file := prettyCaller(&runtime.Frame{File: "/src/stockflow/internal/pipeline/jobs.go", Line: 42})
	if file != "pipeline/jobs.go:42" {
		t.Fatalf("unexpected caller: %s", file)
	}
}
