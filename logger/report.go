package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type ioStat struct {
	objects int64
	bytes   int64
}

var (
	warnCounts  sync.Map // component -> *int64
	errorCounts sync.Map // component -> *int64
	reads       sync.Map // table -> *ioStat
	writes      sync.Map // table -> *ioStat

	metricsMu    sync.Mutex
	metricTotals = map[string]float64{}
)

func recordWarn(component string) {
	incr(&warnCounts, component)
}

func recordError(component string) {
	incr(&errorCounts, component)
}

func incr(m *sync.Map, key string) {
	v, _ := m.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// RecordRead counts one object of size bytes read for the given table.
func RecordRead(table string, size int64) {
	recordIO(&reads, table, size)
}

// RecordWrite counts one object of size bytes written for the given table.
func RecordWrite(table string, size int64) {
	recordIO(&writes, table, size)
}

func recordIO(m *sync.Map, table string, size int64) {
	v, _ := m.LoadOrStore(table, &ioStat{})
	s := v.(*ioStat)
	atomic.AddInt64(&s.objects, 1)
	atomic.AddInt64(&s.bytes, size)
}

// RecordMetric adds value to the running total of the named series.
func RecordMetric(key string, value float64) {
	metricsMu.Lock()
	metricTotals[key] += value
	metricsMu.Unlock()
}

func loadMetrics() map[string]float64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]float64, len(metricTotals))
	for k, v := range metricTotals {
		out[k] = v
	}
	return out
}

// Report is a point-in-time view of the process counters.
type Report struct {
	Warnings map[string]int64
	Errors   map[string]int64
	Reads    map[string]map[string]int64
	Writes   map[string]map[string]int64
	Metrics  map[string]float64
}

// Snapshot returns the current counters.
func Snapshot() Report {
	return Report{
		Warnings: loadCounts(&warnCounts),
		Errors:   loadCounts(&errorCounts),
		Reads:    loadIO(&reads),
		Writes:   loadIO(&writes),
		Metrics:  loadMetrics(),
	}
}

// ResetReport clears every counter. Used between runs in the same process.
func ResetReport() {
	for _, m := range []*sync.Map{&warnCounts, &errorCounts, &reads, &writes} {
		m.Range(func(k, _ any) bool {
			m.Delete(k)
			return true
		})
	}
	metricsMu.Lock()
	metricTotals = map[string]float64{}
	metricsMu.Unlock()
}

func loadCounts(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

func loadIO(m *sync.Map) map[string]map[string]int64 {
	out := map[string]map[string]int64{}
	m.Range(func(k, v any) bool {
		s := v.(*ioStat)
		out[k.(string)] = map[string]int64{
			"objects": atomic.LoadInt64(&s.objects),
			"bytes":   atomic.LoadInt64(&s.bytes),
		}
		return true
	})
	return out
}

// StartReport begins periodic logging of host and IO statistics until ctx
// is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				LogReport(log, "runtime report")
			}
		}
	}()
}

// LogReport writes the current counters and host usage as one entry.
func LogReport(log *Log, msg string) {
	cpuPercent, _ := cpu.Percent(0, false)
	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	var memUsedMB, diskUsedMB int64
	if memStats, err := mem.VirtualMemory(); err == nil {
		memUsedMB = int64(memStats.Used) / 1024 / 1024
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		diskUsedMB = int64(diskStats.Used) / 1024 / 1024
	}

	snap := Snapshot()
	log.WithComponent("report").WithFields(Fields{
		"warnings":    snap.Warnings,
		"errors":      snap.Errors,
		"reads":       snap.Reads,
		"writes":      snap.Writes,
		"metrics":     snap.Metrics,
		"goroutines":  runtime.NumGoroutine(),
		"cpu_percent": cpuPct,
		"memory_mb":   memUsedMB,
		"disk_mb":     diskUsedMB,
	}).Info(msg)
}
