package writer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	appconfig "stockflow/config"
	"stockflow/internal/codec"
	"stockflow/internal/metadata"
	"stockflow/internal/storage"
	"stockflow/logger"
)

const (
	formatParquet = "parquet"
	formatCSV     = "csv"
	formatJSON    = "json"

	catalogPrefix = "_catalog"
	uploadWorkers = 4
)

// ErrNoTablePath is returned when a table would be written at the store root.
var (
	ErrNoTablePath = errors.New("table path is empty")
	// ErrNoMirrorSuffix is returned when the CSV mirror would share its
	// table's path.
	ErrNoMirrorSuffix = errors.New("mirror suffix is empty")
)

// TableResult reports one table overwrite.
type TableResult struct {
	Table   string
	Files   int
	Rows    int64
	Bytes   int64
	Deleted int
}

// Sink persists pipeline outputs. Every write replaces the whole table: new
// objects go in first under deterministic names, then anything else under
// the table prefix is removed, and the manifest is written last.
type Sink struct {
	store   storage.Store
	cfg     appconfig.WriterConfig
	paths   appconfig.PathsConfig
	runID   string
	now     func() time.Time
	log     *logger.Log
}

// NewSink returns a sink writing to store with the configured layout.
func NewSink(store storage.Store, cfg *appconfig.Config, runID string) *Sink {
	return &Sink{
		store:   store,
		cfg:     cfg.Writer,
		paths:   cfg.Paths,
		runID:   runID,
		now:     time.Now,
		log:     logger.GetLogger(),
	}
}

// object is one file of a table write.
type object struct {
	key       string
	format    string
	data      []byte
	rows      int64
	partition map[string]string
}

type monthKey struct{ year, month int }

func (m monthKey) dir() string {
	return fmt.Sprintf("year=%d/month=%d", m.year, m.month)
}

func (m monthKey) partition() map[string]string {
	return map[string]string{"year": strconv.Itoa(m.year), "month": strconv.Itoa(m.month)}
}

// byMonth splits rows into hive-style year/month partitions, sorted.
func byMonth[T any](rows []T, ym func(T) (int, int)) ([]monthKey, map[monthKey][]T) {
	groups := make(map[monthKey][]T)
	for _, r := range rows {
		y, m := ym(r)
		k := monthKey{y, m}
		groups[k] = append(groups[k], r)
	}
	keys := make([]monthKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})
	return keys, groups
}

func partFile(format string) string {
	return "part-00000." + format
}

func (s *Sink) parquetOptions() codec.ParquetOptions {
	return codec.ParquetOptions{Compression: s.cfg.Compression, RowGroupSize: s.cfg.RowGroupSize}
}

func (s *Sink) mirror(table string) (string, error) {
	if s.paths.MirrorSuffix == "" {
		return "", fmt.Errorf("mirror of %q: %w", table, ErrNoMirrorSuffix)
	}
	return table + s.paths.MirrorSuffix, nil
}

// overwrite replaces everything under table with objects and commits a
// manifest describing them.
func (s *Sink) overwrite(ctx context.Context, table string, columns []string, objects []object) (TableResult, error) {
	if strings.Trim(path.Clean("/"+table), "/") == "" {
		return TableResult{}, fmt.Errorf("overwrite %q: %w", table, ErrNoTablePath)
	}
	start := time.Now()
	log := s.log.WithComponent("writer").WithFields(logger.Fields{"table": table, "run_id": s.runID})

	written := make(map[string]bool, len(objects))
	result := TableResult{Table: table, Files: len(objects)}
	for _, o := range objects {
		written[o.key] = true
		result.Rows += o.rows
		result.Bytes += int64(len(o.data))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadWorkers)
	for _, o := range objects {
		g.Go(func() error {
			if err := s.store.Write(gctx, o.key, o.data); err != nil {
				return err
			}
			logger.RecordWrite(table, int64(len(o.data)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("table write failed")
		return result, fmt.Errorf("write %s: %w", table, err)
	}

	existing, err := s.store.List(ctx, table)
	if err != nil {
		return result, fmt.Errorf("list %s: %w", table, err)
	}
	for _, key := range existing {
		if written[key] || metadata.IsMetadataKey(table, key) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return result, fmt.Errorf("remove stale object: %w", err)
		}
		result.Deleted++
	}

	gen := metadata.NewGenerator(s.store, table)
	for _, o := range objects {
		gen.AddFile(metadata.DataFile{
			Path:        s.store.URI(o.key),
			Format:      o.format,
			FileSize:    int64(len(o.data)),
			RecordCount: o.rows,
			Partition:   o.partition,
		})
	}
	if _, err := gen.Commit(ctx, s.runID, columns, s.now()); err != nil {
		return result, err
	}
	if err := gen.WriteCatalogEntry(ctx, catalogPrefix, path.Base(table)); err != nil {
		log.WithError(err).Warn("failed to update catalog entry")
	}

	logger.LogPerformanceEntry(log, "writer", "overwrite_table", time.Since(start), logger.Fields{
		"files":   result.Files,
		"rows":    result.Rows,
		"bytes":   result.Bytes,
		"deleted": result.Deleted,
	})
	return result, nil
}

func columnNames[T any](cols []codec.Column[T]) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
