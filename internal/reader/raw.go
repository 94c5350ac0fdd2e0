package reader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"stockflow/internal/codec"
	"stockflow/internal/models"
	"stockflow/internal/storage"
	"stockflow/logger"
)

// ErrNoInput is returned when no input file matches the expected layout.
var ErrNoInput = errors.New("no input files")

// requiredRawColumns must be present in every raw file header.
var requiredRawColumns = []string{"date", "close", "volume"}

// ReadStats counts what the raw reader saw.
type ReadStats struct {
	Files        int
	SkippedFiles int
	Rows         int
}

// Reader loads tables from the store.
type Reader struct {
	store   storage.Store
	workers int
	log     *logger.Log
}

// NewReader returns a reader fetching at most workers objects at once.
func NewReader(store storage.Store, workers int) *Reader {
	if workers <= 0 {
		workers = 1
	}
	return &Reader{store: store, workers: workers, log: logger.GetLogger()}
}

type rawFile struct {
	key      string
	exchange string
	symbol   string
}

// matchRawKey accepts keys shaped <prefix>/<exchange>/<date>/<symbol>.csv.
func matchRawKey(prefix, key string) (rawFile, bool) {
	rel := strings.TrimPrefix(key, strings.Trim(prefix, "/")+"/")
	if prefix == "" {
		rel = key
	}
	parts := strings.Split(rel, "/")
	if len(parts) != 3 || !strings.EqualFold(path.Ext(parts[2]), ".csv") {
		return rawFile{}, false
	}
	for _, p := range parts {
		if p == "" {
			return rawFile{}, false
		}
	}
	return rawFile{
		key:      key,
		exchange: parts[0],
		symbol:   strings.TrimSuffix(parts[2], path.Ext(parts[2])),
	}, true
}

// ReadRaw loads every raw CSV file under prefix. Files that are empty or
// malformed are skipped and counted; unparseable values become nil.
func (r *Reader) ReadRaw(ctx context.Context, prefix string) ([]models.RawPrice, ReadStats, error) {
	log := r.log.WithComponent("reader").WithFields(logger.Fields{"prefix": prefix})

	keys, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("list raw files: %w", err)
	}

	var files []rawFile
	for _, key := range keys {
		if f, ok := matchRawKey(prefix, key); ok {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, ReadStats{}, fmt.Errorf("%s: %w", prefix, ErrNoInput)
	}

	results := make([][]models.RawPrice, len(files))
	skipped := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, f := range files {
		g.Go(func() error {
			data, err := r.store.Read(gctx, f.key)
			if err != nil {
				return err
			}
			logger.RecordRead(prefix, int64(len(data)))

			rows, err := parseRawFile(data, f)
			if err != nil {
				log.WithFields(logger.Fields{"file": f.key}).WithError(err).Warn("skipping raw file")
				skipped[i] = true
				return nil
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ReadStats{}, fmt.Errorf("read raw files: %w", err)
	}

	stats := ReadStats{Files: len(files)}
	var out []models.RawPrice
	for i, rows := range results {
		if skipped[i] {
			stats.SkippedFiles++
			continue
		}
		out = append(out, rows...)
	}
	stats.Rows = len(out)

	log.WithFields(logger.Fields{
		"files":         stats.Files,
		"skipped_files": stats.SkippedFiles,
		"rows":          stats.Rows,
	}).Info("raw dataset loaded")
	return out, stats, nil
}

var errEmptyFile = errors.New("empty file")

func parseRawFile(data []byte, f rawFile) ([]models.RawPrice, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := codec.HeaderIndex(header)
	for _, col := range requiredRawColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", codec.ErrMissingColumn, col)
		}
	}

	var rows []models.RawPrice
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := models.RawPrice{
			Symbol:            strings.TrimSpace(codec.Field(line, idx, "symbol")),
			Exchange:          strings.TrimSpace(codec.Field(line, idx, "exchange")),
			Date:              codec.ParseDate(codec.Field(line, idx, "date")),
			Open:              codec.ParseFloat(codec.Field(line, idx, "open")),
			High:              codec.ParseFloat(codec.Field(line, idx, "high")),
			Low:               codec.ParseFloat(codec.Field(line, idx, "low")),
			Close:             codec.ParseFloat(codec.Field(line, idx, "close")),
			Volume:            codec.ParseInt(codec.Field(line, idx, "volume")),
			Interval:          codec.Field(line, idx, "interval"),
			DownloadTimestamp: codec.Field(line, idx, "download_timestamp"),
			SourcePath:        f.key,
		}
		if row.Symbol == "" {
			row.Symbol = f.symbol
		}
		if row.Exchange == "" {
			row.Exchange = f.exchange
		}
		rows = append(rows, row)
	}
	return rows, nil
}
