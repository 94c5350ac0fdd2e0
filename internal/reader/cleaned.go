package reader

import (
	"context"
	"fmt"
	"strings"

	"stockflow/internal/codec"
	"stockflow/internal/models"
	"stockflow/logger"
)

// Cleaned dataset sources reported by ReadCleaned.
const (
	SourceParquet = "parquet"
	SourceCSV     = "csv"
)

// ReadCleaned loads the cleaned daily table from its parquet files and falls
// back to the CSV mirror at prefix+mirrorSuffix when the parquet copy is
// missing or unreadable.
func (r *Reader) ReadCleaned(ctx context.Context, prefix, mirrorSuffix string) ([]models.PriceRecord, string, error) {
	log := r.log.WithComponent("reader").WithFields(logger.Fields{"prefix": prefix})

	rows, err := r.readCleanedParquet(ctx, prefix)
	if err == nil && len(rows) > 0 {
		log.WithFields(logger.Fields{"rows": len(rows), "source": SourceParquet}).Info("cleaned dataset loaded")
		return rows, SourceParquet, nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	if err != nil {
		log.WithError(err).Warn("parquet read failed, trying csv mirror")
	}

	mirror := prefix + mirrorSuffix
	rows, err = r.readCleanedCSV(ctx, mirror)
	if err != nil {
		return nil, "", fmt.Errorf("read cleaned mirror %s: %w", mirror, err)
	}
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("%s: %w", prefix, ErrNoInput)
	}
	log.WithFields(logger.Fields{"rows": len(rows), "source": SourceCSV}).Info("cleaned dataset loaded")
	return rows, SourceCSV, nil
}

func (r *Reader) readCleanedParquet(ctx context.Context, prefix string) ([]models.PriceRecord, error) {
	var out []models.PriceRecord
	err := r.readObjects(ctx, prefix, ".parquet", func(data []byte) error {
		rows, err := codec.DecodeParquet[codec.PriceRow](data)
		if err != nil {
			return err
		}
		for _, row := range rows {
			out = append(out, row.Record())
		}
		return nil
	})
	return out, err
}

func (r *Reader) readCleanedCSV(ctx context.Context, prefix string) ([]models.PriceRecord, error) {
	var out []models.PriceRecord
	err := r.readObjects(ctx, prefix, ".csv", func(data []byte) error {
		rows, err := codec.DecodePriceCSV(data)
		if err != nil {
			return err
		}
		out = append(out, rows...)
		return nil
	})
	return out, err
}

// readObjects feeds every object under prefix with the given suffix to fn,
// in key order.
func (r *Reader) readObjects(ctx context.Context, prefix, suffix string, fn func([]byte) error) error {
	keys, err := r.store.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		data, err := r.store.Read(ctx, key)
		if err != nil {
			return err
		}
		logger.RecordRead(prefix, int64(len(data)))
		if err := fn(data); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return nil
}
