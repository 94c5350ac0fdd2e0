package codec

import (
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	pqreader "github.com/xitongsys/parquet-go/reader"
	pqwriter "github.com/xitongsys/parquet-go/writer"
)

// ParquetOptions controls file encoding.
type ParquetOptions struct {
	Compression  string
	RowGroupSize int64
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "snappy", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "none":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression %q", name)
	}
}

// EncodeParquet writes rows as a single parquet file. T must be a struct
// with parquet tags.
func EncodeParquet[T any](rows []T, opts ParquetOptions) ([]byte, error) {
	compression, err := compressionCodec(opts.Compression)
	if err != nil {
		return nil, err
	}

	mem := newMemWriter()
	pw, err := pqwriter.NewParquetWriter(mem, new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = compression
	if opts.RowGroupSize > 0 {
		pw.RowGroupSize = opts.RowGroupSize
	}

	for _, rec := range rows {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.Bytes(), nil
}

// DecodeParquet reads every row of a parquet file produced by EncodeParquet.
// Corrupt input is reported as an error.
func DecodeParquet[T any](data []byte) (rows []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("decode parquet: %v", r)
		}
	}()

	pr, err := pqreader.NewParquetReader(newMemReader(data), new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows = make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows, nil
}
