package writer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "stockflow/config"
	"stockflow/internal/codec"
	"stockflow/internal/metadata"
	"stockflow/internal/models"
	"stockflow/internal/storage"
)

func newSink(t *testing.T) (*Sink, storage.Store) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	cfg := appconfig.Default()
	s := NewSink(store, &cfg, "run-1")
	s.now = func() time.Time { return time.Unix(0, 0).UTC() }
	return s, store
}

func price(symbol string, y, m, d int, close float64) models.PriceRecord {
	return models.PriceRecord{
		Symbol: symbol, Exchange: "NYSE", Date: time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC),
		Close: close, Volume: 100, VolumeCategory: models.VolumeLow, Year: y, Month: m, Day: d,
	}
}

func dataKeys(t *testing.T, store storage.Store, table string) []string {
	t.Helper()
	keys, err := store.List(context.Background(), table)
	require.NoError(t, err)
	var out []string
	for _, k := range keys {
		if !metadata.IsMetadataKey(table, k) {
			out = append(out, k)
		}
	}
	return out
}

func TestWriteCleanedPartitionsByMonth(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)

	rows := []models.PriceRecord{
		price("IBM", 2024, 2, 1, 11),
		price("IBM", 2024, 1, 2, 10),
		price("IBM", 2024, 1, 3, 10.5),
	}
	results, err := s.WriteCleaned(ctx, rows)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[0].Rows)
	assert.Equal(t, 2, results[0].Files)

	assert.Equal(t, []string{
		"processed/daily_stocks/year=2024/month=1/part-00000.parquet",
		"processed/daily_stocks/year=2024/month=2/part-00000.parquet",
	}, dataKeys(t, store, "processed/daily_stocks"))
	assert.Equal(t, []string{
		"processed/daily_stocks_csv/year=2024/month=1/part-00000.csv",
		"processed/daily_stocks_csv/year=2024/month=2/part-00000.csv",
	}, dataKeys(t, store, "processed/daily_stocks_csv"))

	data, err := store.Read(ctx, "processed/daily_stocks/year=2024/month=1/part-00000.parquet")
	require.NoError(t, err)
	decoded, err := codec.DecodeParquet[codec.PriceRow](data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, 10.0, decoded[0].Record().Close)

	m, err := metadata.ReadManifest(ctx, store, "processed/daily_stocks")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.RecordCount)
	assert.Equal(t, "run-1", m.RunID)
}

func TestOverwriteRemovesStaleObjects(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)

	_, err := s.WriteCleaned(ctx, []models.PriceRecord{price("IBM", 2023, 12, 29, 9)})
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "processed/daily_stocks/stray.txt", []byte("x")))

	results, err := s.WriteCleaned(ctx, []models.PriceRecord{price("IBM", 2024, 1, 2, 10)})
	require.NoError(t, err)
	assert.Equal(t, 2, results[0].Deleted)

	assert.Equal(t, []string{
		"processed/daily_stocks/year=2024/month=1/part-00000.parquet",
	}, dataKeys(t, store, "processed/daily_stocks"))
}

func TestWriteClustersRefusesStoreRoot(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)
	s.paths.Clusters = ""

	raw := "raw/NYSE/2024-01-02/IBM.csv"
	cleaned := "processed/daily_stocks/year=2024/month=1/part-00000.parquet"
	require.NoError(t, store.Write(ctx, raw, []byte("x")))
	require.NoError(t, store.Write(ctx, cleaned, []byte("x")))

	_, err := s.WriteClusters(ctx, nil)
	require.ErrorIs(t, err, ErrNoTablePath)

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{cleaned, raw}, keys)
}

func TestWriteCleanedRequiresMirrorSuffix(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)
	s.paths.MirrorSuffix = ""

	_, err := s.WriteCleaned(ctx, []models.PriceRecord{price("IBM", 2024, 1, 2, 10)})
	require.ErrorIs(t, err, ErrNoMirrorSuffix)
	assert.Equal(t, []string{
		"processed/daily_stocks/year=2024/month=1/part-00000.parquet",
	}, dataKeys(t, store, "processed/daily_stocks"))
}

func TestWriteCleanedWithoutMirror(t *testing.T) {
	s, store := newSink(t)
	s.cfg.CSVMirror = false

	results, err := s.WriteCleaned(context.Background(), []models.PriceRecord{price("IBM", 2024, 1, 2, 10)})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Empty(t, dataKeys(t, store, "processed/daily_stocks_csv"))
}

func TestWriteAggregatesAndClustersUnpartitioned(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)

	_, err := s.WriteAggregates(ctx, []models.Aggregate{{Symbol: "IBM", Exchange: "NYSE", RecordCount: 2, AvgPrice: 10}})
	require.NoError(t, err)
	assert.Equal(t, []string{"processed/stock_aggregations/part-00000.parquet"}, dataKeys(t, store, "processed/stock_aggregations"))
	assert.Equal(t, []string{"processed/stock_aggregations_csv/part-00000.csv"}, dataKeys(t, store, "processed/stock_aggregations_csv"))

	_, err = s.WriteClusters(ctx, []models.ClusterAssignment{{
		Symbol: "IBM", Exchange: "NYSE", ClusterID: 0, Description: "High Risk, High Return",
		ScaledFeatures: []float64{0, 0, 0},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"analytics/stock_clusters/part-00000.parquet"}, dataKeys(t, store, "analytics/stock_clusters"))
}

func TestWriteAnalysisCSV(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)

	rec := models.AnalysisRecord{PriceRecord: price("IBM", 2024, 3, 4, 10)}
	rec.CombinedSignal = models.SignalHold
	res, err := s.WriteAnalysis(ctx, []models.AnalysisRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows)

	data, err := store.Read(ctx, "analytics/technical_analysis/year=2024/month=3/part-00000.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "HOLD")
}

func TestWriteInsights(t *testing.T) {
	ctx := context.Background()
	s, store := newSink(t)

	report := &models.Insights{AsOf: "2024-01-05", TradingSignals: map[string]int64{"HOLD": 3}}
	_, err := s.WriteInsights(ctx, report)
	require.NoError(t, err)

	data, err := store.Read(ctx, s.InsightsKey())
	require.NoError(t, err)
	var got models.Insights
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "2024-01-05", got.AsOf)
	assert.Equal(t, int64(3), got.TradingSignals["HOLD"])
}
