package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "stockflow/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "raw/NYSE/2024-01-02/IBM.csv", []byte("a")))
	require.NoError(t, s.Write(ctx, "raw/NASDAQ/2024-01-02/AAPL.csv", []byte("bb")))

	data, err := s.Read(ctx, "raw/NASDAQ/2024-01-02/AAPL.csv")
	require.NoError(t, err)
	assert.Equal(t, "bb", string(data))

	keys, err := s.List(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"raw/NASDAQ/2024-01-02/AAPL.csv",
		"raw/NYSE/2024-01-02/IBM.csv",
	}, keys)
}

func TestLocalStoreListMatchesWholeSegments(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "processed/daily_stocks/part-0.parquet", []byte("x")))
	require.NoError(t, s.Write(ctx, "processed/daily_stocks_csv/part-0.csv", []byte("y")))

	keys, err := s.List(ctx, "processed/daily_stocks")
	require.NoError(t, err)
	assert.Equal(t, []string{"processed/daily_stocks/part-0.parquet"}, keys)
}

func TestLocalStoreMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	keys, err := s.List(ctx, "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = s.Read(ctx, "nothing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "nothing.csv"))
}

func TestLocalStoreDeletePrunesDirectories(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "t/year=2024/month=1/part-0.csv", []byte("x")))
	require.NoError(t, s.Delete(ctx, "t/year=2024/month=1/part-0.csv"))

	assert.NoDirExists(t, filepath.Join(root, "t"))
	assert.DirExists(t, root)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.Storage.Backend = "hdfs"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a/b/c.csv", Join("a", "b/", "/c.csv"))
	assert.Equal(t, "processed/", dirPrefix("/processed/"))
	assert.Equal(t, "", dirPrefix(""))
}
