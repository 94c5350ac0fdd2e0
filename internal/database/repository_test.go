package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "stockflow/config"
	"stockflow/internal/models"
)

func TestOpenDisabled(t *testing.T) {
	repo, err := Open(context.Background(), appconfig.DatabaseConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, repo)
	assert.NoError(t, repo.Close())
}

func TestNewAggregateModel(t *testing.T) {
	first := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	a := models.Aggregate{
		Symbol: "IBM", Exchange: "NYSE", RecordCount: 3, FirstDate: first, LastDate: first.AddDate(0, 0, 2),
		DataSpanDays: 2, AvgPrice: 10, AvgVolume: 100, MaxVolume: 120, MinVolume: 80,
		PriceVolatility: models.Float(0.5),
	}
	m := NewAggregateModel(a, "run-1")
	assert.Equal(t, "IBM", m.Symbol)
	assert.Equal(t, int64(2), m.DataSpanDays)
	assert.Equal(t, 0.5, *m.PriceVolatility)
	assert.Nil(t, m.AvgDailyReturn)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "stock_aggregations", m.TableName())
}

func TestNewClusterModel(t *testing.T) {
	m := NewClusterModel(models.ClusterAssignment{Symbol: "IBM", Exchange: "NYSE", ClusterID: 3, Description: "Low Risk, Low Return"}, "run-1")
	assert.Equal(t, 3, m.Cluster)
	assert.Equal(t, "Low Risk, Low Return", m.ClusterDescription)
	assert.Equal(t, "stock_clusters", tableName(&m))
}
