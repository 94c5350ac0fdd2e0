package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/models"
)

func agg(symbol string, ret, vol, volume float64) models.Aggregate {
	return models.Aggregate{
		Symbol:          symbol,
		Exchange:        "NYSE",
		AvgDailyReturn:  models.Float(ret),
		PriceVolatility: models.Float(vol),
		AvgVolume:       volume,
	}
}

func twoGroups() []models.Aggregate {
	var out []models.Aggregate
	for i := 0; i < 5; i++ {
		out = append(out, agg(fmt.Sprintf("LOW%d", i), 0.1+float64(i)*0.01, 1+float64(i)*0.01, 1e5))
		out = append(out, agg(fmt.Sprintf("HIGH%d", i), 5+float64(i)*0.01, 40+float64(i)*0.01, 9e6))
	}
	return out
}

func TestClusterSeparatesGroups(t *testing.T) {
	out, model, err := Cluster(twoGroups(), Options{K: 2, Seed: 42, MaxIter: 20, Tolerance: 1e-4})
	require.NoError(t, err)
	require.Len(t, out, 10)

	byGroup := map[string]map[int]bool{"LOW": {}, "HIGH": {}}
	for _, a := range out {
		group := "LOW"
		if a.Symbol[:4] == "HIGH" {
			group = "HIGH"
		}
		byGroup[group][a.ClusterID] = true
		assert.Len(t, a.ScaledFeatures, len(models.ClusterFeatures))
		assert.Equal(t, Describe(a.ClusterID), a.Description)
	}
	assert.Len(t, byGroup["LOW"], 1)
	assert.Len(t, byGroup["HIGH"], 1)
	assert.NotEqual(t, byGroup["LOW"], byGroup["HIGH"])
	assert.Equal(t, []int{5, 5}, model.Sizes)
}

func TestClusterIsReproducible(t *testing.T) {
	in := twoGroups()
	first, _, err := Cluster(in, DefaultOptions())
	require.NoError(t, err)

	reversed := make([]models.Aggregate, len(in))
	for i, a := range in {
		reversed[len(in)-1-i] = a
	}
	second, _, err := Cluster(reversed, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Symbol < first[i].Symbol)
	}
}

func TestClusterInsufficientData(t *testing.T) {
	in := []models.Aggregate{agg("A", 1, 1, 1), agg("B", 2, 2, 2), agg("C", 3, 3, 3)}
	in = append(in, models.Aggregate{Symbol: "D", AvgVolume: 4}, models.Aggregate{Symbol: "E", AvgDailyReturn: models.Float(1)})

	_, _, err := Cluster(in, DefaultOptions())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestConstantFeatureScalesToZero(t *testing.T) {
	in := []models.Aggregate{agg("A", 1, 2, 100), agg("B", 3, 2, 100), agg("C", 5, 2, 100)}
	out, model, err := Cluster(in, Options{K: 3, Seed: 42, MaxIter: 20})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, model.Scales[1:])
	for _, a := range out {
		assert.Equal(t, 0.0, a.ScaledFeatures[1])
		assert.Equal(t, 0.0, a.ScaledFeatures[2])
	}
	ids := map[int]bool{}
	for _, a := range out {
		ids[a.ClusterID] = true
	}
	assert.Len(t, ids, 3, "three distinct points get three clusters")
}

// Cluster ids are labelled by position, not by centroid characteristics;
// these labels carry no guarantee that e.g. cluster 0 has low risk.
func TestDescriptionsArePositional(t *testing.T) {
	assert.Equal(t, "Low Risk, Low Return", Describe(0))
	assert.Equal(t, "High Risk, High Return", Describe(1))
	assert.Equal(t, "Stable, Moderate Return", Describe(2))
	assert.Equal(t, "Volatile, Speculative", Describe(3))
	assert.Equal(t, "Blue Chip, Stable", Describe(4))
	assert.Equal(t, "Blue Chip, Stable", Describe(7))
}

func TestClusterRejectsNonPositiveK(t *testing.T) {
	_, _, err := Cluster(twoGroups(), Options{K: 0})
	assert.Error(t, err)
}
