package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"stockflow/internal/models"
)

// ErrInsufficientData is returned when fewer instruments than clusters have
// a complete feature vector.
var ErrInsufficientData = errors.New("insufficient data for clustering")

// Descriptions label cluster ids by position. Ids past the end share the
// last label. The k-means numbering carries no meaning, so the labels are
// best effort only.
var Descriptions = []string{
	"Low Risk, Low Return",
	"High Risk, High Return",
	"Stable, Moderate Return",
	"Volatile, Speculative",
	"Blue Chip, Stable",
}

// Describe returns the label of cluster id.
func Describe(id int) string {
	if id >= 0 && id < len(Descriptions) {
		return Descriptions[id]
	}
	return Descriptions[len(Descriptions)-1]
}

// Options configures a clustering run.
type Options struct {
	K         int
	Seed      uint64
	MaxIter   int
	Tolerance float64
}

// DefaultOptions returns five clusters with seed 42.
func DefaultOptions() Options {
	return Options{K: 5, Seed: 42, MaxIter: 20, Tolerance: 1e-4}
}

// Model is the fitted scaler and centroids.
type Model struct {
	Means      []float64
	Scales     []float64
	Centroids  [][]float64
	Sizes      []int
	Iterations int
	Inertia    float64
}

type sample struct {
	agg      models.Aggregate
	features []float64
}

// Cluster groups instruments by standardized {avg_daily_return,
// price_volatility, avg_volume}. Instruments missing any feature are left
// out. Output is ordered by symbol, then exchange, and is reproducible for
// a given seed.
func Cluster(aggs []models.Aggregate, opts Options) ([]models.ClusterAssignment, *Model, error) {
	if opts.K < 1 {
		return nil, nil, fmt.Errorf("cluster count must be positive, got %d", opts.K)
	}

	samples := usableSamples(aggs)
	if len(samples) < opts.K {
		return nil, nil, fmt.Errorf("%w: %d instruments for %d clusters", ErrInsufficientData, len(samples), opts.K)
	}

	points, means, scales := standardize(samples)
	model := &Model{Means: means, Scales: scales}
	labels := fit(points, opts, model)

	out := make([]models.ClusterAssignment, len(samples))
	for i, s := range samples {
		out[i] = models.ClusterAssignment{
			Symbol:          s.agg.Symbol,
			Exchange:        s.agg.Exchange,
			AvgDailyReturn:  s.features[0],
			PriceVolatility: s.features[1],
			AvgVolume:       s.features[2],
			ClusterID:       labels[i],
			Description:     Describe(labels[i]),
			ScaledFeatures:  points[i],
		}
	}
	return out, model, nil
}

func usableSamples(aggs []models.Aggregate) []sample {
	var out []sample
	for _, a := range aggs {
		if a.AvgDailyReturn == nil || a.PriceVolatility == nil {
			continue
		}
		f := []float64{*a.AvgDailyReturn, *a.PriceVolatility, a.AvgVolume}
		if !allFinite(f) {
			continue
		}
		out = append(out, sample{agg: a, features: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].agg.Key().Less(out[j].agg.Key()) })
	return out
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// standardize centres each feature and divides by its sample standard
// deviation. A constant feature maps to 0.
func standardize(samples []sample) (points [][]float64, means, scales []float64) {
	dims := len(samples[0].features)
	means = make([]float64, dims)
	scales = make([]float64, dims)
	column := make([]float64, len(samples))
	for d := 0; d < dims; d++ {
		for i, s := range samples {
			column[i] = s.features[d]
		}
		means[d] = stat.Mean(column, nil)
		if len(column) > 1 {
			scales[d] = stat.StdDev(column, nil)
		}
	}

	points = make([][]float64, len(samples))
	for i, s := range samples {
		p := make([]float64, dims)
		for d := range p {
			if scales[d] > 0 {
				p[d] = (s.features[d] - means[d]) / scales[d]
			}
		}
		points[i] = p
	}
	return points, means, scales
}

// fit runs k-means++ seeding followed by Lloyd iterations.
func fit(points [][]float64, opts Options, model *Model) []int {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	centroids := seedCentroids(points, opts.K, rng)
	labels := make([]int, len(points))

	maxIter := opts.MaxIter
	if maxIter < 1 {
		maxIter = 1
	}
	for iter := 1; iter <= maxIter; iter++ {
		model.Iterations = iter
		for i, p := range points {
			labels[i], _ = nearest(p, centroids)
		}
		if shift := recompute(points, labels, centroids); shift <= opts.Tolerance {
			break
		}
	}

	model.Centroids = centroids
	model.Sizes = make([]int, len(centroids))
	model.Inertia = 0
	for i, p := range points {
		var d float64
		labels[i], d = nearest(p, centroids)
		model.Sizes[labels[i]]++
		model.Inertia += d * d
	}
	return labels
}

// seedCentroids picks the first centre uniformly and each next one with
// probability proportional to its squared distance from the closest chosen
// centre.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	chosen := make([]bool, len(points))

	first := rng.IntN(len(points))
	chosen[first] = true
	centroids = append(centroids, clone(points[first]))

	weights := make([]float64, len(points))
	for len(centroids) < k {
		for i, p := range points {
			_, d := nearest(p, centroids)
			weights[i] = d * d
		}
		next := -1
		if total := floats.Sum(weights); total > 0 {
			target := rng.Float64() * total
			for i, w := range weights {
				if w == 0 {
					continue
				}
				next = i
				if target -= w; target <= 0 {
					break
				}
			}
		}
		if next < 0 {
			// every point coincides with a centre; take the first unused one
			for i := range points {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, clone(points[next]))
	}
	return centroids
}

// nearest returns the closest centroid, lowest index on ties.
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centre := range centroids {
		if d := floats.Distance(p, centre, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// recompute moves every centroid to the mean of its members and returns the
// largest move. An empty cluster keeps its centroid.
func recompute(points [][]float64, labels []int, centroids [][]float64) float64 {
	dims := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		floats.Add(sums[labels[i]], p)
		counts[labels[i]]++
	}

	var shift float64
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		shift = math.Max(shift, floats.Distance(sums[c], centroids[c], 2))
		centroids[c] = sums[c]
	}
	return shift
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
