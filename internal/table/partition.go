package table

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"stockflow/internal/models"
)

// Partition groups rows by key, preserving the input order inside each group.
// The returned keys are sorted so downstream output is deterministic.
func Partition[T any](rows []T, key func(T) models.SymbolKey) ([]models.SymbolKey, map[models.SymbolKey][]T) {
	groups := make(map[models.SymbolKey][]T)
	for _, r := range rows {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	keys := make([]models.SymbolKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, groups
}

// MapPartitions applies fn to every partition concurrently, bounded by
// workers, and concatenates the results in key order. The first error
// cancels the remaining partitions. A panic inside fn is returned as an
// error naming the partition.
func MapPartitions[T, R any](ctx context.Context, rows []T, key func(T) models.SymbolKey, workers int, fn func(context.Context, models.SymbolKey, []T) ([]R, error)) ([]R, error) {
	keys, groups := Partition(rows, key)
	results := make([][]R, len(keys))

	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, k := range keys {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("partition %s: panic: %v", k, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(gctx, k, groups[k])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]R, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}
