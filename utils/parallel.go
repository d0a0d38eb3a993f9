package utils

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// IndexedWorkFunc computes the result for work item i.
type IndexedWorkFunc[T any] func(ctx context.Context, i int) (T, error)

// RunIndexedParallel runs fn for every index in [0, n) on at most `workers` goroutines
// and returns the results in index order once all of them are done. A worker panic is
// turned into an error. The first error cancels the context handed to the other workers.
func RunIndexedParallel[T any](ctx context.Context, n, workers int, fn IndexedWorkFunc[T]) ([]T, error) {
	if workers <= 0 {
		workers = ParallelFactor
	}
	results := make([]T, n)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := 0; i < n; i++ {
		idx := i
		group.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic running work item %d in parallel: %v", idx, thePanic)
				}
			}()
			if err := groupCtx.Err(); err != nil {
				return err
			}
			res, err := fn(groupCtx, idx)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
