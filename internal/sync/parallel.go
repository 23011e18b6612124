// Package sync holds the bounded fan-out helpers used by batch operations.
package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
)

// ParallelResult holds the result of one item of a parallel operation.
type ParallelResult[T any, R any] struct {
	Item  T
	Value R
	Err   error
}

// ParallelCollect processes items with the given number of workers. A failing
// item does not stop the others; every item gets a result, in input order.
// Items not started before ctx ends carry ctx's error.
//
// The onProgress callback is called after each successful item is processed.
func ParallelCollect[T any, R any](
	ctx context.Context,
	items []T,
	workers int,
	process func(ctx context.Context, item T) (R, error),
	onProgress func(done int64, total int64),
) []ParallelResult[T, R] {
	if len(items) == 0 {
		return nil
	}

	workers = normalizeWorkers(workers, len(items))
	total := int64(len(items))

	out := make([]ParallelResult[T, R], len(items))
	jobs := make(chan int, len(items))
	var done int64

	var wg gosync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				item := items[idx]
				if err := ctx.Err(); err != nil {
					out[idx] = ParallelResult[T, R]{Item: item, Err: err}
					continue
				}
				value, err := process(ctx, item)
				out[idx] = ParallelResult[T, R]{Item: item, Value: value, Err: err}
				if err != nil {
					continue
				}
				n := atomic.AddInt64(&done, 1)
				if onProgress != nil {
					onProgress(n, total)
				}
			}
		}()
	}

	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return out
}

// Succeeded returns the values of the results without error.
func Succeeded[T any, R any](results []ParallelResult[T, R]) []R {
	out := make([]R, 0, len(results))
	for _, res := range results {
		if res.Err == nil {
			out = append(out, res.Value)
		}
	}
	return out
}

// normalizeWorkers ensures worker count is between 1 and item count.
func normalizeWorkers(workers, itemCount int) int {
	if workers < 1 {
		workers = 1
	}
	if workers > itemCount {
		workers = itemCount
	}
	return workers
}
