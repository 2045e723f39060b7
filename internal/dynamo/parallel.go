package dynamo

import "golang.org/x/sync/errgroup"

// Workers runs fn once per worker index in [0, n) and blocks until every
// call has returned. The first non-nil error is returned; the remaining
// workers are not interrupted and finish their share of the phase.
func Workers(n int, fn func(worker int) error) error {
	if n <= 1 {
		if n == 1 {
			return fn(0)
		}
		return nil
	}

	var g errgroup.Group
	for w := 0; w < n; w++ {
		g.Go(func() error {
			return fn(w)
		})
	}
	return g.Wait()
}

// ParallelFor splits [0, n) into at most `workers` contiguous chunks and
// runs fn on each chunk concurrently.
func ParallelFor(n, workers int, fn func(start, end int) error) error {
	if workers < 1 {
		workers = 1
	}
	if n <= workers || workers == 1 {
		if n == 0 {
			return nil
		}
		return fn(0, n)
	}

	chunkSize := (n + workers - 1) / workers
	return Workers(workers, func(w int) error {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			return nil
		}
		return fn(start, end)
	})
}
