package clinic

import (
	"context"
	"sync"
)

type settled[T any] struct {
	value T
	err   error
}

// settleAll runs fn for every index concurrently and waits for all of them.
// A failing branch never cancels its siblings; results keep index order.
func settleAll[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) []settled[T] {
	results := make([]settled[T], n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := fn(ctx, i)
			results[i] = settled[T]{value: v, err: err}
		}(i)
	}
	wg.Wait()
	return results
}
