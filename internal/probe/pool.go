package probe

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// workList is a shared, shrinking list of pending work. Takes are
// non-blocking: losing the race to an emptied list is a normal outcome
// that tells the worker to exit, not a fault.
type workList[T any] struct {
	mu    sync.Mutex
	items []T
}

func newWorkList[T any](items []T) *workList[T] {
	// Copy so draining never mutates the caller's slice.
	l := &workList[T]{items: make([]T, len(items))}
	copy(l.items, items)
	return l
}

// tryTake pops one item, or reports empty.
func (l *workList[T]) tryTake() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if len(l.items) == 0 {
		return zero, false
	}
	item := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return item, true
}

// drain processes every item with up to n concurrent workers and
// returns the collected results in completion order, which is not the
// input order. Items for which fn reports absent are dropped silently;
// fn is expected to have logged the reason.
//
// Design decision: a fixed set of workers pulling from a shared list
// until it is empty gives the same elasticity as topping up a thread
// pool on a polling interval, without the polling. Each worker exits on
// the first empty take, and the join is the only synchronization point.
func drain[T, R any](ctx context.Context, n int, items []T, fn func(context.Context, T) (R, bool)) []R {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	if n == 0 {
		return nil
	}

	list := newWorkList(items)
	results := make([]R, 0, len(items))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				item, ok := list.tryTake()
				if !ok {
					return nil
				}
				if r, ok := fn(ctx, item); ok {
					mu.Lock()
					results = append(results, r)
					mu.Unlock()
				}
			}
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers never return errors; failures are dropped items.

	return results
}
