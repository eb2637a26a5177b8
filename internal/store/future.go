package store

import (
	"context"
	"sync"
)

// Future is the pending result of a dispatch.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(v any, err error) *Future {
	f := newFuture()
	f.resolve(v, err)
	return f
}

func (f *Future) resolve(v any, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done is closed once the dispatch has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the dispatch completes or ctx ends. Ending ctx only
// stops the wait; the action keeps running.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until the dispatch completes.
func (f *Future) Wait() (any, error) {
	<-f.done
	return f.value, f.err
}
