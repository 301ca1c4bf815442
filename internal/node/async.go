package node

import (
	"context"
	"sync"
)

// Result is the outcome of an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Async runs at most one background call at a time on behalf of a node.
// The node keeps evaluating while the call is in flight and picks up the
// result with Poll on a later tick.
type Async[T any] struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	pending bool
	ready   *Result[T]
	closed  bool
}

// Start launches fn unless a call is already in flight or the helper was
// closed. The call's context keeps ctx's values but is cancelled only by
// Close, not by ctx.
func (a *Async[T]) Start(ctx context.Context, fn func(context.Context) (T, error)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending || a.closed {
		return false
	}

	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.pending = true

	go func() {
		v, err := fn(callCtx)
		a.mu.Lock()
		defer a.mu.Unlock()
		cancel()
		if a.closed {
			return
		}
		a.pending = false
		a.ready = &Result[T]{Value: v, Err: err}
	}()
	return true
}

// Poll returns a completed result once. It never blocks.
func (a *Async[T]) Poll() (Result[T], bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready == nil {
		return Result[T]{}, false
	}
	r := *a.ready
	a.ready = nil
	return r, true
}

// Pending reports whether a call is in flight.
func (a *Async[T]) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Close cancels any in-flight call and discards its result. Further Start
// calls are refused.
func (a *Async[T]) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.pending = false
	a.ready = nil
	if a.cancel != nil {
		a.cancel()
	}
}
