package bridge

import (
	"context"
	"sync"

	"github.com/wippyai/robot-bridge/errors"
)

// ErrPending is returned by Future.Result before the future settles.
var ErrPending = errors.New(errors.PhaseBridge, errors.KindNotInitialized).
	Detail("future is still pending").
	Build()

// Future is a single-fulfillment completion. It moves from pending to
// settled exactly once, either resolved with a value or rejected with an
// error.
type Future[T any] struct {
	value T
	err   error
	done  chan struct{}
	once  sync.Once
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done is closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done. ctx only bounds the
// wait; the native operation is not cancelled and the future may still
// settle later.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled outcome without blocking, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	if !f.Settled() {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

func (f *Future[T]) resolve(v T) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		close(f.done)
		settled = true
	})
	return settled
}

func (f *Future[T]) reject(err error) bool {
	settled := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}
