package strand

import (
	"context"
	"sync/atomic"
)

// Bridge is a one-shot synchronization point that converts a
// callback-style completion into a value an awaiting goroutine can
// consume. Create one via [NewBridge]; the returned [Resolver] is the
// write half, the Bridge itself is the read half.
//
// A Bridge settles exactly once. The first Resolve or Reject wins;
// every later attempt returns [ErrAlreadySettled] and leaves the
// observed outcome unchanged. Any number of goroutines may await the
// same Bridge; all of them observe the single settled outcome.
//
// A Bridge that is never resolved blocks its awaiters forever, so every
// Await takes a context: bound waits with a deadline or cancellation
// when the resolver side is not trusted to fire.
type Bridge[T any] struct {
	done    chan struct{}
	settled atomic.Bool

	// val and err are written by the single settling call before done
	// is closed; reading them after <-done is race-free.
	val T
	err error
}

// Resolver is the write half of a [Bridge]. It is a detached handle:
// retain it, pass it into callback registrations, and call it from any
// goroutine. It never depends on the creator's stack.
type Resolver[T any] struct {
	b *Bridge[T]
}

// NewBridge creates an unsettled bridge and its resolver.
func NewBridge[T any]() (*Bridge[T], *Resolver[T]) {
	b := &Bridge[T]{done: make(chan struct{})}
	return b, &Resolver[T]{b: b}
}

// Resolve settles the bridge with a value. The first settling call
// wins; later calls return [ErrAlreadySettled] without changing the
// outcome.
func (r *Resolver[T]) Resolve(v T) error {
	b := r.b
	if !b.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	b.val = v
	close(b.done)
	return nil
}

// Reject settles the bridge with an error. The first settling call
// wins; later calls return [ErrAlreadySettled] without changing the
// outcome. Reject panics if err is nil.
func (r *Resolver[T]) Reject(err error) error {
	if err == nil {
		panic("strand: Reject requires a non-nil error")
	}
	b := r.b
	if !b.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	b.err = err
	close(b.done)
	return nil
}

// Callbacks adapts the resolver to APIs that take a separate success
// and failure callback. Both closures share this resolver, so whichever
// fires first settles the bridge and the loser is a no-op. The
// [ErrAlreadySettled] report is discarded here because callback
// signatures have nowhere to put it; use Resolve/Reject directly when
// the report matters.
func (r *Resolver[T]) Callbacks() (succeed func(T), fail func(error)) {
	return func(v T) { _ = r.Resolve(v) },
		func(err error) { _ = r.Reject(err) }
}

// Await suspends the caller until the bridge settles or ctx ends. On
// settlement it returns the value or the rejection error; on ctx expiry
// it returns ctx.Err() and the bridge stays consumable by other
// awaiters.
func (b *Bridge[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-b.done:
		return b.val, b.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed once the bridge settles.
func (b *Bridge[T]) Done() <-chan struct{} {
	return b.done
}

// Settled reports whether the bridge has a visible outcome.
func (b *Bridge[T]) Settled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Outcome returns the settled outcome without blocking. The second
// return is false while the bridge is unsettled.
func (b *Bridge[T]) Outcome() (Outcome[T], bool) {
	select {
	case <-b.done:
		return Outcome[T]{Value: b.val, Err: b.err}, true
	default:
		return Outcome[T]{}, false
	}
}
