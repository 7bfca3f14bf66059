package strand

import (
	"context"
	"fmt"
	"sync"
)

// Race runs all tasks concurrently and returns the result of the first
// task to succeed (return nil error). The remaining tasks are
// cancelled immediately upon the first success; their late results
// land on an already settled bridge and are discarded as
// [ErrAlreadySettled] no-ops.
//
// If all tasks fail, Race returns the zero value and the last error
// observed. A panicking task counts as a failure with a [*PanicError].
// If ctx is cancelled before any task succeeds, Race returns
// ctx.Err(); a success already settled when the cancellation is
// observed is still returned.
//
// If tasks is empty, Race returns (zero, nil).
//
// Race panics if any element of tasks is nil.
func Race[T any](
	ctx context.Context,
	tasks ...TaskFunc[T],
) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, nil
	}
	for i, fn := range tasks {
		if fn == nil {
			panic(fmt.Sprintf("strand: Race task[%d] must not be nil", i))
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	raceCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	winner, resolver := NewBridge[T]()

	var (
		mu      sync.Mutex
		lastErr error
		pending = len(tasks)
	)
	allFailed := make(chan struct{})

	for i, fn := range tasks {
		Spawn(raceCtx, fmt.Sprintf("race-%d", i), DefaultPriority, func(c context.Context) (T, error) {
			v, err := recovered(fn, c)
			if err == nil {
				// First success settles the bridge; losers fall
				// through to the no-op branch below.
				if resolver.Resolve(v) == nil {
					cancel(nil)
				}
				return v, nil
			}

			mu.Lock()
			lastErr = err
			pending--
			if pending == 0 {
				close(allFailed)
			}
			mu.Unlock()
			return v, err
		})
	}

	select {
	case <-winner.Done():
		out, _ := winner.Outcome()
		return out.Value, out.Err
	case <-allFailed:
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		mu.Lock()
		defer mu.Unlock()
		return zero, lastErr
	case <-ctx.Done():
		// The select picks among ready cases at random, so this branch
		// can fire while the bridge already holds a success. That
		// success still wins.
		if out, ok := winner.Outcome(); ok {
			return out.Value, out.Err
		}
		return zero, ctx.Err()
	}
}

// recovered invokes fn, converting a panic into a [*PanicError]
// return.
func recovered[T any](fn TaskFunc[T], ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn(ctx)
}
