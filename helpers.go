package strand

import (
	"context"
	"fmt"
	"time"
)

// ForEach executes fn for each item in the slice concurrently,
// using the provided options to control concurrency and error policy.
//
// This is a convenience wrapper around [NewGroup] and [Group.Go].
//
//	err := strand.ForEach(ctx, urls, func(ctx context.Context, u string) error {
//	    return fetch(ctx, u)
//	}, strand.WithLimit(10))
func ForEach[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error, opts ...Option) error {
	if fn == nil {
		panic("strand: ForEach requires a non-nil fn")
	}

	g := NewGroup[struct{}](ctx, opts...)
	for i, item := range items {
		g.Go(fmt.Sprintf("foreach[%d]", i), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx, item)
		})
	}
	return g.Wait()
}

// Map executes fn for each item concurrently and collects the results
// in the same order as the input slice. It uses [FailFast] policy by
// default; pass [WithPolicy]([Collect]) to run every item regardless
// of failures.
//
// On error, Map returns nil and the error. On success, it returns the
// results slice and nil.
//
//	prices, err := strand.Map(ctx, products, func(ctx context.Context, p Product) (float64, error) {
//	    return fetchPrice(ctx, p)
//	}, strand.WithLimit(5))
func Map[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), opts ...Option) ([]R, error) {
	if fn == nil {
		panic("strand: Map requires a non-nil fn")
	}

	results := make([]R, len(items))
	g := NewGroup[struct{}](ctx, opts...)
	for i, item := range items {
		g.Go(fmt.Sprintf("map[%d]", i), func(ctx context.Context) (struct{}, error) {
			r, err := fn(ctx, item)
			if err != nil {
				return struct{}{}, err
			}
			results[i] = r // safe: each child writes a unique index
			return struct{}{}, nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// All runs the bodies concurrently and returns their values in
// argument order. The first failure cancels the rest and is returned.
// All panics if any body is nil.
func All[T any](ctx context.Context, bodies ...TaskFunc[T]) ([]T, error) {
	for i, body := range bodies {
		if body == nil {
			panic(fmt.Sprintf("strand: All task[%d] must not be nil", i))
		}
	}

	results := make([]T, len(bodies))
	g := NewGroup[struct{}](ctx)
	for i, body := range bodies {
		g.Go(fmt.Sprintf("all[%d]", i), func(ctx context.Context) (struct{}, error) {
			v, err := body(ctx)
			if err != nil {
				return struct{}{}, err
			}
			results[i] = v
			return struct{}{}, nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Settle runs the bodies concurrently to completion and returns one
// [Outcome] per body, in argument order. Failures, including panics,
// land in their slot instead of affecting the siblings, so Settle
// itself never fails. If ctx is cancelled, bodies that did not get to
// run settle with the cancellation cause.
// Settle panics if any body is nil.
func Settle[T any](ctx context.Context, bodies ...TaskFunc[T]) []Outcome[T] {
	for i, body := range bodies {
		if body == nil {
			panic(fmt.Sprintf("strand: Settle task[%d] must not be nil", i))
		}
	}

	outs := make([]Outcome[T], len(bodies))
	ran := make([]bool, len(bodies))

	g := NewGroup[struct{}](ctx, WithPolicy(Collect))
	for i, body := range bodies {
		g.Go(fmt.Sprintf("settle[%d]", i), func(ctx context.Context) (struct{}, error) {
			v, err := recovered(body, ctx)
			outs[i] = Outcome[T]{Value: v, Err: err}
			ran[i] = true
			// Never reported upward: the slot carries the failure.
			return struct{}{}, nil
		})
	}
	_ = g.Wait()

	for i, ok := range ran {
		if !ok {
			outs[i] = Fail[T](context.Cause(g.Context()))
		}
	}
	return outs
}

// GoRetry submits a child that calls fn up to n+1 times (one initial
// attempt plus n retries), sleeping backoff between attempts. The
// first success wins; after the last failed attempt the child reports
// the last error. Cancellation during a backoff sleep stops the
// retries with ctx's error.
//
// Panics if n < 0 or backoff <= 0; returns [ErrNilTask] for a nil fn.
func GoRetry[R any](g *Group[R], name string, n int, backoff time.Duration, fn TaskFunc[R]) error {
	if n < 0 {
		panic("strand: GoRetry requires n >= 0")
	}
	if backoff <= 0 {
		panic("strand: GoRetry requires backoff > 0")
	}
	if fn == nil {
		return ErrNilTask
	}

	return g.Go(name, func(ctx context.Context) (R, error) {
		var zero R
		var lastErr error
		for attempt := 0; attempt <= n; attempt++ {
			if attempt > 0 {
				timer := time.NewTimer(backoff)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return zero, ctx.Err()
				}
			}
			v, err := fn(ctx)
			if err == nil {
				return v, nil
			}
			lastErr = err
		}
		return zero, lastErr
	})
}

// GoTimeout submits a child whose context is additionally bounded by d.
// When d elapses the child's context is cancelled with
// context.DeadlineExceeded; a cooperative fn observes this the same way
// it observes group cancellation.
//
// Panics if d <= 0; returns [ErrNilTask] for a nil fn.
func GoTimeout[R any](g *Group[R], name string, d time.Duration, fn TaskFunc[R]) error {
	if d <= 0 {
		panic("strand: GoTimeout requires d > 0")
	}
	if fn == nil {
		return ErrNilTask
	}

	return g.Go(name, func(ctx context.Context) (R, error) {
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return fn(tctx)
	})
}
