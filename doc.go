// Package strand provides structured concurrency primitives for Go.
//
// Structured concurrency ensures that concurrent tasks have well-defined
// lifecycles: they are spawned and joined within a clear scope, preventing
// goroutine leaks, orphaned tasks, and unpredictable control flow.
//
// # Tasks
//
// [Spawn] starts a body eagerly on its own goroutine and returns a typed
// handle. The outcome is memoized: the body runs exactly once and every
// awaiter observes the same result:
//
//	task := strand.Go(ctx, "fetch-user", func(ctx context.Context) (User, error) {
//	    return fetchUser(ctx, id)
//	})
//	user, err := task.Value(ctx)
//
// [Task.Value] re-delivers the body's error. [Task.Result] returns the
// [Outcome] explicitly, reserving its own error return for the caller's
// ctx expiry. [Task.Cancel] is advisory: it cancels the body's context
// with cause [ErrCancelled], and a cooperative body winds down while a
// body that never polls runs to natural completion.
//
// # Groups
//
// A [Group] runs a dynamic set of children and delivers their outcomes
// in completion order. The primary entry point is [Gather], which runs
// a body that spawns children and drains results, then closes the
// group and waits for stragglers before returning:
//
//	total, err := strand.Gather(ctx, func(ctx context.Context, g *strand.Group[int]) (int, error) {
//	    g.Go("a", loadA)
//	    g.Go("b", loadB)
//	    sum := 0
//	    for range 2 {
//	        out, ok, err := g.Next(ctx)
//	        if err != nil || !ok {
//	            return sum, err
//	        }
//	        if out.Err == nil {
//	            sum += out.Value
//	        }
//	    }
//	    return sum, nil
//	})
//
// For manual lifecycle control, [NewGroup] returns the group directly.
// The caller must call [Group.Wait] to finalize; [Group.WaitTimeout]
// adds a deadline to finalization.
//
// # Error Policies
//
// Error policies control how a group reacts to child failures:
//
//   - [FailFast] (default): the first error cancels all sibling
//     children. [Group.Wait] and [Gather] return that first error.
//   - [Collect]: all children run to completion. Failures travel
//     through the drained outcomes, and [Group.Wait] returns them
//     joined via [errors.Join]. Use [WithMaxErrors] to cap stored
//     errors in high-volume scenarios.
//
// All child errors are wrapped in [*TaskError] for attribution. Use
// [IsTaskError], [TaskOf], [CauseOf], and [AllTaskErrors] to inspect them.
//
// # Actors
//
// An [Actor] owns a mutable state value and serializes access to it:
// operations submitted from any goroutine run one at a time on the
// actor's lane, so they never observe torn state and need no locks:
//
//	acct := strand.NewActor("account", Balances{})
//	total, err := strand.Call(ctx, acct, func(b *Balances) (int, error) {
//	    b.Checking += 50
//	    return b.Checking + b.Savings, nil
//	})
//
// [Call] returns a typed result, [Actor.Do] is the result-free form,
// and [Actor.Snapshot] copies the state. An operation that fails
// reports to its caller only; the lane keeps processing.
//
// State that a program would traditionally confine to one designated
// thread needs no special mechanism here: give it to a single actor
// and route every touch through that actor's lane.
//
// # Bridges
//
// [NewBridge] splits a one-shot settlement into a waiter half and a
// resolver half, turning callback-style APIs into awaitable values.
// The first [Resolver.Resolve] or [Resolver.Reject] wins; later
// settlements return [ErrAlreadySettled] and leave the observed
// outcome unchanged. [Bridge.Await] suspends until the bridge settles
// or the caller's context ends.
//
// # Helpers
//
// Convenience functions for common patterns:
//
//   - [ForEach]: apply a function to every item in a slice concurrently.
//   - [Map]: transform every item concurrently, preserving input order.
//   - [All]: run bodies concurrently, collecting values in argument order.
//   - [Settle]: run bodies to completion, one [Outcome] per body, never failing.
//   - [Race]: return the first body to succeed, cancelling the rest.
//   - [GoRetry]: submit a group child with fixed-backoff retries.
//   - [GoTimeout]: submit a group child with a per-child deadline.
//
// # Bounded Concurrency
//
// Use [WithLimit] to restrict the number of children executing
// concurrently within a group. Children beyond the limit wait for a
// slot, respecting context cancellation while waiting; when a slot
// frees up, the highest-priority waiter gets it, FIFO within a
// priority.
//
// For standalone use outside groups, [Semaphore] provides the same
// priority-aware governor with [Semaphore.Acquire],
// [Semaphore.TryAcquire], and [Semaphore.Release].
//
// # Worker Pool
//
// [Pool] provides a reusable fixed-size worker pool with priority
// admission. Jobs are submitted via [Pool.Submit] (blocking) or
// [Pool.TrySubmit] (non-blocking); [SpawnOn] runs a [Task] body on
// pool workers instead of a dedicated goroutine. Call [Pool.Close] to
// drain the backlog and collect job failures.
//
// # Panic Recovery
//
// By default, a panic in a group child is captured with its full stack
// trace and re-raised in [Group.Wait]. Use [WithPanicAsError] to
// convert panics to [*PanicError] values and return them as regular
// errors instead. Standalone [Task] bodies always convert: the awaiter
// receives the [*PanicError] as the outcome's error.
//
// # Observability
//
// Register hooks for child lifecycle events:
//
//   - [WithOnStart]: called when each child begins executing.
//   - [WithOnDone]: called when each child finishes, with error and duration.
//   - [WithOnEvent]: unified hook receiving [TaskEvent] for every state
//     change (started, done, errored, panicked, cancelled).
//   - [WithOnMetrics]: periodic [Metrics] snapshots with counters for
//     spawned, active, completed, errored, panicked, and delivered tasks.
//   - [WithStallDetector]: called for children running longer than a
//     threshold.
//   - [WithTaskTracking]: enables [Group.Snapshot]'s point-in-time view
//     of running children.
//
// # Execution Lanes
//
// The [github.com/baxromumarov/strand/lane] subpackage provides the
// single-worker FIFO queue that actors are built on: context-aware
// Submit, non-blocking TrySubmit, a Flush barrier, and idempotent
// Close with drain.
package strand
