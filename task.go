package strand

import (
	"context"
	"sync/atomic"
)

// Priority is a scheduling hint attached to a task. It influences the
// order in which queued work is admitted when concurrency is bounded
// (a [Pool], or a [Group] with [WithLimit]); it never affects
// correctness, and unbounded tasks ignore it entirely.
type Priority int8

const (
	PriorityBackground Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh

	numPriorities = int(PriorityHigh) + 1
)

// DefaultPriority is used by [Go] and everywhere a priority is not
// stated explicitly.
const DefaultPriority = PriorityMedium

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// TaskInfo identifies a task in errors, hooks, and metrics.
type TaskInfo struct {
	Name     string
	Priority Priority
}

// TaskFunc is the body of a task: it receives the task's context and
// produces a value or an error. Bodies that want to honor cancellation
// poll ctx; bodies that never look at ctx simply run to completion.
type TaskFunc[T any] func(ctx context.Context) (T, error)

// Task is a handle to one unit of asynchronous work started with
// [Spawn] or [Go]. The body begins executing immediately on its own
// goroutine; the handle is for awaiting the outcome and for requesting
// cancellation.
//
// The outcome is memoized: the body runs exactly once, and every
// awaiter, no matter how many or how late, observes the identical
// value or error.
type Task[T any] struct {
	name     string
	priority Priority

	cancel    context.CancelCauseFunc
	cancelled atomic.Bool

	// outcome is written by the task goroutine before done is closed;
	// reading it after <-done is race-free.
	outcome Outcome[T]
	done    chan struct{}
}

// Spawn starts body immediately on a new goroutine and returns its
// handle. The body receives a context derived from ctx that is
// additionally cancelled by [Task.Cancel]. Spawning is eager: the work
// proceeds whether or not anyone ever awaits the handle. A nil body
// panics.
func Spawn[T any](ctx context.Context, name string, pri Priority, body TaskFunc[T]) *Task[T] {
	if body == nil {
		panic("strand: Spawn requires a non-nil body")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	taskCtx, cancel := context.WithCancelCause(ctx)
	t := &Task[T]{
		name:     name,
		priority: pri,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go t.run(taskCtx, body)
	return t
}

// Go is [Spawn] at [DefaultPriority].
func Go[T any](ctx context.Context, name string, body TaskFunc[T]) *Task[T] {
	return Spawn(ctx, name, DefaultPriority, body)
}

func (t *Task[T]) run(ctx context.Context, body TaskFunc[T]) {
	defer close(t.done)
	defer t.cancel(nil)
	defer func() {
		if r := recover(); r != nil {
			t.outcome = Fail[T](newPanicError(r))
		}
	}()

	v, err := body(ctx)
	if err != nil {
		t.outcome = Fail[T](err)
		return
	}
	t.outcome = Ok(v)
}

// Value awaits the task and returns its result, re-delivering the
// body's error to the caller. If ctx ends first, Value returns
// ctx.Err(); the task keeps running and its outcome stays available to
// any awaiter.
func (t *Task[T]) Value(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return t.outcome.Value, t.outcome.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result awaits the task and returns its outcome for explicit
// inspection. The error return reports only the caller's own ctx
// expiry; the body's failure, if any, is inside the outcome.
func (t *Task[T]) Result(ctx context.Context) (Outcome[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome[T]{}, ctx.Err()
	}
}

// Cancel requests cancellation: it sets the task's cancelled flag and
// cancels the body's context with cause [ErrCancelled]. The request is
// advisory. A body that polls its context can stop early; one that
// never looks runs to natural completion. Cancelling a finished task
// still sets the flag. Cancel never un-cancels; the flag is monotonic.
func (t *Task[T]) Cancel() {
	if t.cancelled.CompareAndSwap(false, true) {
		t.cancel(ErrCancelled)
	}
}

// Cancelled reports whether Cancel has been called on this task. It
// says nothing about whether the body honored the request.
func (t *Task[T]) Cancelled() bool {
	return t.cancelled.Load()
}

// Done returns a channel that is closed when the task's outcome is
// available.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Name returns the name the task was spawned with.
func (t *Task[T]) Name() string {
	return t.name
}

// Priority returns the task's scheduling hint.
func (t *Task[T]) Priority() Priority {
	return t.priority
}

// Info returns the task's identifying info, as it appears in a
// [TaskError].
func (t *Task[T]) Info() TaskInfo {
	return TaskInfo{Name: t.name, Priority: t.priority}
}
