package strand

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrAlreadySettled is returned by [Resolver.Resolve] and
	// [Resolver.Reject] when the bridge was settled by an earlier call.
	// The first settlement always wins; this error reports the losing
	// attempt without altering the observed outcome.
	ErrAlreadySettled = errors.New("strand: bridge already settled")

	// ErrCancelled is the cancellation cause installed by [Task.Cancel]
	// and [Group.Cancel]. Bodies that honor cancellation may return it,
	// or return a fallback value instead; nothing raises it for them.
	ErrCancelled = errors.New("strand: cancelled")

	// ErrGroupClosed is returned by [Group.Go] after [Group.Close].
	ErrGroupClosed = errors.New("strand: group is closed")

	// ErrActorClosed is returned by [Call], [Actor.Do] and
	// [Actor.Snapshot] after [Actor.Close].
	ErrActorClosed = errors.New("strand: actor is closed")

	// ErrNilTask is returned by [Group.Go] when the task function is nil.
	ErrNilTask = errors.New("strand: nil task function")

	// ErrPoolClosed is returned by [Pool.Submit] when the pool has been
	// closed.
	ErrPoolClosed = errors.New("strand: pool is closed")
)

// TaskError wraps an error together with the [TaskInfo] of the child
// task that produced it. Group draining and aggregation wrap every
// child failure in a TaskError so callers can attribute errors to
// specific tasks.
type TaskError struct {
	Task TaskInfo
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task.Name, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTaskError reports whether err (or any error in its chain) is a [*TaskError].
func IsTaskError(err error) bool {
	if err == nil {
		return false
	}
	var te *TaskError
	return errors.As(err, &te)
}

// TaskOf extracts the [TaskInfo] from the first [*TaskError] in err's chain.
// Returns false if no TaskError is found.
func TaskOf(err error) (TaskInfo, bool) {
	if err == nil {
		return TaskInfo{}, false
	}

	var te *TaskError
	if errors.As(err, &te) {
		return te.Task, true
	}
	return TaskInfo{}, false
}

// CauseOf unwraps the first [*TaskError] in err's chain and returns its
// underlying cause. If err is not a TaskError, it is returned as-is.
// Returns nil if err is nil.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}

	var te *TaskError
	if errors.As(err, &te) {
		return te.Err
	}

	return err
}

// AllTaskErrors recursively collects every [*TaskError] from err's chain,
// including errors wrapped via [errors.Join]. Returns nil if none are found.
func AllTaskErrors(err error) []*TaskError {
	if err == nil {
		return nil
	}

	var out []*TaskError
	collectTaskErrors(err, &out)
	return out
}

func collectTaskErrors(err error, out *[]*TaskError) {
	switch e := err.(type) {
	case *TaskError:
		*out = append(*out, e)

	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collectTaskErrors(sub, out)
		}

	case interface{ Unwrap() error }:
		collectTaskErrors(e.Unwrap(), out)
	}
}

// PanicError wraps a recovered panic value together with the goroutine
// stack trace captured at the point of the panic.
//
// By default a panic in a group child is re-raised from [Group.Wait] /
// [Gather] as a *PanicError. With [WithPanicAsError] set, and always
// for standalone [Task] bodies, the *PanicError travels as the failure
// outcome instead.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

// Error returns a human-readable representation of the panic,
// including the value and the full stack trace.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap returns nil. PanicError does not wrap another error.
func (e *PanicError) Unwrap() error { return nil }

func newPanicError(v any) *PanicError {
	// 8 KiB is enough for most stack traces. runtime.Stack truncates
	// gracefully if the buffer is too small.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}
