package strand

import "time"

// Policy determines how a [Group] handles errors from child tasks.
type Policy int

const (
	// FailFast cancels all sibling tasks when the first child fails.
	// [Group.Wait] and [Gather] return that first error.
	FailFast Policy = iota

	// Collect lets siblings run to completion regardless of failures.
	// Failed outcomes are delivered through draining like any other;
	// [Group.Wait] returns all child errors joined via [errors.Join].
	Collect
)

// Metrics is a point-in-time snapshot of a [Group]'s counters, passed
// to the [WithOnMetrics] hook and included in [Group.Snapshot].
type Metrics struct {
	// TotalSpawned is the number of children added via [Group.Go].
	TotalSpawned int64

	// Completed is the number of children that finished successfully.
	Completed int64

	// Errored is the number of children that finished with an error.
	Errored int64

	// Panicked is the number of children whose body panicked.
	Panicked int64

	// ActiveTasks is the number of children currently executing.
	ActiveTasks int64

	// Queued is the number of children waiting for a [WithLimit] slot.
	Queued int64

	// Delivered is the number of outcomes consumed via [Group.Next]
	// or [Group.Results].
	Delivered int64

	// LongestActive is the longest current run among executing
	// children. Populated only with [WithTaskTracking].
	LongestActive time.Duration
}

// RunningTask describes one currently executing child, as reported by
// the [WithStallDetector] hook and [Group.Snapshot].
type RunningTask struct {
	Name     string
	Priority Priority
	Started  time.Time
	Elapsed  time.Duration
}

// EventKind classifies a [TaskEvent].
type EventKind int

const (
	// EventStarted fires when a child begins executing, after any
	// [WithLimit] admission wait.
	EventStarted EventKind = iota

	// EventDone fires when a child finishes successfully.
	EventDone

	// EventErrored fires when a child finishes with an ordinary error.
	EventErrored

	// EventCancelled fires when a child finishes with an error while
	// the group context is cancelled.
	EventCancelled

	// EventPanicked fires when a child's body panicked.
	EventPanicked
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventDone:
		return "done"
	case EventErrored:
		return "errored"
	case EventCancelled:
		return "cancelled"
	case EventPanicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// TaskEvent is delivered to the [WithOnEvent] hook once per child
// lifecycle transition.
type TaskEvent struct {
	Kind EventKind
	Task TaskInfo

	// Err is the child's error for EventErrored, EventCancelled and
	// EventPanicked; nil otherwise.
	Err error

	// Duration is the child's wall-clock run time; zero for
	// EventStarted.
	Duration time.Duration
}

// GroupSnapshot is the result of [Group.Snapshot].
type GroupSnapshot struct {
	Metrics Metrics

	// RunningTasks lists executing children, nil unless
	// [WithTaskTracking] is set.
	RunningTasks []RunningTask

	// LongestActive mirrors Metrics.LongestActive.
	LongestActive time.Duration
}

type config struct {
	policy     Policy
	limit      int
	panicAsErr bool
	tracking   bool
	maxErrors  int

	onStart func(TaskInfo)
	onDone  func(TaskInfo, error, time.Duration)
	onEvent func(TaskEvent)

	metricsEvery time.Duration
	onMetrics    func(Metrics)

	stallAfter time.Duration
	onStall    func(RunningTask)
}

// Option configures a [Group].
type Option func(*config)

func defaultConfig() config {
	return config{
		policy: FailFast,
	}
}

// WithPolicy sets the error handling policy for the group.
// It panics if p is not a known Policy value.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		switch p {
		case FailFast, Collect:
			c.policy = p
		default:
			panic("strand: invalid policy")
		}
	}
}

// WithLimit sets the maximum number of children that can execute
// concurrently. Children beyond the limit wait for a slot; the backlog
// is admitted by [Priority], then submission order.
//
// A limit of zero (the default) means unlimited concurrency.
// WithLimit panics if n is negative.
func WithLimit(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("strand: limit must be non-negative")
		}
		c.limit = n
	}
}

// WithPanicAsError converts panics in child tasks to [*PanicError]
// values delivered as regular failed outcomes, instead of re-raising
// them in [Group.Wait].
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}

// WithTaskTracking records per-child start times so that
// [Group.Snapshot] can list running tasks and Metrics.LongestActive is
// populated. [WithStallDetector] implies tracking.
func WithTaskTracking() Option {
	return func(c *config) {
		c.tracking = true
	}
}

// WithOnStart registers a hook invoked when each child begins
// executing. The hook runs inside the child's goroutine before the
// task function.
func WithOnStart(fn func(TaskInfo)) Option {
	return func(c *config) {
		c.onStart = fn
	}
}

// WithOnDone registers a hook invoked when each child finishes.
// The hook receives the child's error (nil on success) and wall-clock
// duration. It runs inside the child's goroutine after the task
// function returns.
func WithOnDone(fn func(TaskInfo, error, time.Duration)) Option {
	return func(c *config) {
		c.onDone = fn
	}
}

// WithOnEvent registers a hook that receives a [TaskEvent] for every
// child lifecycle transition. Start events run inside the child's
// goroutine before the task function; completion events run after it.
// The hook must not panic.
func WithOnEvent(fn func(TaskEvent)) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}

// WithMaxErrors caps how many child errors a [Collect] group stores
// for [Group.Wait]. Errors beyond the cap are counted by
// [Group.DroppedErrors] instead of stored; their outcomes still flow
// through draining untouched. Zero (the default) means no cap.
// Panics if n is negative.
func WithMaxErrors(n int) Option {
	if n < 0 {
		panic("strand: WithMaxErrors requires n >= 0")
	}
	return func(c *config) {
		c.maxErrors = n
	}
}

// WithOnMetrics registers a hook that receives a [Metrics] snapshot on
// the given interval, from a dedicated goroutine that stops when the
// group finishes. Panics if interval <= 0 or fn is nil.
func WithOnMetrics(interval time.Duration, fn func(Metrics)) Option {
	if interval <= 0 {
		panic("strand: WithOnMetrics requires interval > 0")
	}
	if fn == nil {
		panic("strand: WithOnMetrics requires non-nil callback")
	}
	return func(c *config) {
		c.metricsEvery = interval
		c.onMetrics = fn
	}
}

// WithStallDetector registers a hook invoked for each child that has
// been executing longer than threshold. The scan runs on the same
// cadence as the threshold, so a long-running child is reported
// repeatedly while it stays active. Useful against never-resolving
// awaits. Panics if threshold <= 0 or fn is nil.
func WithStallDetector(threshold time.Duration, fn func(RunningTask)) Option {
	if threshold <= 0 {
		panic("strand: WithStallDetector requires threshold > 0")
	}
	if fn == nil {
		panic("strand: WithStallDetector requires non-nil callback")
	}
	return func(c *config) {
		c.stallAfter = threshold
		c.onStall = fn
		c.tracking = true
	}
}
