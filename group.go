// Group runs a dynamic set of child tasks with coordinated lifecycle,
// bounded concurrency, and completion-order result draining. Children
// share a context that is cancelled when the group ends, either by
// policy (FailFast on the first failure) or explicitly. Outcomes are
// consumed in the order children finish via Next or Results, which is
// what lets a consumer react to the fastest child first regardless of
// submission order.
//
// Error handling is configurable:
//   - FailFast: the first child error cancels the siblings, and
//     Wait/Gather surface that first error.
//   - Collect: every child runs to completion; errors travel through
//     the drained outcomes and Wait joins them.
//
// Panics in children are captured and re-raised from Wait (or turned
// into ordinary errors with the panicAsErr option).
//
// Example usage:
//
//	total, err := Gather(ctx, func(ctx context.Context, g *Group[int]) (int, error) {
//	    g.Go("a", fetchA)
//	    g.Go("b", fetchB)
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
package strand

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type nextReply[R any] struct {
	out Outcome[R]
	ok  bool
	err error
}

type taskDoneEvent[R any] struct {
	out Outcome[R]
}

type submitCmd struct {
	resp chan error
}

type closeCmd struct {
	resp chan struct{}
}

type nextCmd[R any] struct {
	resp chan nextReply[R]
}

type cancelNextCmd[R any] struct {
	resp chan nextReply[R]
	err  error
}

type managerState[R any] struct {
	closed      bool
	inflight    int
	ready       []Outcome[R]
	nextWaiters []chan nextReply[R]
	joined      bool
}

type runningEntry struct {
	info    TaskInfo
	started time.Time
}

// Group runs child tasks that each produce an R, and delivers their
// outcomes in completion order. Create one via [NewGroup] for manual
// lifecycle control, or use [Gather] to scope the whole lifecycle to a
// body function.
type Group[R any] struct {
	ctx     context.Context
	baseCtx context.Context
	cancel  context.CancelCauseFunc
	eg      *errgroup.Group
	cfg     config

	sem *Semaphore

	cmdCh chan any
	evtCh chan taskDoneEvent[R]

	// allDone closes once the group is sealed and every accepted child
	// has delivered its outcome event. terminal closes when the manager
	// exits; outcomes still undelivered at that point move to spill,
	// where the terminal fast path of Next picks them up.
	allDone  chan struct{}
	terminal chan struct{}
	spillMu  sync.Mutex
	spill    []Outcome[R]

	firstErr atomic.Pointer[TaskError]
	errOnce  sync.Once

	errMu         sync.Mutex
	errs          []*TaskError
	droppedErrors int

	panicMu sync.Mutex
	panics  []*PanicError

	finOnce  sync.Once
	finErr   error
	finPanic *PanicError
	finished chan struct{}
	bgOnce   sync.Once

	stopObs chan struct{}

	// Observability counters.
	totalSpawned atomic.Int64
	activeTasks  atomic.Int64
	completed    atomic.Int64
	errored      atomic.Int64
	panicked     atomic.Int64
	queued       atomic.Int64
	delivered    atomic.Int64

	trackMu  sync.Mutex
	trackSeq int64
	running  map[int64]runningEntry
}

// NewGroup creates a [Group] for manual lifecycle control. The caller
// must eventually call [Group.Wait] (or drain to exhaustion after
// [Group.Close]) to release the group's resources.
//
// Prefer [Gather] for most use cases; use NewGroup when the group
// must cross function boundaries or integrate with existing lifecycle
// management.
func NewGroup[R any](ctx context.Context, opts ...Option) *Group[R] {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	baseCtx, cancel := context.WithCancelCause(ctx)
	eg, runCtx := errgroup.WithContext(baseCtx)

	g := &Group[R]{
		ctx:      runCtx,
		baseCtx:  baseCtx,
		cancel:   cancel,
		eg:       eg,
		cfg:      cfg,
		cmdCh:    make(chan any),
		evtCh:    make(chan taskDoneEvent[R]),
		allDone:  make(chan struct{}),
		terminal: make(chan struct{}),
		finished: make(chan struct{}),
		stopObs:  make(chan struct{}),
	}

	if cfg.limit > 0 {
		g.sem = NewSemaphore(cfg.limit)
	}
	if cfg.tracking {
		g.running = make(map[int64]runningEntry)
	}

	go g.runManager()
	g.startObservers()

	return g
}

// Gather creates a [Group], invokes body with it, then seals the group
// and waits for every child to complete. It is the primary entry
// point: the group's whole lifecycle is scoped to the call.
//
// The body adds children and typically drains outcomes via
// [Group.Next] or [Group.Results]; whatever it returns is Gather's
// value. If the body returns an error or panics, the remaining
// children are cancelled, awaited, and the error (or panic) is
// propagated. With [FailFast] (the default), a child error is
// surfaced after the body's own; with [Collect], child errors travel
// only through the drained outcomes and never displace the body's
// return.
func Gather[R, A any](ctx context.Context, body func(ctx context.Context, g *Group[R]) (A, error), opts ...Option) (val A, err error) {
	g := NewGroup[R](ctx, opts...)

	defer func() {
		// Step 1: Capture any panic from the body before cleanup.
		bodyPanic := recover()

		// Step 2: A failed body cancels the children it leaves behind.
		if bodyPanic != nil || err != nil {
			g.Cancel(err)
		}

		// Step 3: Seal the group so no new children can be submitted,
		// then wait for the in-flight ones and aggregate errors.
		g.Close()
		waitErr, waitPanic := g.finalize()

		// Step 4: Re-raise panics. Body panics take priority over
		// child panics.
		if bodyPanic != nil {
			panic(bodyPanic)
		}
		if waitPanic != nil {
			panic(waitPanic)
		}

		// Step 5: Surface the aggregated child error. Collect mode
		// reports failures through the drained outcomes instead.
		if err == nil && g.cfg.policy == FailFast {
			err = waitErr
		}
	}()

	val, err = body(g.Context(), g)
	return val, err
}

// Context returns the group context passed to each child. It is
// cancelled when the group fails fast, is cancelled explicitly, or
// finishes.
func (g *Group[R]) Context() context.Context {
	return g.ctx
}

// Cancel cancels the group's context with the given cause, signaling
// all children to stop. A nil err means context.Canceled. The first
// cause wins; subsequent calls have no additional effect.
func (g *Group[R]) Cancel(err error) {
	if err == nil {
		err = context.Canceled
	}
	g.cancel(err)
}

// Close seals the group: subsequent [Group.Go] calls return
// [ErrGroupClosed]. Children already accepted keep running, and their
// outcomes remain drainable. Close is idempotent and does not wait for
// children.
func (g *Group[R]) Close() {
	resp := make(chan struct{}, 1)
	select {
	case g.cmdCh <- closeCmd{resp: resp}:
		<-resp
	case <-g.terminal:
	}
}

// Go submits a child at [DefaultPriority]. See [Group.Spawn].
func (g *Group[R]) Go(name string, fn TaskFunc[R]) error {
	return g.Spawn(name, DefaultPriority, fn)
}

// Spawn submits a child task. The child starts immediately unless
// [WithLimit] is set, in which case it waits for a slot; the backlog
// is admitted by priority, then submission order. Children may be
// added while others run and while outcomes are being drained.
//
// Returns [ErrNilTask] for a nil fn and [ErrGroupClosed] after
// [Group.Close]. Panics if pri is not a defined [Priority] value.
func (g *Group[R]) Spawn(name string, pri Priority, fn TaskFunc[R]) error {
	if fn == nil {
		return ErrNilTask
	}
	if pri < PriorityBackground || pri > PriorityHigh {
		panic("strand: Spawn called with invalid priority")
	}

	resp := make(chan error, 1)
	select {
	case g.cmdCh <- submitCmd{resp: resp}:
		if err := <-resp; err != nil {
			return err
		}
	case <-g.terminal:
		return ErrGroupClosed
	}

	info := TaskInfo{Name: name, Priority: pri}
	g.totalSpawned.Add(1)

	g.eg.Go(func() (retErr error) {
		var out Outcome[R]

		defer func() {
			// Every accepted child delivers exactly one event; the
			// manager stays alive while any are in flight, so this
			// send cannot hang.
			g.evtCh <- taskDoneEvent[R]{out: out}

			if g.cfg.policy == FailFast && out.Err != nil {
				retErr = CauseOf(out.Err)
			}
		}()

		out = g.runChild(info, pri, fn)
		return
	})

	return nil
}

// runChild admits, executes, and accounts for one child, returning the
// outcome to deliver.
func (g *Group[R]) runChild(info TaskInfo, pri Priority, fn TaskFunc[R]) Outcome[R] {
	if g.sem != nil {
		g.queued.Add(1)
		err := g.sem.Acquire(g.ctx, pri)
		g.queued.Add(-1)
		if err != nil {
			// Cancelled while waiting for a slot. The real cause is
			// already recorded elsewhere; deliver the outcome without
			// recording a second error.
			return Fail[R](&TaskError{Task: info, Err: context.Cause(g.ctx)})
		}
		defer g.sem.Release()
	}

	if g.ctx.Err() != nil {
		// Cancelled before execution, skip the body.
		return Fail[R](&TaskError{Task: info, Err: context.Cause(g.ctx)})
	}

	id := g.trackStart(info)
	g.activeTasks.Add(1)
	start := time.Now()

	v, err := g.execChild(info, fn)

	elapsed := time.Since(start)
	g.activeTasks.Add(-1)
	g.trackEnd(id)

	if g.cfg.onDone != nil {
		// onDone runs outside the recovery wrapper; an observability
		// hook must not panic.
		g.cfg.onDone(info, err, elapsed)
	}
	g.emitCompletionEvent(info, err, elapsed)

	if err != nil {
		te := &TaskError{Task: info, Err: err}
		g.recordError(te)
		return Fail[R](te)
	}

	g.completed.Add(1)
	return Ok(v)
}

// execChild runs the task function with panic recovery and the start
// hooks.
func (g *Group[R]) execChild(info TaskInfo, fn TaskFunc[R]) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := newPanicError(r)
			g.panicked.Add(1)
			if g.cfg.panicAsErr {
				err = pe
				return
			}
			g.panicMu.Lock()
			g.panics = append(g.panics, pe)
			g.panicMu.Unlock()
			g.cancel(pe)
			err = pe
		}
	}()

	// Hooks run inside the recovery wrapper so their panics are caught.
	if g.cfg.onStart != nil {
		g.cfg.onStart(info)
	}
	g.emitEvent(TaskEvent{Kind: EventStarted, Task: info})

	return fn(g.ctx)
}

// emitEvent calls the onEvent hook if registered.
func (g *Group[R]) emitEvent(e TaskEvent) {
	if g.cfg.onEvent != nil {
		g.cfg.onEvent(e)
	}
}

// emitCompletionEvent determines the correct EventKind for a completed
// child and emits the event via the onEvent hook.
func (g *Group[R]) emitCompletionEvent(info TaskInfo, err error, d time.Duration) {
	if g.cfg.onEvent == nil {
		return
	}

	var kind EventKind

	switch {
	case err == nil:
		kind = EventDone
	case errors.As(err, new(*PanicError)):
		kind = EventPanicked
	case g.ctx.Err() != nil:
		kind = EventCancelled
	default:
		kind = EventErrored
	}

	g.cfg.onEvent(TaskEvent{
		Kind:     kind,
		Task:     info,
		Err:      err,
		Duration: d,
	})
}

// recordError records a child error according to the configured policy.
func (g *Group[R]) recordError(te *TaskError) {
	if !g.cfg.panicAsErr {
		// Panics are re-raised from Wait, not aggregated as errors.
		var pe *PanicError
		if errors.As(te.Err, &pe) {
			return
		}
	}
	g.errored.Add(1)

	switch g.cfg.policy {
	case FailFast:
		g.errOnce.Do(func() {
			g.firstErr.Store(te)
			g.cancel(te.Err)
		})
	case Collect:
		g.errMu.Lock()
		if g.cfg.maxErrors > 0 && len(g.errs) >= g.cfg.maxErrors {
			g.droppedErrors++
		} else {
			g.errs = append(g.errs, te)
		}
		g.errMu.Unlock()
	}
}

// Next blocks until one child's outcome is available and returns it,
// in completion order. ok is false once the group is closed and every
// outcome has been delivered. If ctx ends first, Next returns ctx.Err()
// and the undelivered outcomes stay available to later calls.
//
// Failed children arrive as outcomes whose Err is a [*TaskError]
// naming the child.
func (g *Group[R]) Next(ctx context.Context) (Outcome[R], bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	resp := make(chan nextReply[R], 1)
	select {
	case g.cmdCh <- nextCmd[R]{resp: resp}:
	case <-g.terminal:
		return g.takeSpill()
	case <-ctx.Done():
		return Outcome[R]{}, false, ctx.Err()
	}

	stopWatch := make(chan struct{})
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				select {
				case g.cmdCh <- cancelNextCmd[R]{resp: resp, err: ctx.Err()}:
				case <-stopWatch:
				case <-g.terminal:
				}
			case <-stopWatch:
			}
		}()
	}

	reply := <-resp
	close(stopWatch)
	return reply.out, reply.ok, reply.err
}

// Results adapts [Group.Next] into a range-friendly channel observing
// the same completion order.
//
// The returned channel closes when Next reports the group closed and
// drained, or when ctx ends. Results never calls Close, Cancel, or
// Wait; the group lifecycle stays with its owner.
func (g *Group[R]) Results(ctx context.Context) <-chan Outcome[R] {
	if ctx == nil {
		ctx = context.Background()
	}

	out := make(chan Outcome[R])
	go func() {
		defer close(out)
		for {
			res, ok, err := g.Next(ctx)
			if err != nil || !ok {
				return
			}

			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Wait seals the group, waits for every child to complete, and returns
// the aggregated error: the first child error under [FailFast], all
// child errors joined under [Collect], or the cancellation cause when
// the group was cancelled without a child error. If a child panicked
// and [WithPanicAsError] was not set, Wait re-panics with the captured
// [*PanicError].
//
// Wait is idempotent; subsequent calls return the same result. Undrained
// outcomes remain available to [Group.Next] after Wait returns.
func (g *Group[R]) Wait() error {
	g.Close()
	err, pv := g.finalize()
	if pv != nil {
		panic(pv)
	}
	return err
}

// WaitTimeout is [Group.Wait] bounded by d: it returns
// context.DeadlineExceeded if the children are still running when d
// elapses. The group keeps running; a later Wait returns the real
// result.
func (g *Group[R]) WaitTimeout(d time.Duration) error {
	g.bgOnce.Do(func() {
		go func() {
			g.Close()
			g.finalize()
		}()
	})

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-g.finished:
		err, pv := g.finalize()
		if pv != nil {
			panic(pv)
		}
		return err
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

// finalize waits for all children and aggregates the result.
func (g *Group[R]) finalize() (error, *PanicError) {
	g.finOnce.Do(func() {
		// Wait for every accepted child to deliver its outcome, then
		// join the errgroup bookkeeping.
		<-g.allDone
		waitErr := g.eg.Wait()

		// Check if the context was cancelled externally (before
		// cleanup).
		ctxWasCancelled := g.baseCtx.Err() != nil

		select {
		case <-g.baseCtx.Done():
		default:
			g.cancel(nil)
		}

		if !g.cfg.panicAsErr {
			g.panicMu.Lock()
			if len(g.panics) > 0 {
				g.finPanic = g.panics[0]
			}
			g.panicMu.Unlock()
		}

		switch g.cfg.policy {
		case FailFast:
			if te := g.firstErr.Load(); te != nil {
				g.finErr = te
			} else if waitErr != nil {
				g.finErr = waitErr
			}
		case Collect:
			g.errMu.Lock()
			if len(g.errs) > 0 {
				errs := make([]error, 0, len(g.errs))
				for _, te := range g.errs {
					errs = append(errs, te)
				}
				g.finErr = errors.Join(errs...)
			}
			g.errMu.Unlock()
		}

		// If no child errors were recorded but the context was
		// cancelled externally, surface the cancellation cause.
		if g.finErr == nil && ctxWasCancelled {
			g.finErr = context.Cause(g.baseCtx)
		}

		close(g.stopObs)
		close(g.finished)
	})

	return g.finErr, g.finPanic
}

// DroppedErrors returns the number of child errors that were not
// stored because the [WithMaxErrors] cap was reached. Only meaningful
// in [Collect] mode.
func (g *Group[R]) DroppedErrors() int {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	return g.droppedErrors
}

// TotalSpawned returns the number of children accepted so far.
func (g *Group[R]) TotalSpawned() int64 { return g.totalSpawned.Load() }

// ActiveTasks returns the number of children currently executing. It
// excludes children still waiting for a [WithLimit] slot.
func (g *Group[R]) ActiveTasks() int64 { return g.activeTasks.Load() }

// Snapshot returns the group's current counters and, with
// [WithTaskTracking], the list of executing children.
func (g *Group[R]) Snapshot() GroupSnapshot {
	snap := GroupSnapshot{Metrics: g.metricsSnapshot()}
	if g.cfg.tracking {
		snap.RunningTasks = g.runningSnapshot()
		for _, rt := range snap.RunningTasks {
			if rt.Elapsed > snap.LongestActive {
				snap.LongestActive = rt.Elapsed
			}
		}
		snap.Metrics.LongestActive = snap.LongestActive
	}
	return snap
}

func (g *Group[R]) metricsSnapshot() Metrics {
	m := Metrics{
		TotalSpawned: g.totalSpawned.Load(),
		Completed:    g.completed.Load(),
		Errored:      g.errored.Load(),
		Panicked:     g.panicked.Load(),
		ActiveTasks:  g.activeTasks.Load(),
		Queued:       g.queued.Load(),
		Delivered:    g.delivered.Load(),
	}
	if g.cfg.tracking {
		for _, rt := range g.runningSnapshot() {
			if rt.Elapsed > m.LongestActive {
				m.LongestActive = rt.Elapsed
			}
		}
	}
	return m
}

func (g *Group[R]) trackStart(info TaskInfo) int64 {
	if !g.cfg.tracking {
		return 0
	}
	g.trackMu.Lock()
	defer g.trackMu.Unlock()
	g.trackSeq++
	g.running[g.trackSeq] = runningEntry{info: info, started: time.Now()}
	return g.trackSeq
}

func (g *Group[R]) trackEnd(id int64) {
	if id == 0 {
		return
	}
	g.trackMu.Lock()
	defer g.trackMu.Unlock()
	delete(g.running, id)
}

func (g *Group[R]) runningSnapshot() []RunningTask {
	g.trackMu.Lock()
	defer g.trackMu.Unlock()

	now := time.Now()
	out := make([]RunningTask, 0, len(g.running))
	for _, e := range g.running {
		out = append(out, RunningTask{
			Name:     e.info.Name,
			Priority: e.info.Priority,
			Started:  e.started,
			Elapsed:  now.Sub(e.started),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// startObservers launches the metrics ticker and the stall scanner.
// Both stop when the group finalizes.
func (g *Group[R]) startObservers() {
	if g.cfg.onMetrics != nil {
		go func() {
			t := time.NewTicker(g.cfg.metricsEvery)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					g.cfg.onMetrics(g.metricsSnapshot())
				case <-g.stopObs:
					// One final snapshot so the hook observes the
					// settled counters.
					g.cfg.onMetrics(g.metricsSnapshot())
					return
				}
			}
		}()
	}

	if g.cfg.onStall != nil {
		go func() {
			t := time.NewTicker(g.cfg.stallAfter)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					for _, rt := range g.runningSnapshot() {
						if rt.Elapsed >= g.cfg.stallAfter {
							g.cfg.onStall(rt)
						}
					}
				case <-g.stopObs:
					return
				}
			}
		}()
	}
}

// runManager owns the drain state: the ready queue, the Next waiters,
// and the in-flight count. It exits once the group is closed, every
// child has reported, and no Next call is parked; terminal then closes
// so later calls take the fast path. Outcomes nobody has drained yet
// are handed to the spill before terminal closes, keeping them
// available without pinning the manager goroutine.
func (g *Group[R]) runManager() {
	var state managerState[R]

	defer close(g.terminal)
	defer func() {
		if len(state.ready) > 0 {
			g.spillMu.Lock()
			g.spill = state.ready
			g.spillMu.Unlock()
		}
	}()

	for {
		select {
		case raw := <-g.cmdCh:
			switch cmd := raw.(type) {
			case submitCmd:
				if state.closed {
					cmd.resp <- ErrGroupClosed
					continue
				}
				state.inflight++
				cmd.resp <- nil

			case closeCmd:
				state.closed = true
				g.signalIfJoined(&state)
				g.flushIfDrained(&state)
				cmd.resp <- struct{}{}
				if g.isTerminal(&state) {
					return
				}

			case nextCmd[R]:
				if len(state.ready) > 0 {
					res := state.ready[0]
					state.ready = state.ready[1:]
					g.delivered.Add(1)
					cmd.resp <- nextReply[R]{out: res, ok: true}
					if g.isTerminal(&state) {
						return
					}
					continue
				}
				if state.closed && state.inflight == 0 {
					cmd.resp <- nextReply[R]{ok: false}
					continue
				}
				state.nextWaiters = append(state.nextWaiters, cmd.resp)

			case cancelNextCmd[R]:
				idx := indexOfWaiter(state.nextWaiters, cmd.resp)
				if idx == -1 {
					continue
				}
				state.nextWaiters = removeWaiter(state.nextWaiters, idx)
				cmd.resp <- nextReply[R]{ok: false, err: cmd.err}
			}

		case evt := <-g.evtCh:
			if state.inflight > 0 {
				state.inflight--
			}

			if len(state.nextWaiters) > 0 {
				waiter := state.nextWaiters[0]
				state.nextWaiters = state.nextWaiters[1:]
				g.delivered.Add(1)
				waiter <- nextReply[R]{out: evt.out, ok: true}
			} else {
				state.ready = append(state.ready, evt.out)
			}

			g.signalIfJoined(&state)
			g.flushIfDrained(&state)
			if g.isTerminal(&state) {
				return
			}
		}
	}
}

// signalIfJoined closes allDone once the group is sealed and the last
// accepted child has delivered its event, which is what finalize waits
// on.
func (g *Group[R]) signalIfJoined(state *managerState[R]) {
	if state.joined || !state.closed || state.inflight != 0 {
		return
	}
	state.joined = true
	close(g.allDone)
}

// flushIfDrained answers every parked Next waiter with ok=false once
// the group is sealed, empty of children, and out of buffered results.
func (g *Group[R]) flushIfDrained(state *managerState[R]) {
	if !state.closed || state.inflight != 0 || len(state.ready) != 0 {
		return
	}
	for _, waiter := range state.nextWaiters {
		waiter <- nextReply[R]{ok: false}
	}
	state.nextWaiters = state.nextWaiters[:0]
}

func (g *Group[R]) isTerminal(state *managerState[R]) bool {
	return state.closed && state.inflight == 0 && len(state.nextWaiters) == 0
}

// takeSpill serves the terminal fast path: it pops the oldest spilled
// outcome, or reports the group drained.
func (g *Group[R]) takeSpill() (Outcome[R], bool, error) {
	g.spillMu.Lock()
	defer g.spillMu.Unlock()

	if len(g.spill) == 0 {
		return Outcome[R]{}, false, nil
	}
	out := g.spill[0]
	g.spill = g.spill[1:]
	g.delivered.Add(1)
	return out, true, nil
}

func indexOfWaiter[R any](waiters []chan nextReply[R], target chan nextReply[R]) int {
	for i, waiter := range waiters {
		if waiter == target {
			return i
		}
	}
	return -1
}

func removeWaiter[R any](waiters []chan nextReply[R], idx int) []chan nextReply[R] {
	copy(waiters[idx:], waiters[idx+1:])
	waiters[len(waiters)-1] = nil
	return waiters[:len(waiters)-1]
}
