package strand

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a reusable worker pool with priority admission. Jobs are
// submitted via Submit and processed by a fixed number of worker
// goroutines; when workers are busy, the backlog is served by
// [Priority], then submission order, so a high-priority job never
// waits behind queued low-priority ones.
type Pool struct {
	mu      sync.Mutex
	buckets [numPriorities][]poolJob

	// space bounds the backlog; ready carries one token per queued
	// job. Workers take a token, then pop the best job.
	space *Semaphore
	ready chan struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	errMu sync.Mutex
	errs  []error

	// Observability counters.
	submitted atomic.Int64
	completed atomic.Int64
	errored   atomic.Int64
	inFlight  atomic.Int64
	workers   int
}

type poolJob struct {
	info TaskInfo
	fn   func(ctx context.Context) error
}

// PoolStats provides a point-in-time snapshot of pool activity.
type PoolStats struct {
	Submitted  int64 // total jobs submitted
	Completed  int64 // jobs finished (success + error)
	Errored    int64 // jobs that returned non-nil error
	InFlight   int64 // jobs currently executing
	QueueDepth int   // jobs waiting in the queue
	Workers    int   // worker count (fixed at creation)
}

// PoolOption configures a [Pool].
type PoolOption func(*poolConfig)

type poolConfig struct {
	queueSize       int
	onMetrics       func(PoolStats)
	metricsInterval time.Duration
}

// WithQueueSize sets the backlog capacity. Default is n * 2.
// Panics if size < 1.
func WithQueueSize(size int) PoolOption {
	return func(c *poolConfig) {
		if size < 1 {
			panic("strand: WithQueueSize requires size > 0")
		}
		c.queueSize = size
	}
}

// WithPoolMetrics registers a periodic pool metrics callback that fires
// every interval. The callback receives a snapshot of current pool counters.
//
// Panics if interval <= 0 or fn is nil.
func WithPoolMetrics(interval time.Duration, fn func(PoolStats)) PoolOption {
	if interval <= 0 {
		panic("strand: WithPoolMetrics requires interval > 0")
	}
	if fn == nil {
		panic("strand: WithPoolMetrics requires non-nil callback")
	}
	return func(c *poolConfig) {
		c.onMetrics = fn
		c.metricsInterval = interval
	}
}

// NewPool creates a pool with n worker goroutines.
// Workers start immediately and process jobs until [Pool.Close] is called.
// Panics if n <= 0.
func NewPool(
	ctx context.Context,
	n int,
	opts ...PoolOption,
) *Pool {
	if n <= 0 {
		panic("strand: NewPool requires n > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := poolConfig{queueSize: n * 2}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		space:   NewSemaphore(cfg.queueSize),
		ready:   make(chan struct{}, cfg.queueSize),
		ctx:     ctx,
		cancel:  cancel,
		workers: n,
	}

	p.wg.Add(n)
	for range n {
		go p.worker()
	}

	// Start metrics ticker if configured.
	if cfg.onMetrics != nil {
		go func() {
			ticker := time.NewTicker(cfg.metricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if p.closed.Load() {
						return
					}
					cfg.onMetrics(p.Stats())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for range p.ready {
		job := p.pop()
		p.space.Release()
		p.runJob(job)
	}
}

// pop removes and returns the best queued job: highest priority bucket
// first, FIFO within a bucket. A ready token is taken per queued job,
// so a bucket always has one.
func (p *Pool) pop() poolJob {
	p.mu.Lock()
	defer p.mu.Unlock()

	for pri := PriorityHigh; pri >= PriorityBackground; pri-- {
		q := p.buckets[pri]
		if len(q) == 0 {
			continue
		}
		job := q[0]
		p.buckets[pri] = q[1:]
		return job
	}
	panic("strand: pool ready token without queued job")
}

func (p *Pool) runJob(job poolJob) {
	p.inFlight.Add(1)
	defer func() {
		p.inFlight.Add(-1)
		p.completed.Add(1)
	}()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(r)
			}
		}()
		err = job.fn(p.ctx)
	}()
	if err != nil {
		p.errored.Add(1)
		p.errMu.Lock()
		p.errs = append(p.errs, &TaskError{Task: job.info, Err: err})
		p.errMu.Unlock()
	}
}

// Stats returns a point-in-time snapshot of pool activity.
// Safe to call concurrently.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	depth := 0
	for _, q := range p.buckets {
		depth += len(q)
	}
	p.mu.Unlock()

	return PoolStats{
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Errored:    p.errored.Load(),
		InFlight:   p.inFlight.Load(),
		QueueDepth: depth,
		Workers:    p.workers,
	}
}

// Submit submits a job to the pool. It blocks while the backlog is
// full; when multiple submitters wait for space, higher-priority ones
// are admitted first. The job function receives the pool's context,
// which is cancelled when the pool closes.
//
// Returns [ErrNilTask] for a nil fn and [ErrPoolClosed] if the pool
// has been closed. Returns ctx.Err() if the pool's context is
// cancelled while waiting. Panics if pri is not a defined [Priority]
// value.
func (p *Pool) Submit(name string, pri Priority, fn func(ctx context.Context) error) (err error) {
	if fn == nil {
		return ErrNilTask
	}
	if pri < PriorityBackground || pri > PriorityHigh {
		panic("strand: Submit called with invalid priority")
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}

	if aerr := p.space.Acquire(p.ctx, pri); aerr != nil {
		if p.closed.Load() {
			return ErrPoolClosed
		}
		return aerr
	}

	// Guard against the race between the closed check above and
	// Close() closing the ready channel. If Close fires between the
	// check and the send, the send panics; we recover and return
	// ErrPoolClosed.
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolClosed
		}
	}()

	p.enqueue(poolJob{info: TaskInfo{Name: name, Priority: pri}, fn: fn})
	return nil
}

// TrySubmit attempts to submit without blocking.
// Returns false if the backlog is full or the pool is closed.
func (p *Pool) TrySubmit(name string, pri Priority, fn func(ctx context.Context) error) (submitted bool) {
	if fn == nil {
		return false
	}
	if pri < PriorityBackground || pri > PriorityHigh {
		panic("strand: TrySubmit called with invalid priority")
	}
	if p.closed.Load() {
		return false
	}
	if !p.space.TryAcquire() {
		return false
	}

	// Same TOCTOU guard as Submit.
	defer func() {
		if r := recover(); r != nil {
			submitted = false
		}
	}()

	p.enqueue(poolJob{info: TaskInfo{Name: name, Priority: pri}, fn: fn})
	return true
}

// enqueue parks the job in its priority bucket and hands a worker a
// ready token, atomically with respect to pop so the job/token pairing
// holds. The caller holds a space slot for the job.
func (p *Pool) enqueue(job poolJob) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pri := job.info.Priority
	p.buckets[pri] = append(p.buckets[pri], job)

	defer func() {
		if r := recover(); r != nil {
			// Close raced us and the token send hit a closed channel.
			// No pop can have run since we hold mu, so the tail is
			// still our job: take it back out, free its space slot,
			// and re-panic for the caller's guard.
			q := p.buckets[pri]
			p.buckets[pri] = q[:len(q)-1]
			p.space.Release()
			panic(r)
		}
	}()

	// Capacity equals the backlog bound, and we hold a slot of it, so
	// this send never blocks.
	p.ready <- struct{}{}
	p.submitted.Add(1)
}

// Close stops accepting new jobs, runs what is already queued, and
// waits for in-flight jobs to finish. Job failures come back joined,
// each wrapped in a [*TaskError] naming its job.
// Safe to call multiple times; subsequent calls return the same result.
func (p *Pool) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		close(p.ready)
	}
	p.wg.Wait()
	p.cancel()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}

// SpawnOn starts body as a [Task] running on p's workers instead of a
// dedicated goroutine. The handle behaves like one from [Spawn]:
// awaitable, cancellable, memoized. The body is queued immediately and
// starts on the next free worker in priority order; SpawnOn blocks
// only while the pool's backlog is full.
//
// If the pool is closed, the returned task is already settled with
// [ErrPoolClosed]. A nil body panics.
func SpawnOn[T any](p *Pool, name string, pri Priority, body TaskFunc[T]) *Task[T] {
	if body == nil {
		panic("strand: SpawnOn requires a non-nil body")
	}

	taskCtx, cancel := context.WithCancelCause(p.ctx)
	t := &Task[T]{
		name:     name,
		priority: pri,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	err := p.Submit(name, pri, func(context.Context) error {
		// run settles the task and captures panics itself; the
		// outcome error is re-reported here so pool stats and Close
		// see the failure too.
		t.run(taskCtx, body)
		return t.outcome.Err
	})
	if err != nil {
		t.outcome = Fail[T](err)
		t.cancel(nil)
		close(t.done)
	}
	return t
}
