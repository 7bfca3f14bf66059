package lane

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit and Flush after Close has been called.
var ErrClosed = errors.New("lane: submit on closed lane")

const defaultCapacity = 64

// Option configures a Lane.
type Option func(*config)

type config struct {
	capacity int
}

func defaultConfig() *config {
	return &config{capacity: defaultCapacity}
}

// WithCapacity sets the mailbox capacity. Submit blocks (or TrySubmit
// fails) once this many functions are queued and unstarted. Zero means
// an unbuffered mailbox: every Submit waits for the worker to take the
// function directly. Panics if n is negative.
func WithCapacity(n int) Option {
	if n < 0 {
		panic("lane: WithCapacity requires a non-negative capacity")
	}
	return func(c *config) {
		c.capacity = n
	}
}

// Lane is a single-worker FIFO execution queue. The zero value is not
// usable; construct with [New].
type Lane struct {
	mailbox chan func()

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a Lane and starts its worker goroutine.
func New(opts ...Option) *Lane {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	l := &Lane{
		mailbox: make(chan func(), cfg.capacity),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// run is the worker loop. It exits when the mailbox is closed and
// drained, then signals done.
func (l *Lane) run() {
	defer close(l.done)
	for fn := range l.mailbox {
		fn()
	}
}

// Submit enqueues fn, blocking while the mailbox is full. It returns
// ctx.Err() if the context ends before space frees up, and ErrClosed
// if the lane has been closed. A nil fn panics.
func (l *Lane) Submit(ctx context.Context, fn func()) (err error) {
	if fn == nil {
		panic("lane: Submit requires a non-nil function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if l.closed.Load() {
		return ErrClosed
	}

	// Close may win the race between the flag check above and the send
	// below, closing the mailbox under us. The send then panics; report
	// it as a regular ErrClosed.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()

	select {
	case l.mailbox <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues fn without blocking. It reports false if the
// mailbox is full or the lane is closed. A nil fn panics.
func (l *Lane) TrySubmit(fn func()) (ok bool) {
	if fn == nil {
		panic("lane: TrySubmit requires a non-nil function")
	}
	if l.closed.Load() {
		return false
	}

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case l.mailbox <- fn:
		return true
	default:
		return false
	}
}

// Flush blocks until every function enqueued before the call has run.
// It returns ctx.Err() if the context ends first, and ErrClosed if the
// lane is closed before the barrier could be enqueued.
func (l *Lane) Flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ran := make(chan struct{})
	if err := l.Submit(ctx, func() { close(ran) }); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports how many functions are queued and not yet started. The
// function currently running, if any, is not counted.
func (l *Lane) Len() int {
	return len(l.mailbox)
}

// Close stops intake, lets the worker drain what is already queued,
// and waits for it to exit. Safe to call multiple times and from
// multiple goroutines; every call blocks until the drain completes.
func (l *Lane) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.mailbox)
	})
	<-l.done
}

// Done returns a channel that is closed once the worker has exited
// after Close.
func (l *Lane) Done() <-chan struct{} {
	return l.done
}
