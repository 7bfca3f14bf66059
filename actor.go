// Actor serializes all access to a value of type S through a single
// lane, giving mutual exclusion without locks: operations submitted
// from any goroutine run one at a time, in submission order, on the
// lane's worker. Between an actor's operations there is never another
// goroutine touching the state, so operations read and mutate *S
// freely.
//
// Waiting its turn does not block the actor itself: a goroutine
// suspended in [Call] holds no lane, so other goroutines' operations
// on other actors proceed, and sequences that span two actors (see
// the bank transfer in the package examples) leave each lane free
// between the two calls.
//
// A few members are deliberately outside the serialization: Name, ID,
// and Pending read only immutable or internally synchronized data, so
// they are callable from anywhere without queueing.
package strand

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/baxromumarov/strand/lane"
)

// ActorOption configures an [Actor].
type ActorOption func(*actorConfig)

type actorConfig struct {
	mailbox int
}

func defaultActorConfig() actorConfig {
	return actorConfig{mailbox: 64}
}

// WithMailbox sets the actor's mailbox capacity: how many operations
// may queue before submitters block. Panics if n is negative.
func WithMailbox(n int) ActorOption {
	if n < 0 {
		panic("strand: WithMailbox requires a non-negative capacity")
	}
	return func(c *actorConfig) {
		c.mailbox = n
	}
}

// Actor owns a value of type S and runs all operations on it
// serially. Create one via [NewActor]; submit operations with [Call],
// [Actor.Do], or [Actor.Snapshot].
type Actor[S any] struct {
	name string
	id   uint64
	ln   *lane.Lane

	// state is touched only by functions running on ln.
	state S
}

// NewActor creates an actor owning initial. The name identifies the
// actor in errors and derived values; it needs no synchronization to
// read afterwards.
func NewActor[S any](name string, initial S, opts ...ActorOption) *Actor[S] {
	cfg := defaultActorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	h := fnv.New64a()
	h.Write([]byte(name))

	return &Actor[S]{
		name:  name,
		id:    h.Sum64(),
		ln:    lane.New(lane.WithCapacity(cfg.mailbox)),
		state: initial,
	}
}

// Call runs op on a's lane and returns its result, suspending the
// caller until the operation has run. Operations are admitted in
// submission order, one at a time. An op's error is returned to its
// own caller only; the actor keeps serving later operations, a failed
// operation never poisons the lane. A panic inside op is captured and
// returned as a [*PanicError].
//
// If ctx ends before the operation runs, Call returns ctx.Err(); the
// operation stays queued and will still run. After [Actor.Close],
// Call returns [ErrActorClosed].
//
// Call is a package-level function because Go methods cannot
// introduce their own type parameters. An op must not synchronously
// Call its own actor: the lane runs one operation at a time, so the
// nested call would wait on itself forever. Spawn a task or record a
// follow-up instead.
func Call[S, R any](ctx context.Context, a *Actor[S], op func(*S) (R, error)) (R, error) {
	if op == nil {
		panic("strand: Call requires a non-nil operation")
	}
	var zero R

	var (
		v   R
		err error
	)
	done := make(chan struct{})
	if serr := a.ln.Submit(ctx, func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(r)
			}
		}()
		v, err = op(&a.state)
	}); serr != nil {
		if errors.Is(serr, lane.ErrClosed) {
			return zero, ErrActorClosed
		}
		return zero, serr
	}

	select {
	case <-done:
		return v, err
	case <-ctx.Done():
		// The operation is already queued and will run; only this
		// caller stops waiting for it.
		return zero, ctx.Err()
	}
}

// Do runs a result-free operation on the actor's lane. It has the
// same admission, error, and cancellation behavior as [Call].
func (a *Actor[S]) Do(ctx context.Context, op func(*S) error) error {
	if op == nil {
		panic("strand: Do requires a non-nil operation")
	}
	_, err := Call(ctx, a, func(s *S) (struct{}, error) {
		return struct{}{}, op(s)
	})
	return err
}

// Snapshot returns a copy of the state, taken on the lane so it is
// consistent with the serialized operations. If S contains reference
// types the copy shares their underlying data.
func (a *Actor[S]) Snapshot(ctx context.Context) (S, error) {
	return Call(ctx, a, func(s *S) (S, error) {
		return *s, nil
	})
}

// Name returns the actor's name. Callable from any goroutine without
// queueing.
func (a *Actor[S]) Name() string {
	return a.name
}

// ID returns a stable identifier derived from the name (FNV-1a).
// Callable from any goroutine without queueing.
func (a *Actor[S]) ID() uint64 {
	return a.id
}

// Pending returns the number of queued, unstarted operations.
// Callable from any goroutine without queueing; the value may be
// stale in concurrent contexts.
func (a *Actor[S]) Pending() int {
	return a.ln.Len()
}

// Close stops the actor: queued operations still run (their callers
// unblock), then the lane's worker exits. Operations submitted after
// Close fail with [ErrActorClosed]. Close is idempotent and blocks
// until the drain completes.
func (a *Actor[S]) Close() {
	a.ln.Close()
}
