package strand

import (
	"context"
	"sync"
)

// Semaphore is a counting semaphore whose waiters are served by
// priority, then FIFO within a priority. It is context-aware: Acquire
// unblocks if the context is cancelled. When all slots are held, a
// released slot is handed directly to the best waiter instead of
// returning to the free count, so lower-priority work cannot barge in
// ahead of a queued high-priority waiter. [WithLimit] groups admit
// their children through one of these.
type Semaphore struct {
	mu      sync.Mutex
	free    int
	size    int
	waiters [numPriorities][]chan struct{}
}

// NewSemaphore creates a semaphore with n slots.
// Panics if n <= 0.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		panic("strand: NewSemaphore requires n > 0")
	}
	return &Semaphore{free: n, size: n}
}

// Acquire blocks until a slot is granted or ctx is cancelled. Waiters
// are granted slots by priority, then in arrival order within a
// priority. Returns ctx.Err() on cancellation, nil on success.
// Panics if pri is not one of the defined [Priority] values.
func (s *Semaphore) Acquire(ctx context.Context, pri Priority) error {
	if pri < PriorityBackground || pri > PriorityHigh {
		panic("strand: Semaphore.Acquire called with invalid priority")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.free > 0 {
		s.free--
		s.mu.Unlock()
		return nil
	}
	grant := make(chan struct{})
	s.waiters[pri] = append(s.waiters[pri], grant)
	s.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		removed := s.removeWaiter(pri, grant)
		s.mu.Unlock()
		if !removed {
			// Release dequeued us before we withdrew, so the slot is
			// ours. Pass it along.
			s.Release()
		}
		return ctx.Err()
	}
}

// TryAcquire attempts to acquire a slot without blocking.
// Returns true if acquired, false otherwise.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.free == 0 {
		return false
	}
	s.free--
	return true
}

// Release returns a slot. If anyone is waiting, the slot goes straight
// to the highest-priority waiter. Panics if more slots are released
// than acquired.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pri := PriorityHigh; pri >= PriorityBackground; pri-- {
		q := s.waiters[pri]
		if len(q) == 0 {
			continue
		}
		grant := q[0]
		s.waiters[pri] = q[1:]
		close(grant)
		return
	}

	if s.free == s.size {
		panic("strand: Semaphore.Release called without matching Acquire")
	}
	s.free++
}

// Available returns the number of free slots.
// The value may be stale in concurrent contexts.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free
}

// Waiting returns the number of goroutines blocked in Acquire.
// The value may be stale in concurrent contexts.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.waiters {
		n += len(q)
	}
	return n
}

// removeWaiter withdraws grant from the pri queue, reporting false
// when the grant was already dequeued by Release. Caller holds mu.
func (s *Semaphore) removeWaiter(pri Priority, grant chan struct{}) bool {
	q := s.waiters[pri]
	for i, w := range q {
		if w == grant {
			s.waiters[pri] = append(q[:i], q[i+1:]...)
			return true
		}
	}
	return false
}
