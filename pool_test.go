package strand

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForStats polls the pool until cond holds, failing the test after
// two seconds.
func waitForStats(t *testing.T, p *Pool, cond func(PoolStats) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond(p.Stats()) {
		if time.Now().After(deadline) {
			t.Fatalf("pool never reached expected state: %+v", p.Stats())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoolBasic(t *testing.T) {
	ctx := context.Background()
	p := NewPool(ctx, 4)

	var count atomic.Int32
	for range 10 {
		err := p.Submit("count", DefaultPriority, func(context.Context) error {
			count.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	err := p.Close()
	require.NoError(t, err, "all jobs succeeded; Close should return nil")
	assert.Equal(t, int32(10), count.Load(), "all 10 jobs should have executed")
}

func TestPoolConcurrencyLimit(t *testing.T) {
	const workers = 3
	ctx := context.Background()
	p := NewPool(ctx, workers, WithQueueSize(20))

	var (
		active    atomic.Int32
		maxActive atomic.Int32
		wg        sync.WaitGroup
	)

	for range 20 {
		wg.Add(1)
		err := p.Submit("busy", DefaultPriority, func(context.Context) error {
			defer wg.Done()
			cur := active.Add(1)
			for {
				old := maxActive.Load()
				if cur <= old || maxActive.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return nil
		})
		require.NoError(t, err)
	}

	wg.Wait()
	err := p.Close()
	require.NoError(t, err)

	assert.LessOrEqual(t, maxActive.Load(), int32(workers),
		"concurrent jobs should never exceed worker count")
}

func TestPoolContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(ctx, 1, WithQueueSize(1))

	// Occupy the worker, then fill the backlog.
	blocker := make(chan struct{})
	err := p.Submit("blocker", DefaultPriority, func(context.Context) error {
		<-blocker
		return nil
	})
	require.NoError(t, err)
	waitForStats(t, p, func(s PoolStats) bool { return s.InFlight == 1 })

	err = p.Submit("queued", DefaultPriority, func(context.Context) error { return nil })
	require.NoError(t, err)

	cancel()

	// The backlog is full and the context is cancelled, so Submit
	// cannot wait for space.
	err = p.Submit("late", DefaultPriority, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(blocker)
	_ = p.Close()
}

func TestPoolPriorityAdmission(t *testing.T) {
	ctx := context.Background()
	p := NewPool(ctx, 1, WithQueueSize(8))

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// Hold the only worker so submissions pile up in the backlog.
	blocker := make(chan struct{})
	require.NoError(t, p.Submit("blocker", DefaultPriority, func(context.Context) error {
		<-blocker
		return nil
	}))
	waitForStats(t, p, func(s PoolStats) bool { return s.InFlight == 1 })

	require.NoError(t, p.Submit("bg", PriorityBackground, record("bg")))
	require.NoError(t, p.Submit("low", PriorityLow, record("low")))
	require.NoError(t, p.Submit("high", PriorityHigh, record("high")))
	waitForStats(t, p, func(s PoolStats) bool { return s.QueueDepth == 3 })

	close(blocker)
	require.NoError(t, p.Close())

	assert.Equal(t, []string{"high", "low", "bg"}, order,
		"backlog should drain by priority, not submission order")
}

func TestPoolPanicRecovery(t *testing.T) {
	ctx := context.Background()
	p := NewPool(ctx, 2)

	err := p.Submit("explode", DefaultPriority, func(context.Context) error {
		panic("job panic!")
	})
	require.NoError(t, err)

	// Submit a normal job to verify the pool still works.
	var ran atomic.Bool
	err = p.Submit("after", DefaultPriority, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)

	closeErr := p.Close()
	require.Error(t, closeErr, "panic should surface as error in Close")

	var pe *PanicError
	require.True(t, errors.As(closeErr, &pe), "error should be a PanicError")
	assert.Equal(t, "job panic!", pe.Value)

	info, ok := TaskOf(closeErr)
	require.True(t, ok)
	assert.Equal(t, "explode", info.Name, "failure should name the job")
	assert.True(t, ran.Load(), "subsequent jobs should still run after panic")
}

func TestPoolSubmitAfterClose(t *testing.T) {
	ctx := context.Background()
	p := NewPool(ctx, 2)

	err := p.Close()
	require.NoError(t, err)

	err = p.Submit("late", DefaultPriority, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolSubmitNilJob(t *testing.T) {
	p := NewPool(context.Background(), 1)
	defer p.Close()

	assert.ErrorIs(t, p.Submit("nil", DefaultPriority, nil), ErrNilTask)
	assert.False(t, p.TrySubmit("nil", DefaultPriority, nil))
}

func TestPoolTrySubmit(t *testing.T) {
	ctx := context.Background()
	p := NewPool(ctx, 1, WithQueueSize(1))

	blocker := make(chan struct{})
	// Use blocking Submit so we know the worker has picked up the job.
	err := p.Submit("blocker", DefaultPriority, func(context.Context) error {
		<-blocker
		return nil
	})
	require.NoError(t, err)
	waitForStats(t, p, func(s PoolStats) bool { return s.InFlight == 1 })

	// Fill the single backlog slot.
	ok := p.TrySubmit("filler", DefaultPriority, func(context.Context) error { return nil })
	require.True(t, ok)

	// Worker is busy and the backlog is full, so TrySubmit should fail.
	ok = p.TrySubmit("extra", DefaultPriority, func(context.Context) error { return nil })
	assert.False(t, ok, "TrySubmit should return false when the backlog is full")

	close(blocker)
	_ = p.Close()

	// After close, TrySubmit should also return false.
	ok = p.TrySubmit("late", DefaultPriority, func(context.Context) error { return nil })
	assert.False(t, ok, "TrySubmit should return false after Close")
}

func TestPoolStats(t *testing.T) {
	ctx := context.Background()
	p := NewPool(ctx, 1, WithQueueSize(4))

	blocker := make(chan struct{})
	require.NoError(t, p.Submit("blocker", DefaultPriority, func(context.Context) error {
		<-blocker
		return nil
	}))
	waitForStats(t, p, func(s PoolStats) bool { return s.InFlight == 1 })

	sentinel := errors.New("job failed")
	require.NoError(t, p.Submit("ok", DefaultPriority, func(context.Context) error { return nil }))
	require.NoError(t, p.Submit("bad", DefaultPriority, func(context.Context) error { return sentinel }))

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(1), stats.InFlight)
	assert.Equal(t, 2, stats.QueueDepth)
	assert.Equal(t, 1, stats.Workers)

	close(blocker)
	closeErr := p.Close()
	require.ErrorIs(t, closeErr, sentinel)

	stats = p.Stats()
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(1), stats.Errored)
	assert.Equal(t, int64(0), stats.InFlight)
	assert.Equal(t, 0, stats.QueueDepth)
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(context.Background(), 2)

	sentinel := errors.New("boom")
	require.NoError(t, p.Submit("bad", DefaultPriority, func(context.Context) error { return sentinel }))

	first := p.Close()
	second := p.Close()
	require.ErrorIs(t, first, sentinel)
	require.ErrorIs(t, second, sentinel)
}

func TestPoolMetricsCallback(t *testing.T) {
	var (
		mu    sync.Mutex
		last  PoolStats
		fired atomic.Int32
	)
	p := NewPool(context.Background(), 2, WithPoolMetrics(5*time.Millisecond, func(s PoolStats) {
		mu.Lock()
		last = s
		mu.Unlock()
		fired.Add(1)
	}))

	for range 6 {
		require.NoError(t, p.Submit("tick", DefaultPriority, func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		}))
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("metrics callback never fired")
		}
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, p.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, last.Workers)
	assert.GreaterOrEqual(t, last.Submitted, int64(1))
}

func TestPoolMetricsPanics(t *testing.T) {
	mustPanic(t, "WithPoolMetrics requires interval > 0", func() {
		WithPoolMetrics(0, func(PoolStats) {})
	})
	mustPanic(t, "WithPoolMetrics requires non-nil callback", func() {
		WithPoolMetrics(time.Second, nil)
	})
}

func TestSpawnOnBasic(t *testing.T) {
	p := NewPool(context.Background(), 2)

	task := SpawnOn(p, "compute", PriorityHigh, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	v, err := task.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	require.NoError(t, p.Close())
}

func TestSpawnOnFailure(t *testing.T) {
	p := NewPool(context.Background(), 1)

	sentinel := errors.New("compute failed")
	task := SpawnOn(p, "failing", DefaultPriority, func(ctx context.Context) (int, error) {
		return 0, sentinel
	})
	_, err := task.Value(context.Background())
	require.ErrorIs(t, err, sentinel)

	// The failure is visible to the pool as well.
	closeErr := p.Close()
	require.ErrorIs(t, closeErr, sentinel)
	info, ok := TaskOf(closeErr)
	require.True(t, ok)
	assert.Equal(t, "failing", info.Name)
}

func TestSpawnOnAfterClose(t *testing.T) {
	p := NewPool(context.Background(), 1)
	require.NoError(t, p.Close())

	task := SpawnOn(p, "late", DefaultPriority, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	out, err := task.Result(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, out.Err, ErrPoolClosed, "task should settle immediately on a closed pool")
}

func TestSpawnOnCancel(t *testing.T) {
	p := NewPool(context.Background(), 1)

	started := make(chan struct{})
	task := SpawnOn(p, "slow", DefaultPriority, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, context.Cause(ctx)
	})
	<-started
	task.Cancel()

	_, err := task.Value(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, task.Cancelled())

	_ = p.Close()
}

func TestPoolStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	const (
		jobCount    = 1000
		workerCount = 10
	)

	ctx := context.Background()
	p := NewPool(ctx, workerCount, WithQueueSize(64))

	var count atomic.Int32
	sentinel := errors.New("intentional")
	var errCount atomic.Int32

	for i := range jobCount {
		err := p.Submit("job", Priority(i%numPriorities), func(context.Context) error {
			count.Add(1)
			if i%100 == 0 {
				errCount.Add(1)
				return sentinel
			}
			return nil
		})
		require.NoError(t, err)
	}

	closeErr := p.Close()
	assert.Equal(t, int32(jobCount), count.Load(), "all jobs should have run")

	if errCount.Load() > 0 {
		require.Error(t, closeErr)
	}
}

func TestPoolPanicOnInvalidN(t *testing.T) {
	mustPanic(t, "NewPool requires n > 0", func() {
		NewPool(context.Background(), 0)
	})

	mustPanic(t, "NewPool requires n > 0", func() {
		NewPool(context.Background(), -1)
	})
}

func TestPoolPanicOnInvalidQueueSize(t *testing.T) {
	mustPanic(t, "WithQueueSize requires size > 0", func() {
		NewPool(context.Background(), 1, WithQueueSize(0))
	})
}

func TestPoolPanicOnInvalidPriority(t *testing.T) {
	p := NewPool(context.Background(), 1)
	defer p.Close()

	mustPanic(t, "Submit called with invalid priority", func() {
		_ = p.Submit("bad", Priority(99), func(context.Context) error { return nil })
	})
	mustPanic(t, "TrySubmit called with invalid priority", func() {
		_ = p.TrySubmit("bad", Priority(99), func(context.Context) error { return nil })
	})
}
