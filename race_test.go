package strand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaceFirstSuccessWins(t *testing.T) {
	winner, err := Race(context.Background(),
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		func(ctx context.Context) (string, error) {
			return "replica-eu", nil
		},
		func(ctx context.Context) (string, error) {
			time.Sleep(150 * time.Millisecond)
			return "replica-us", nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "replica-eu", winner, "the instant success should settle the race")
}

func TestRaceAllFailReturnsLastError(t *testing.T) {
	errDNS := errors.New("dns lookup failed")
	errRefused := errors.New("connection refused")
	got, err := Race(context.Background(),
		func(ctx context.Context) (int, error) { return 0, errDNS },
		func(ctx context.Context) (int, error) {
			time.Sleep(50 * time.Millisecond)
			return 0, errRefused
		},
	)
	require.ErrorIs(t, err, errRefused, "the last failure observed is the one reported")
	assert.Zero(t, got)
}

func TestRaceNoCandidates(t *testing.T) {
	got, err := Race[string](context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRaceCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Race(ctx,
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRaceSuccessBeatsCallerCancel(t *testing.T) {
	// The losing candidate cancels the caller's context only after the
	// winner has settled: its context fires strictly downstream of the
	// first success. Whichever of the two ready events the final wait
	// commits to, the settled success must come back, never ctx.Err().
	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		got, err := Race(ctx,
			func(c context.Context) (string, error) {
				return "settled", nil
			},
			func(c context.Context) (string, error) {
				<-c.Done()
				cancel()
				return "", errors.New("beaten")
			},
		)
		cancel()
		require.NoError(t, err, "run %d: a settled success must beat the cancel", i)
		require.Equal(t, "settled", got, "run %d", i)
	}
}

func TestRaceNilCandidatePanics(t *testing.T) {
	mustPanic(t, "task[1]", func() {
		Race(context.Background(),
			func(ctx context.Context) (float64, error) { return 1.5, nil },
			nil,
		)
	})
}

func TestRaceSingleCandidate(t *testing.T) {
	got, err := Race(context.Background(),
		func(ctx context.Context) (int, error) { return -3, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, -3, got)
}

func TestRaceCancelsLosersOnSuccess(t *testing.T) {
	loserCtxErr := make(chan error, 1)
	got, err := Race(context.Background(),
		func(ctx context.Context) (int, error) { return 11, nil },
		func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				loserCtxErr <- ctx.Err()
			case <-time.After(2 * time.Second):
				loserCtxErr <- errors.New("loser never saw the cancellation")
			}
			return 0, errors.New("lost")
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 11, got)
	assert.ErrorIs(t, <-loserCtxErr, context.Canceled, "losers are cancelled once the winner settles")
}

func TestRacePanickingCandidate(t *testing.T) {
	ctx := context.Background()
	val, err := Race(ctx,
		func(ctx context.Context) (int, error) { panic("candidate blew up") },
		func(ctx context.Context) (int, error) { return 7, nil },
	)
	require.NoError(t, err, "a panicking candidate should not poison the race")
	assert.Equal(t, 7, val)
}

func TestRaceAllPanic(t *testing.T) {
	_, err := Race(context.Background(),
		func(ctx context.Context) (int, error) { panic("a") },
		func(ctx context.Context) (int, error) { panic("b") },
	)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
}
