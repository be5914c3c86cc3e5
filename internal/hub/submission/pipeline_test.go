package submission

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

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	p := New()
	out, err := p.Run(context.Background(), "visitor:hire", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, out.Succeeded())
	require.False(t, p.InFlight("visitor:hire"))
}

func TestRunMapsErrors(t *testing.T) {
	t.Parallel()

	p := New(WithMessages(func(err error) string { return "mapped: " + err.Error() }))

	out, err := p.Run(context.Background(), "k", func(context.Context) error {
		return &Error{Message: "Failed to book appointment. Please try again later."}
	})
	require.NoError(t, err)
	require.Equal(t, Failure("Failed to book appointment. Please try again later."), out)

	out, err = p.Run(context.Background(), "k", func(context.Context) error { return errors.New("boom") })
	require.NoError(t, err)
	require.Equal(t, Failure("mapped: boom"), out)
}

func TestRunRecoversPanics(t *testing.T) {
	t.Parallel()

	p := New()
	out, err := p.Run(context.Background(), "k", func(context.Context) error { panic("kaboom") })
	require.NoError(t, err)
	require.True(t, out.Failed())
	require.Equal(t, DefaultFailureMessage, out.Message)
	require.False(t, p.InFlight("k"))
}

func TestRunRejectsConcurrentSubmissionForSameKey(t *testing.T) {
	t.Parallel()

	p := New()
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		out, err := p.Run(context.Background(), "visitor:appointment", func(context.Context) error {
			calls.Add(1)
			close(started)
			<-release
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, out.Succeeded())
	}()

	<-started
	_, err := p.Run(context.Background(), "visitor:appointment", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.ErrorIs(t, err, ErrInFlight)

	out, err := p.Run(context.Background(), "other:appointment", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, out.Succeeded())

	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestRunDetachesFromCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New().Run(ctx, "k", Delay(5*time.Millisecond))
	require.NoError(t, err)
	require.True(t, out.Succeeded())
}

func TestDelayHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Delay(time.Hour)(ctx), context.Canceled)
	require.NoError(t, Delay(0)(context.Background()))
}
