package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fast strips the waits out of a test policy.
func fast(extra ...Option) []Option {
	opts := []Option{WithDelay(time.Millisecond), WithMaxJitter(0)}
	return append(opts, extra...)
}

func TestDoFirstAttemptSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, fast()...)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fast()...)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("still down")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	}, fast(WithAttempts(4))...)
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, wantErr)
	assert.Contains(t, err.Error(), "attempt 4")
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("bad input")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	}, fast(WithRetryable(func(err error) bool { return false }))...)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
}

func TestDoRetryableFilter(t *testing.T) {
	transient := errors.New("transient")
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return transient
		}
		return permanent
	}, fast(WithRetryable(func(err error) bool { return errors.Is(err, transient) }))...)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, permanent)
}

func TestDoNotify(t *testing.T) {
	var notified []time.Duration
	boom := errors.New("boom")
	err := Do(context.Background(), func(context.Context) error {
		return boom
	}, fast(
		WithAttempts(3),
		WithMultiplier(2),
		WithNotify(func(err error, next time.Duration) {
			assert.ErrorIs(t, err, boom)
			notified = append(notified, next)
		}),
	)...)
	require.Error(t, err)
	require.Len(t, notified, 2)
	assert.Equal(t, time.Millisecond, notified[0])
	assert.Equal(t, 2*time.Millisecond, notified[1])
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, WithDelay(time.Minute), WithMaxJitter(0))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoClampsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("nope")
	}, fast(WithAttempts(0))...)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
