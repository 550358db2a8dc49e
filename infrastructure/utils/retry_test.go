package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(delays *[]time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestRetryPolicy_FailsTwiceThenSucceeds(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := recordingPolicy(&delays).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}, delays)
}

func TestRetryPolicy_ExhaustedReturnsLastError(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := recordingPolicy(&delays).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("attempt failed")
	})

	require.EqualError(t, err, "attempt failed")
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestRetryPolicy_PermanentStopsImmediately(t *testing.T) {
	var delays []time.Duration
	calls := 0
	rejected := errors.New("rejected")

	err := recordingPolicy(&delays).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(rejected)
	})

	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestRetryPolicy_AttemptTimeout(t *testing.T) {
	p := RetryPolicy{Retries: 0, Timeout: 20 * time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryPolicy_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Retries: 2, Backoff: time.Hour, Timeout: time.Second}
	calls := 0

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello World \n"))
	assert.Equal(t, "", Normalize("   "))
}
