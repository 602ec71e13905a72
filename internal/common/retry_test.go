package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/service"
)

var errBoom = errors.New("boom")

func TestWithRetryClock_Backoff(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	calls := 0

	err := WithRetryClock(context.Background(), clock, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 4, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestWithRetryClock_Exhausted(t *testing.T) {
	clock := NewManualClock(time.Time{})
	calls := 0

	err := WithRetryClock(context.Background(), clock, func() error {
		calls++
		return errBoom
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestWithRetryClock_NonRetryable(t *testing.T) {
	clock := NewManualClock(time.Time{})
	calls := 0

	err := WithRetryClock(context.Background(), clock, func() error {
		calls++
		return &RetryableError{Err: errBoom, Retryable: false}
	}, service.RetryOptions{MaxAttempts: 5})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestWithRetryClock_RateLimitWaitsMaxDelay(t *testing.T) {
	clock := NewManualClock(time.Time{})
	calls := 0

	err := WithRetryClock(context.Background(), clock, func() error {
		calls++
		if calls == 1 {
			return ErrRateLimit
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 7 * time.Second, Multiplier: 2})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, clock.Sleeps())
}

func TestWithRetryClock_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetryClock(ctx, NewManualClock(time.Time{}), func() error {
		return errBoom
	}, service.RetryOptions{MaxAttempts: 3})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "rate limit", err: ErrRateLimit, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "retryable wrapper", err: &RetryableError{Err: errBoom, Retryable: true}, want: true},
		{name: "network fetch", err: NewFetchError("1", FetchNetwork, 1, errBoom), want: true},
		{name: "parse fetch", err: NewFetchError("1", FetchParse, 1, errBoom), want: false},
		{name: "plain", err: errBoom, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTypedErrors(t *testing.T) {
	fetchErr := NewFetchError("42", FetchTimeout, 3, context.DeadlineExceeded)
	assert.ErrorIs(t, fetchErr, ErrFetchTimeout)
	assert.NotErrorIs(t, fetchErr, ErrFetchNetwork)
	assert.ErrorIs(t, fetchErr, context.DeadlineExceeded)
	assert.Contains(t, fetchErr.Error(), "after 3 attempt(s)")

	syncErr := NewSyncError("42", "summary", errBoom)
	assert.ErrorIs(t, syncErr, ErrSync)
	assert.ErrorIs(t, syncErr, errBoom)
	assert.Equal(t, "sync 42 (summary): boom", syncErr.Error())
}
