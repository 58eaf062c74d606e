// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var attempts int
	var waits []time.Duration
	retry := NewRetry(2,
		WithBaseBackoff(time.Millisecond),
		WithNotify(func(_ error, wait time.Duration) { waits = append(waits, wait) }),
	)

	err := retry.Execute(context.Background(), func(_ context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestRetry_Exhausted(t *testing.T) {
	var attempts int
	retry := NewRetry(3, WithBaseBackoff(time.Millisecond))

	err := retry.Execute(context.Background(), func(_ context.Context) error {
		attempts++
		return errors.New("still failing")
	})
	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 4, attempts)
}

func TestRetry_NoRetries(t *testing.T) {
	var attempts int
	err := NewRetry(0).Execute(context.Background(), func(_ context.Context) error {
		attempts++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_NegativeRetries(t *testing.T) {
	retry := NewRetry(-1)
	assert.Equal(t, 0, retry.Retries())

	var attempts int
	err := retry.Execute(context.Background(), func(_ context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_PermanentError(t *testing.T) {
	var attempts int
	cause := errors.New("bad config")
	err := NewRetry(5, WithBaseBackoff(time.Millisecond)).Execute(context.Background(), func(_ context.Context) error {
		attempts++
		return &PermanentError{Err: cause}
	})
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, cause))
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var attempts int
	err := NewRetry(5, WithBaseBackoff(time.Hour)).Execute(ctx, func(_ context.Context) error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, attempts)
}

func TestRetry_MaxBackoff(t *testing.T) {
	var waits []time.Duration
	retry := NewRetry(4,
		WithBaseBackoff(time.Millisecond),
		WithMaxBackoff(3*time.Millisecond),
		WithNotify(func(_ error, wait time.Duration) { waits = append(waits, wait) }),
	)
	_ = retry.Execute(context.Background(), func(_ context.Context) error { return errors.New("fail") })
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}, waits)
}

func TestPermanentError(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := errors.New("original error")
		permErr := &PermanentError{Err: originalErr}
		assert.Equal(t, "original error", permErr.Error())
		assert.Equal(t, originalErr, permErr.Unwrap())
	})

	t.Run("without error", func(t *testing.T) {
		permErr := &PermanentError{Err: nil}
		assert.Equal(t, "permanent error", permErr.Error())
		assert.Nil(t, permErr.Unwrap())
	})
}

func TestTimeout(t *testing.T) {
	t.Run("expires", func(t *testing.T) {
		err := NewTimeout(10*time.Millisecond).Execute(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("disabled", func(t *testing.T) {
		err := NewTimeout(0).Execute(context.Background(), func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.False(t, ok)
			return nil
		})
		assert.NoError(t, err)
	})
}
