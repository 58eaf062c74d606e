// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseBackoff is the wait before the first retry. Each following
	// wait doubles it.
	DefaultBaseBackoff = time.Second
	// DefaultMaxBackoff caps a single wait.
	DefaultMaxBackoff = time.Hour
)

// Retry implements a retry policy for failed operations.
//
// Summary: retries failed work with exponential backoff (base * 2^n, no
// jitter) until the retry budget is spent.
type Retry struct {
	retries    int
	base       time.Duration
	maxBackoff time.Duration
	notify     func(err error, wait time.Duration)
}

// RetryOption configures a Retry.
type RetryOption func(*Retry)

// WithBaseBackoff sets the wait before the first retry.
func WithBaseBackoff(d time.Duration) RetryOption {
	return func(r *Retry) { r.base = d }
}

// WithMaxBackoff caps a single wait.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(r *Retry) { r.maxBackoff = d }
}

// WithNotify registers a callback invoked before every wait.
func WithNotify(fn func(err error, wait time.Duration)) RetryOption {
	return func(r *Retry) { r.notify = fn }
}

// NewRetry creates a new Retry allowing up to retries additional attempts.
// A negative budget is treated as zero.
//
// Parameters:
//   - retries: int. Number of retries after the first attempt.
//   - opts: ...RetryOption. Backoff overrides.
//
// Returns:
//   - *Retry: The *Retry.
func NewRetry(retries int, opts ...RetryOption) *Retry {
	if retries < 0 {
		retries = 0
	}
	r := &Retry{retries: retries, base: DefaultBaseBackoff, maxBackoff: DefaultMaxBackoff}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retries returns the retry budget.
func (r *Retry) Retries() int {
	return r.retries
}

func (r *Retry) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.base),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(r.maxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.retries)), ctx)
}

// Execute runs the provided work function, retrying it while it fails and the
// budget allows. A *PermanentError or a cancelled context stops the loop.
//
// Parameters:
//   - ctx: context.Context. The context for the operation.
//   - work: func(context.Context) error. The work.
//
// Returns:
//   - error: The last error if every attempt failed.
func (r *Retry) Execute(ctx context.Context, work func(context.Context) error) error {
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := work(ctx)
		var permanentErr *PermanentError
		if errors.As(err, &permanentErr) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, r.policy(ctx), r.notify)
}
