// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"
)

// Timeout implements a timeout policy for operations.
type Timeout struct {
	duration time.Duration
}

// NewTimeout creates a new Timeout instance with the given duration. A
// non-positive duration disables the timeout.
func NewTimeout(duration time.Duration) *Timeout {
	return &Timeout{
		duration: duration,
	}
}

// Execute runs the provided work function with a timeout. The context passed
// to work is cancelled once work returns, so work must not hand it to anything
// that outlives the call.
func (t *Timeout) Execute(ctx context.Context, work func(context.Context) error) error {
	if t.duration <= 0 {
		return work(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, t.duration)
	defer cancel()
	return work(ctx)
}
