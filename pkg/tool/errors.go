// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is returned when a requested tool cannot be found.
var ErrToolNotFound = errors.New("unknown tool")

// ConfigError reports invalid or missing configuration. It is never retried.
type ConfigError struct {
	Tool string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("tool %s: configuration error: %v", e.Tool, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InvocationError is returned once every attempt of an upstream call failed.
type InvocationError struct {
	Tool     string
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s failed after %d attempt(s): %v", e.Tool, e.Attempts, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
