// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T) {
	t.Helper()
	ForTestsOnlyResetLogger()
	t.Cleanup(ForTestsOnlyResetLogger)
}

func TestInit_FirstTime(t *testing.T) {
	setup(t)

	var buf bytes.Buffer
	Init(slog.LevelDebug, &buf)

	logger := GetLogger()
	logger.Debug("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestInit_IsNoOpAfterFirstCall(t *testing.T) {
	setup(t)

	var buf1, buf2 bytes.Buffer
	Init(slog.LevelDebug, &buf1)
	Init(slog.LevelInfo, &buf2)

	GetLogger().Debug("test message")

	assert.Contains(t, buf1.String(), "test message")
	assert.Empty(t, buf2.String())
}

func TestInit_JSONFormat(t *testing.T) {
	setup(t)

	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, "json")
	GetLogger().Info("hello", "tool", "get::/pets")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"tool":"get::/pets"`)
}

func TestGetLogger_ReturnsSingleton(t *testing.T) {
	setup(t)
	assert.Same(t, GetLogger(), GetLogger())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
