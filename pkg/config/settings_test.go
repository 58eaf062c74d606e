// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	BindRootFlags(cmd)
	BindServerFlags(cmd)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	newCommand(t)
	s := Load()

	assert.Empty(t, s.SpecLocation)
	assert.True(t, s.Validate)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "text", s.LogFormat)
	assert.Equal(t, slog.LevelInfo, s.SlogLevel())
	assert.ErrorIs(t, s.RequireSpec(), ErrNoSpec)
}

func TestLoadFlags(t *testing.T) {
	newCommand(t, "--spec", "api.yaml", "--log-level", "warn", "--validate=false", "--name", "pets", "--metrics-listen-address", ":9090")
	s := Load()

	assert.Equal(t, "api.yaml", s.SpecLocation)
	assert.False(t, s.Validate)
	assert.Equal(t, slog.LevelWarn, s.SlogLevel())
	assert.Equal(t, "pets", s.Name)
	assert.Equal(t, ":9090", s.MetricsListenAddress)
	assert.NoError(t, s.RequireSpec())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("OPENAPI_BRIDGE_SPEC", "https://example.com/openapi.json")
	t.Setenv("OPENAPI_BRIDGE_DEBUG", "true")
	t.Setenv("OPENAPI_BRIDGE_ENV_FILE", "/etc/bridge.env")
	newCommand(t)
	s := Load()

	assert.Equal(t, "https://example.com/openapi.json", s.SpecLocation)
	assert.Equal(t, "/etc/bridge.env", s.EnvFile)
	assert.Equal(t, slog.LevelDebug, s.SlogLevel())
}

func TestLoadEnvFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bridge.env", []byte("BRIDGE_TEST_NEW=fresh\nBRIDGE_TEST_KEPT=from-file\n# comment\n"), 0o600))

	t.Setenv("BRIDGE_TEST_KEPT", "from-env")
	t.Setenv("BRIDGE_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("BRIDGE_TEST_NEW"))

	s := &Settings{EnvFile: "/bridge.env"}
	require.NoError(t, s.LoadEnvFile(fs))

	assert.Equal(t, "fresh", os.Getenv("BRIDGE_TEST_NEW"))
	assert.Equal(t, "from-env", os.Getenv("BRIDGE_TEST_KEPT"))
}

func TestLoadEnvFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.NoError(t, (&Settings{}).LoadEnvFile(fs))
	assert.ErrorContains(t, (&Settings{EnvFile: "/missing.env"}).LoadEnvFile(fs), "failed to open env file")
}
