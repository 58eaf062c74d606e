// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ErrNoSpec is returned when a command needs a document and none was given.
var ErrNoSpec = errors.New("no OpenAPI document: set --spec or OPENAPI_BRIDGE_SPEC")

// Settings is the process configuration read from flags and the environment.
type Settings struct {
	SpecLocation         string
	EnvFile              string
	Validate             bool
	Debug                bool
	LogLevel             string
	LogFormat            string
	LogFile              string
	Name                 string
	MetricsListenAddress string
}

// Load reads the settings from viper.
func Load() *Settings {
	return &Settings{
		SpecLocation:         viper.GetString("spec"),
		EnvFile:              viper.GetString("env-file"),
		Validate:             viper.GetBool("validate"),
		Debug:                viper.GetBool("debug"),
		LogLevel:             viper.GetString("log-level"),
		LogFormat:            viper.GetString("log-format"),
		LogFile:              viper.GetString("logfile"),
		Name:                 viper.GetString("name"),
		MetricsListenAddress: viper.GetString("metrics-listen-address"),
	}
}

// RequireSpec returns ErrNoSpec when no document location is set.
func (s *Settings) RequireSpec() error {
	if s.SpecLocation == "" {
		return ErrNoSpec
	}
	return nil
}

// SlogLevel returns the configured log level. Debug mode wins.
func (s *Settings) SlogLevel() slog.Level {
	if s.Debug {
		return slog.LevelDebug
	}
	return logging.ParseLevel(s.LogLevel)
}

// LoadEnvFile reads a dotenv file from fs and exports its variables. Variables
// already present in the environment are kept. An empty path is a no-op.
func (s *Settings) LoadEnvFile(fs afero.Fs) error {
	if s.EnvFile == "" {
		return nil
	}
	f, err := fs.Open(s.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to open env file: %w", err)
	}
	defer func() { _ = f.Close() }()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse env file %s: %w", s.EnvFile, err)
	}
	for k, v := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	logging.GetLogger().Debug("Loaded env file", "path", s.EnvFile, "count", len(vars))
	return nil
}
