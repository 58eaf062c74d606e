// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "OPENAPI_BRIDGE"

// BindRootFlags binds the persistent command-line flags shared by every
// command to the Viper configuration registry.
func BindRootFlags(cmd *cobra.Command) {
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cmd.PersistentFlags().String("spec", "", "Path or http(s) URL of the OpenAPI document. Env: OPENAPI_BRIDGE_SPEC")
	cmd.PersistentFlags().String("env-file", "", "Path to a dotenv file loaded into the process environment before any value is resolved. Env: OPENAPI_BRIDGE_ENV_FILE")
	cmd.PersistentFlags().Bool("validate", true, "Validate the OpenAPI document when loading it. Env: OPENAPI_BRIDGE_VALIDATE")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging. Env: OPENAPI_BRIDGE_DEBUG")
	cmd.PersistentFlags().String("log-level", "info", "Set the log level (debug, info, warn, error). Env: OPENAPI_BRIDGE_LOG_LEVEL")
	cmd.PersistentFlags().String("log-format", "text", "Set the log format (text, json). Env: OPENAPI_BRIDGE_LOG_FORMAT")
	cmd.PersistentFlags().String("logfile", "", "Path to a file to write logs to. If not set, logs are written to stderr.")

	bindFlags(cmd.PersistentFlags(), "spec", "env-file", "validate", "debug", "log-level", "log-format", "logfile")
}

// BindServerFlags binds the flags of the serve command.
func BindServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Name announced to MCP clients. Defaults to the application name. Env: OPENAPI_BRIDGE_NAME")
	cmd.Flags().String("metrics-listen-address", "", "Address to expose Prometheus metrics on. If not specified, metrics are disabled. Env: OPENAPI_BRIDGE_METRICS_LISTEN_ADDRESS")

	bindFlags(cmd.Flags(), "name", "metrics-listen-address")
}

// bindFlags binds the named flags of set to viper keys of the same name. The
// process exits if a flag does not exist.
func bindFlags(set *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := viper.BindPFlag(name, set.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}
}
