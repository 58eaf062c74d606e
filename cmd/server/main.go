// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcpany/openapi-bridge/pkg/appconsts"
	"github.com/mcpany/openapi-bridge/pkg/config"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/mcpany/openapi-bridge/pkg/mcpserver"
	"github.com/mcpany/openapi-bridge/pkg/metrics"
	"github.com/mcpany/openapi-bridge/pkg/spec"
	"github.com/mcpany/openapi-bridge/pkg/tool"
	"github.com/mcpany/openapi-bridge/pkg/upstream/openapi"
	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// setup initializes logging and the environment for a command. stdio commands
// must keep stdout free for JSON-RPC, so their logs go to the log file or
// nowhere.
func setup(cmd *cobra.Command, fs afero.Fs, stdio bool) (*config.Settings, func(), error) {
	settings := config.Load()

	var logOutput io.Writer = cmd.ErrOrStderr()
	cleanup := func() {}
	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open logfile: %w", err)
		}
		cleanup = func() { _ = f.Close() }
		logOutput = f
	} else if stdio {
		logOutput = io.Discard
	}
	logging.Init(settings.SlogLevel(), logOutput, settings.LogFormat)

	if err := settings.LoadEnvFile(fs); err != nil {
		cleanup()
		return nil, nil, err
	}
	return settings, cleanup, nil
}

// bridge is a loaded, filtered and translated document.
type bridge struct {
	doc     *spec.Document
	catalog *tool.Catalog
}

func loadBridge(ctx context.Context, fs afero.Fs, settings *config.Settings) (*bridge, error) {
	if err := settings.RequireSpec(); err != nil {
		return nil, err
	}
	doc, err := spec.NewLoader(fs, spec.WithValidation(settings.Validate)).Load(ctx, settings.SpecLocation)
	if err != nil {
		return nil, err
	}
	filtered, err := spec.Filter(doc)
	if err != nil {
		return nil, err
	}
	catalog, err := openapi.Translate(filtered)
	if err != nil {
		return nil, err
	}
	return &bridge{doc: filtered, catalog: catalog}, nil
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          appconsts.Name,
		Short:        "Exposes the operations of an OpenAPI document as MCP tools.",
		SilenceUsage: true,
	}
	config.BindRootFlags(rootCmd)

	rootCmd.AddCommand(
		newServeCmd(fs),
		newToolsCmd(fs),
		newCallCmd(fs),
		newValidateCommand(fs),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd(fs afero.Fs) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document's operations as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, cleanup, err := setup(cmd, fs, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := loadBridge(ctx, fs, settings)
			if err != nil {
				return err
			}

			log := logging.GetLogger().With("service", appconsts.Name)
			if settings.MetricsListenAddress != "" {
				if err := metrics.Initialize(); err != nil {
					return fmt.Errorf("failed to initialize metrics: %w", err)
				}
				go func() {
					if err := metrics.StartServer(ctx, settings.MetricsListenAddress); err != nil {
						log.Error("Metrics server failed", "error", err)
					}
				}()
			}

			server := mcpserver.NewServer(settings.Name, b.catalog, tool.NewInvoker(b.doc))
			log.Info("Serving tools over stdio", "tools", b.catalog.Len())
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				log.Error("Server failed", "error", err)
				return err
			}
			log.Info("Shutdown complete.")
			return nil
		},
	}
	config.BindServerFlags(serveCmd)
	return serveCmd
}

func newToolsCmd(fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, cleanup, err := setup(cmd, fs, false)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := loadBridge(cmd.Context(), fs, settings)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b.catalog.List())
		},
	}
}

func newCallCmd(fs afero.Fs) *cobra.Command {
	callCmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool and print its response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, cleanup, err := setup(cmd, fs, false)
			if err != nil {
				return err
			}
			defer cleanup()

			var callArgs tool.Arguments
			for flag, target := range map[string]**tool.Params{
				"path-params":  &callArgs.PathParams,
				"input-params": &callArgs.InputParams,
			} {
				raw, _ := cmd.Flags().GetString(flag)
				if raw == "" {
					continue
				}
				p := tool.NewParams()
				if err := util.JSON.Unmarshal([]byte(raw), p); err != nil {
					return fmt.Errorf("invalid --%s: %w", flag, err)
				}
				*target = p
			}

			b, err := loadBridge(cmd.Context(), fs, settings)
			if err != nil {
				return err
			}
			server := mcpserver.NewServer(settings.Name, b.catalog, tool.NewInvoker(b.doc))
			resp, err := server.CallTool(cmd.Context(), args[0], callArgs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	callCmd.Flags().String("path-params", "", "JSON object of path parameters.")
	callCmd.Flags().String("input-params", "", "JSON object of query and body parameters.")
	return callCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + appconsts.Name,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appconsts.Name, appconsts.Version)
			if err != nil {
				return fmt.Errorf("failed to print version: %w", err)
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	out, err := util.JSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// main is the entry point. The application exits with a non-zero status code
// if the command fails.
func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}
