// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newValidateCommand(fs afero.Fs) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the OpenAPI document and its extensions",
		Long: `Validate the OpenAPI document and its extensions.

This command loads the document, checks the filter rules and translates every
remaining operation, reporting the number of tools it would expose.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, cleanup, err := setup(cmd, fs, false)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := loadBridge(cmd.Context(), fs, settings)
			if err != nil {
				return fmt.Errorf("document is invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document is valid: %d tool(s)\n", b.catalog.Len())
			return nil
		},
	}

	return validateCmd
}
