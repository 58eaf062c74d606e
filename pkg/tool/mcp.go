// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"
)

// isIdempotent checks common HTTP methods for idempotency, which is a useful
// hint for AI models using the tools.
func isIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// MCPTool converts the descriptor into an MCP tool definition.
func (d *Descriptor) MCPTool() *mcp.Tool {
	method := strings.ToUpper(d.Method)
	title := d.Method + " " + d.Path
	if d.Operation != nil && d.Operation.Op != nil && d.Operation.Op.Summary != "" {
		title = d.Operation.Op.Summary
	}
	return &mcp.Tool{
		Name:        d.Name,
		Title:       title,
		Description: d.Description,
		InputSchema: d.InputSchema,
		Annotations: &mcp.ToolAnnotations{
			Title:           title,
			ReadOnlyHint:    method == http.MethodGet || method == http.MethodHead,
			IdempotentHint:  isIdempotent(method),
			DestructiveHint: lo.ToPtr(method == http.MethodDelete),
			OpenWorldHint:   lo.ToPtr(true),
		},
	}
}
