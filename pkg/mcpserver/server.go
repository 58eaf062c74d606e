// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package mcpserver exposes a tool catalog as MCP tools.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mcpany/openapi-bridge/pkg/appconsts"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/mcpany/openapi-bridge/pkg/tool"
	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Invoker executes a tool call.
type Invoker interface {
	Invoke(ctx context.Context, d *tool.Descriptor, args tool.Arguments) (*tool.Response, error)
}

// Server is the MCP server for one catalog.
type Server struct {
	catalog *tool.Catalog
	invoker Invoker
	server  *mcp.Server
}

// NewServer creates a Server and registers every tool of catalog on it. name
// defaults to appconsts.Name.
func NewServer(name string, catalog *tool.Catalog, invoker Invoker) *Server {
	if name == "" {
		name = appconsts.Name
	}
	s := &Server{
		catalog: catalog,
		invoker: invoker,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    name,
			Version: appconsts.Version,
		}, nil),
	}
	for _, d := range catalog.List() {
		s.server.AddTool(d.MCPTool(), s.handler(d))
	}
	logging.GetLogger().Info("Registered tools", "count", catalog.Len())
	return s
}

// Server returns the underlying MCP server.
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Run serves MCP on t until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

// CallTool invokes the named tool directly, without an MCP session.
func (s *Server) CallTool(ctx context.Context, name string, args tool.Arguments) (*tool.Response, error) {
	d, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return s.invoker.Invoke(ctx, d, args)
}

func (s *Server) handler(d *tool.Descriptor) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args tool.Arguments
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := util.JSON.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		resp, err := s.invoker.Invoke(ctx, d, args)
		if err != nil {
			// Invocation failures are reported to the model, not as protocol errors.
			return errorResult(err), nil
		}
		text, err := util.JSON.Marshal(resp)
		if err != nil {
			return errorResult(fmt.Errorf("failed to encode response: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
			StructuredContent: resp,
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
