// Package mcp implements the Model Context Protocol server for sparkwatch.
//
// It exposes the live application state and the current alerts as MCP
// resources and tools, so an assistant can inspect a running Spark
// application the same way the HTTP API does.
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

// StateReader is the read side of the monitor.
type StateReader interface {
	State() *model.AppState
	Alerts() []model.Alert
}

// Server wraps the MCP server with read access to the monitor.
type Server struct {
	mcpServer *mcpserver.MCPServer
	monitor   StateReader
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources, tools and prompts.
func New(monitor StateReader, logger *slog.Logger, version string) *Server {
	s := &Server{
		monitor: monitor,
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"sparkwatch",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
