// Package mocktools serves scripted tools over MCP. It stands in for a real tool host
// when trying out the chat client or testing it end to end.
package mocktools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentctl/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const subsystem = "MockTools"

// Server is a scripted MCP tool host.
type Server struct {
	name  string
	mcp   *server.MCPServer
	tools map[string]*ToolHandler
}

// NewServer registers every scripted tool on a fresh MCP server.
func NewServer(cfg Config, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		name:  cfg.Name,
		mcp:   server.NewMCPServer(cfg.Name, version, server.WithToolCapabilities(false)),
		tools: make(map[string]*ToolHandler, len(cfg.Tools)),
	}

	for _, tc := range cfg.Tools {
		schema, err := inputSchemaJSON(tc.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("invalid input schema for tool %q: %w", tc.Name, err)
		}
		handler := NewToolHandler(tc)
		s.tools[tc.Name] = handler
		s.mcp.AddTool(mcp.NewToolWithRawSchema(tc.Name, tc.Description, schema), s.callHandler(tc.Name, handler))
	}

	logging.Debug(subsystem, "Mock tool host %q initialized with %d tools", cfg.Name, len(s.tools))
	return s, nil
}

// MCPServer exposes the underlying server, e.g. for an in-process client.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio answers requests on in/out until ctx is cancelled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info(subsystem, "Serving %d mock tools on stdio", len(s.tools))
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio server failed: %w", err)
	}
	return nil
}

// ServeSSE serves the tools over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(
		s.mcp,
		server.WithBaseURL("http://"+addr),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	errCh := make(chan error, 1)
	go func() {
		logging.Info(subsystem, "Serving %d mock tools on http://%s/sse", len(s.tools), addr)
		errCh <- sseServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("SSE server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error(subsystem, err, "Failed to shut down SSE server")
		}
		return nil
	}
}

func (s *Server) callHandler(name string, h *ToolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		logging.Debug(subsystem, "Tool call: %s with arguments: %v", name, args)

		result, err := h.HandleCall(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if text, ok := result.(string); ok {
			return mcp.NewToolResultText(text), nil
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}

func inputSchemaJSON(schema map[string]any) (json.RawMessage, error) {
	if schema == nil {
		schema = map[string]any{}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return json.Marshal(schema)
}
