package toolhost

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	"agentctl/internal/config"
	"agentctl/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Session is the part of an MCP client the registry relies on.
// *client.Client satisfies it for every transport.
type Session interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Connect opens the transport described by cfg. The returned session is started but
// not yet initialized.
func Connect(ctx context.Context, cfg config.ToolHostConfig) (Session, error) {
	switch cfg.Transport {
	case "", config.ToolTransportStdio:
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("%w: no tool host command configured", ErrConnection)
		}
		// The stdio client launches the subprocess immediately.
		stdioClient, err := client.NewStdioMCPClient(cfg.Command[0], envList(cfg.Env), cfg.Command[1:]...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to start %s: %w", ErrConnection, cfg.Command[0], err)
		}
		if stderr, ok := client.GetStderr(stdioClient); ok {
			go drainStderr(cfg.Command[0], stderr)
		}
		return stdioClient, nil

	case config.ToolTransportSSE:
		sseClient, err := client.NewSSEMCPClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create SSE client: %w", ErrConnection, err)
		}
		if err := sseClient.Start(ctx); err != nil {
			sseClient.Close()
			return nil, fmt.Errorf("%w: failed to start SSE client: %w", ErrConnection, err)
		}
		return sseClient, nil

	case config.ToolTransportStreamableHTTP:
		httpClient, err := client.NewStreamableHttpClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create streamable-http client: %w", ErrConnection, err)
		}
		if err := httpClient.Start(ctx); err != nil {
			httpClient.Close()
			return nil, fmt.Errorf("%w: failed to start streamable-http client: %w", ErrConnection, err)
		}
		return httpClient, nil

	default:
		return nil, fmt.Errorf("%w: unsupported transport: %s (supported: %s, %s, %s)", ErrConnection,
			cfg.Transport, config.ToolTransportStdio, config.ToolTransportSSE, config.ToolTransportStreamableHTTP)
	}
}

// drainStderr forwards the tool host's stderr to the log until the process exits.
// An unread pipe fills up and blocks the subprocess mid-call.
func drainStderr(label string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logging.Debug(subsystem, "[%s STDERR] %s", label, scanner.Text())
	}
	// Keep draining past an overlong line so the pipe never fills.
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, stderr)
	}
}

// envList renders env as KEY=VALUE pairs in a stable order.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
