package toolhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"agentctl/internal/config"
	"agentctl/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

const subsystem = "ToolHost"

var (
	// ErrConnection means the tool host could not be reached or launched.
	ErrConnection = errors.New("tool host connection failure")
	// ErrHandshake means the initialize handshake failed or timed out.
	ErrHandshake = errors.New("tool host handshake failure")
	// ErrToolListing means tools/list failed after a successful handshake.
	ErrToolListing = errors.New("tool host tool listing failure")
)

// ClientInfo identifies agentctl during the initialize handshake.
var ClientInfo = mcp.Implementation{
	Name:    "agentctl",
	Version: "1.0.0",
}

// Handler invokes one tool on the host with a structured argument map.
type Handler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// Descriptor is a discovered tool.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Registry holds the tools discovered on one tool host connection.
type Registry struct {
	session          Session
	handshakeTimeout time.Duration

	mu    sync.RWMutex
	tools map[string]Descriptor
	order []string

	closeOnce sync.Once
	closeErr  error
}

// NewRegistry wraps an already connected session.
func NewRegistry(session Session, handshakeTimeout time.Duration) *Registry {
	return &Registry{
		session:          session,
		handshakeTimeout: handshakeTimeout,
		tools:            make(map[string]Descriptor),
	}
}

// Open connects to the tool host and discovers its tools. On failure nothing is left
// running; on success the caller owns the registry and must Close it.
func Open(ctx context.Context, cfg config.ToolHostConfig) (*Registry, error) {
	logging.Info(subsystem, "Connecting to tool host (%s transport)...", transportName(cfg))

	session, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r := NewRegistry(session, cfg.HandshakeTimeout)
	if _, err := r.Discover(ctx); err != nil {
		if closeErr := r.Close(); closeErr != nil {
			logging.Warn(subsystem, "Closing tool host after failed discovery: %v", closeErr)
		}
		return nil, err
	}
	return r, nil
}

// Discover performs the initialize handshake and lists the available tools.
// An empty tool list is not an error.
func (r *Registry) Discover(ctx context.Context) ([]Descriptor, error) {
	if err := r.initialize(ctx); err != nil {
		return nil, err
	}

	result, err := r.session.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrToolListing, err)
	}

	tools := make(map[string]Descriptor, len(result.Tools))
	order := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		if _, dup := tools[tool.Name]; dup {
			logging.Warn(subsystem, "Tool host listed %s twice, keeping the first", tool.Name)
			continue
		}
		tools[tool.Name] = Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchema(tool),
			Handler:     r.handlerFor(tool.Name),
		}
		order = append(order, tool.Name)
	}

	r.mu.Lock()
	r.tools = tools
	r.order = order
	r.mu.Unlock()

	if len(order) == 0 {
		logging.Warn(subsystem, "Tool host offers no tools, the agent will run without tools")
	} else {
		logging.Info(subsystem, "Connected to tool host with tools: %v", order)
	}
	return r.Descriptors(), nil
}

func (r *Registry) initialize(ctx context.Context) error {
	if r.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.handshakeTimeout)
		defer cancel()
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = ClientInfo
	req.Params.Capabilities = mcp.ClientCapabilities{}

	logging.Debug(subsystem, "initialize request: protocol %s", req.Params.ProtocolVersion)
	result, err := r.session.Initialize(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: no response within %s: %w", ErrHandshake, r.handshakeTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	logging.Debug(subsystem, "initialize response: server %s %s, protocol %s",
		result.ServerInfo.Name, result.ServerInfo.Version, result.ProtocolVersion)
	return nil
}

// handlerFor builds the closure that forwards calls for one tool name.
func (r *Registry) handlerFor(name string) Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		result, err := r.session.CallTool(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tools/call %s: %w", name, err)
		}
		if result == nil {
			return nil, fmt.Errorf("tools/call %s returned no result", name)
		}
		return result, nil
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Descriptors returns the tools in discovery order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the tool names in discovery order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Close releases the tool host connection. It is safe to call more than once and on a
// nil registry.
func (r *Registry) Close() error {
	if r == nil || r.session == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		logging.Debug(subsystem, "Closing tool host connection")
		r.closeErr = r.session.Close()
	})
	return r.closeErr
}

// inputSchema returns the tool's argument schema as a plain JSON object.
func inputSchema(tool mcp.Tool) map[string]any {
	var raw []byte
	if len(tool.RawInputSchema) > 0 {
		raw = tool.RawInputSchema
	} else {
		var err error
		raw, err = json.Marshal(tool.InputSchema)
		if err != nil {
			logging.Warn(subsystem, "Could not encode input schema of %s: %v", tool.Name, err)
		}
	}

	schema := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &schema); err != nil {
			logging.Warn(subsystem, "Could not decode input schema of %s: %v", tool.Name, err)
			schema = map[string]any{}
		}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema
}

func transportName(cfg config.ToolHostConfig) string {
	if cfg.Transport == "" {
		return config.ToolTransportStdio
	}
	return cfg.Transport
}
