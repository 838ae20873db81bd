package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentctl/internal/agentsvc"
	"agentctl/internal/toolhost"
	"agentctl/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

const subsystem = "Dispatcher"

var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrMalformedArguments = errors.New("malformed arguments")
	ErrToolInvocation     = errors.New("tool invocation error")
)

// ToolSet resolves tool names to handlers. *toolhost.Registry implements it.
type ToolSet interface {
	Lookup(name string) (toolhost.Descriptor, bool)
}

// Dispatcher answers tool calls. Every call gets exactly one output; errors are turned
// into error outputs instead of being returned.
type Dispatcher struct {
	tools       ToolSet
	maxParallel int
}

// New creates a dispatcher. maxParallel <= 1 dispatches calls one after another.
func New(tools ToolSet, maxParallel int) *Dispatcher {
	return &Dispatcher{tools: tools, maxParallel: maxParallel}
}

// Invoke runs one tool call and returns its output.
func (d *Dispatcher) Invoke(ctx context.Context, call agentsvc.ToolCall) agentsvc.ToolOutput {
	start := time.Now()
	text, err := d.invoke(ctx, call)
	if err != nil {
		logging.Warn(subsystem, "Tool %s (call %s) failed after %s: %v", call.Name, call.ID, time.Since(start), err)
		return agentsvc.ToolOutput{ToolCallID: call.ID, Output: errorOutput(err)}
	}
	logging.Debug(subsystem, "Tool %s (call %s) answered in %s with %d bytes", call.Name, call.ID, time.Since(start), len(text))
	return agentsvc.ToolOutput{ToolCallID: call.ID, Output: text}
}

// InvokeAll answers every call, preserving the order the calls were delivered in.
func (d *Dispatcher) InvokeAll(ctx context.Context, calls []agentsvc.ToolCall) []agentsvc.ToolOutput {
	outputs := make([]agentsvc.ToolOutput, len(calls))
	if len(calls) == 0 {
		return outputs
	}

	var g errgroup.Group
	if d.maxParallel > 1 {
		g.SetLimit(d.maxParallel)
	} else {
		g.SetLimit(1)
	}
	for i, call := range calls {
		g.Go(func() error {
			outputs[i] = d.Invoke(ctx, call)
			return nil
		})
	}
	_ = g.Wait() // goroutines never fail, errors live in the outputs

	return outputs
}

func (d *Dispatcher) invoke(ctx context.Context, call agentsvc.ToolCall) (text string, err error) {
	var desc toolhost.Descriptor
	var ok bool
	if d.tools != nil {
		desc, ok = d.tools.Lookup(call.Name)
	}
	if !ok || desc.Handler == nil {
		return "", fmt.Errorf("%w %s", ErrUnknownTool, call.Name)
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return "", fmt.Errorf("%w for %s: %v", ErrMalformedArguments, call.Name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = fmt.Errorf("%w: %s panicked: %v", ErrToolInvocation, call.Name, p)
		}
	}()

	result, err := desc.Handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolInvocation, err)
	}
	return normalize(result), nil
}

// parseArguments decodes the raw arguments into a JSON object. An empty string is
// an empty object.
func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		// JSON null
		args = map[string]any{}
	}
	return args, nil
}

// normalize reduces a multi-part tool result to the single text submitted to the run.
func normalize(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	text := ""
	found := false
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			text = textContent.Text
			found = true
			break
		}
	}
	if !found {
		encoded, err := json.Marshal(result.Content)
		if err != nil {
			return ""
		}
		text = string(encoded)
	}

	if result.IsError {
		return "error: " + text
	}
	return text
}

// errorOutput renders a dispatch error the way the agent sees it.
func errorOutput(err error) string {
	switch {
	case errors.Is(err, ErrToolInvocation):
		// Drop the sentinel prefix, the agent only needs the cause.
		return "error: " + strings.TrimPrefix(err.Error(), ErrToolInvocation.Error()+": ")
	default:
		return "error: " + err.Error()
	}
}
