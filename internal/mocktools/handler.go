package mocktools

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"text/template"
	"time"

	"agentctl/pkg/logging"
)

// ToolHandler answers calls of one scripted tool.
type ToolHandler struct {
	config ToolConfig
}

// NewToolHandler creates a handler for the given tool script.
func NewToolHandler(config ToolConfig) *ToolHandler {
	return &ToolHandler{config: config}
}

// HandleCall selects the matching response, applies its delay and renders it.
func (h *ToolHandler) HandleCall(ctx context.Context, args map[string]any) (any, error) {
	selected := h.selectResponse(args)
	if selected == nil {
		return nil, fmt.Errorf("no matching response found for tool '%s' with arguments: %v", h.config.Name, args)
	}

	if selected.Delay != "" {
		delay, err := time.ParseDuration(selected.Delay)
		if err != nil {
			logging.Warn(subsystem, "Invalid delay %q for tool %s, ignoring", selected.Delay, h.config.Name)
		} else {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if selected.Error != "" {
		return nil, fmt.Errorf("%s", selected.Error)
	}

	rendered, err := render(selected.Response, args)
	if err != nil {
		return nil, fmt.Errorf("template processing failed for tool '%s': %w", h.config.Name, err)
	}
	return rendered, nil
}

func (h *ToolHandler) selectResponse(args map[string]any) *Response {
	for i := range h.config.Responses {
		r := &h.config.Responses[i]
		if matchesCondition(r.Condition, args) {
			return r
		}
	}
	for i := range h.config.Responses {
		r := &h.config.Responses[i]
		if len(r.Condition) == 0 {
			return r
		}
	}
	return nil
}

// matchesCondition reports whether every condition entry equals the argument of the
// same name. An empty condition never matches; it marks the fallback.
func matchesCondition(condition, args map[string]any) bool {
	if len(condition) == 0 {
		return false
	}
	for key, expected := range condition {
		actual, ok := args[key]
		if !ok || !valuesEqual(expected, actual) {
			return false
		}
	}
	return true
}

// valuesEqual compares loosely so YAML ints match JSON float64 arguments.
func valuesEqual(expected, actual any) bool {
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
}

// render expands templates in every string of v.
func render(v any, args map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		tmpl, err := template.New("response").Parse(val)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, args); err != nil {
			return nil, err
		}
		return buf.String(), nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := render(item, args)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := render(item, args)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
