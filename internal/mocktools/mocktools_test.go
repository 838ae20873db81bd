package mocktools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agentctl/internal/agentsvc"
	"agentctl/internal/config"
	"agentctl/internal/dispatcher"
	"agentctl/internal/toolhost"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherScript() Config {
	return Config{
		Name: "weather",
		Tools: []ToolConfig{
			{
				Name:        "get_weather",
				Description: "Weather for a city",
				InputSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"city": map[string]any{"type": "string"}},
					"required":   []any{"city"},
				},
				Responses: []Response{
					{Condition: map[string]any{"city": "Atlantis"}, Error: "city not found"},
					{Condition: map[string]any{"days": 3}, Response: map[string]any{"city": "{{ .city }}", "forecast": []any{"sun", "rain", "sun"}}},
					{Response: "It is sunny in {{ .city }}."},
				},
			},
			{
				Name:      "only_conditional",
				Responses: []Response{{Condition: map[string]any{"x": "y"}, Response: "matched"}},
			},
		},
	}
}

func TestToolHandler_HandleCall(t *testing.T) {
	cfg := weatherScript()
	weather := NewToolHandler(cfg.Tools[0])

	tests := []struct {
		name    string
		args    map[string]any
		want    any
		wantErr string
	}{
		{name: "fallback template", args: map[string]any{"city": "Taipei"}, want: "It is sunny in Taipei."},
		{name: "conditional error", args: map[string]any{"city": "Atlantis"}, wantErr: "city not found"},
		{
			name: "structured response, json number matches yaml int",
			args: map[string]any{"city": "Oslo", "days": float64(3)},
			want: map[string]any{"city": "Oslo", "forecast": []any{"sun", "rain", "sun"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := weather.HandleCall(context.Background(), tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewToolHandler(cfg.Tools[1]).HandleCall(context.Background(), map[string]any{"x": "z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching response")
}

func TestToolHandler_DelayHonoursContext(t *testing.T) {
	h := NewToolHandler(ToolConfig{Name: "slow", Responses: []Response{{Response: "late", Delay: "1h"}}})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.HandleCall(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: get_time
    description: Current time
    responses:
      - response: noon
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mock-tools", cfg.Name)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "noon", cfg.Tools[0].Responses[0].Response)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools:\n  - name: a\n  - name: a\n    responses: [{response: x}]\n"), 0o644))
	_, err = LoadConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no responses")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, weatherScript().Validate())
	assert.Error(t, Config{Tools: []ToolConfig{{Responses: []Response{{Response: "x"}}}}}.Validate())

	dup := Config{Tools: []ToolConfig{
		{Name: "a", Responses: []Response{{Response: "x"}}},
		{Name: "a", Responses: []Response{{Response: "y"}}},
	}}
	assert.ErrorContains(t, dup.Validate(), "defined twice")
}

func TestServer_InProcessThroughDispatcher(t *testing.T) {
	srv, err := NewServer(weatherScript(), "1.2.3")
	require.NoError(t, err)

	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	registry := toolhost.NewRegistry(c, 5*time.Second)
	defer registry.Close()

	_, err = registry.Discover(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"get_weather", "only_conditional"}, registry.Names())

	desc, ok := registry.Lookup("get_weather")
	require.True(t, ok)
	assert.Equal(t, []any{"city"}, desc.InputSchema["required"])

	d := dispatcher.New(registry, 2)
	outputs := d.InvokeAll(context.Background(), []agentsvc.ToolCall{
		{ID: "a", Name: "get_weather", Arguments: `{"city":"Taipei"}`},
		{ID: "b", Name: "get_weather", Arguments: `{"city":"Atlantis"}`},
		{ID: "c", Name: "get_weather", Arguments: `{"city":"Oslo","days":3}`},
		{ID: "d", Name: "nope", Arguments: `{}`},
	})
	require.Len(t, outputs, 4)
	assert.Equal(t, "It is sunny in Taipei.", outputs[0].Output)
	assert.Equal(t, "error: city not found", outputs[1].Output)
	assert.JSONEq(t, `{"city":"Oslo","forecast":["sun","rain","sun"]}`, outputs[2].Output)
	assert.Equal(t, "error: unknown tool nope", outputs[3].Output)
}

func TestServer_SSETransport(t *testing.T) {
	srv, err := NewServer(weatherScript(), "")
	require.NoError(t, err)

	ts := server.NewTestServer(srv.MCPServer())
	defer ts.Close()

	registry, err := toolhost.Open(context.Background(), config.ToolHostConfig{
		Transport:        config.ToolTransportSSE,
		URL:              ts.URL + "/sse",
		HandshakeTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer registry.Close()

	out := dispatcher.New(registry, 1).Invoke(context.Background(), agentsvc.ToolCall{ID: "x", Name: "get_weather", Arguments: `{"city":"Lima"}`})
	assert.Equal(t, "It is sunny in Lima.", out.Output)
}

func TestInputSchemaJSON_Defaults(t *testing.T) {
	raw, err := inputSchemaJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(raw))
}
