package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agentctl/internal/agentsvc"
	"agentctl/internal/agentsvc/agentsvctest"
	"agentctl/internal/config"
	"agentctl/internal/mocktools"
	"agentctl/internal/session"
	"agentctl/internal/toolhost"

	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linesReader implements session.LineReader for testing
type linesReader struct {
	lines []string
}

func (r *linesReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *linesReader) Close() error { return nil }

// trackingTools counts Close calls on a real registry
type trackingTools struct {
	*toolhost.Registry
	closed int
}

func (t *trackingTools) Close() error {
	t.closed++
	return t.Registry.Close()
}

func openMockTools(t *testing.T) *trackingTools {
	t.Helper()
	srv, err := mocktools.NewServer(mocktools.Config{
		Name: "test-tools",
		Tools: []mocktools.ToolConfig{{
			Name:        "get_weather",
			Description: "Weather for a city",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
			},
			Responses: []mocktools.Response{{Response: "sunny in {{ .city }}"}},
		}},
	}, "test")
	require.NoError(t, err)

	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	r := toolhost.NewRegistry(c, 5*time.Second)
	_, err = r.Discover(context.Background())
	require.NoError(t, err)
	return &trackingTools{Registry: r}
}

func validConfig() *config.AgentctlConfig {
	cfg := config.GetDefaultConfig()
	cfg.Service.Endpoint = "https://example.services.ai.azure.com/api/projects/demo"
	cfg.Service.ModelDeployment = "gpt-4o"
	cfg.Orchestrator.PollInterval = time.Millisecond
	cfg.Session.Color = new(bool)
	cfg.ToolHost.Command = []string{"mock-tools"}
	return &cfg
}

type testApp struct {
	app   *Application
	svc   *agentsvctest.Service
	tools *trackingTools
	out   *bytes.Buffer
}

func newTestApp(t *testing.T, cfg *config.AgentctlConfig, lines []string, scripts ...[]agentsvctest.Step) *testApp {
	t.Helper()
	ta := &testApp{
		svc:   agentsvctest.New(scripts...),
		tools: openMockTools(t),
		out:   &bytes.Buffer{},
	}
	ta.app = newApplication(&Config{AgentctlConfig: cfg}, ta.out)
	ta.app.newService = func(config.ServiceConfig) (agentsvc.Service, error) { return ta.svc, nil }
	ta.app.openTools = func(ctx context.Context, c config.ToolHostConfig) (ToolRegistry, error) {
		return ta.tools, nil
	}
	ta.app.newReader = func(prompt string) (session.LineReader, error) {
		return &linesReader{lines: lines}, nil
	}
	return ta
}

func TestRun_ChatWithToolAndTeardown(t *testing.T) {
	ta := newTestApp(t, validConfig(), []string{"weather in Taipei?", "exit"}, []agentsvctest.Step{
		{Status: agentsvc.RunStatusRequiresAction, ToolCalls: []agentsvc.ToolCall{
			{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Taipei"}`},
		}},
		{Status: agentsvc.RunStatusCompleted, Reply: "It is sunny in Taipei."},
	})

	require.NoError(t, ta.app.Run(context.Background()))

	assert.Equal(t, "Assistant: It is sunny in Taipei.\n", ta.out.String())
	require.Len(t, ta.svc.Submissions, 1)
	assert.Equal(t, "sunny in Taipei", ta.svc.Submissions[0][0].Output)

	require.Len(t, ta.svc.Agents, 1)
	for _, spec := range ta.svc.Agents {
		assert.Equal(t, "gpt-4o", spec.Model)
		assert.Equal(t, config.DefaultAgentName, spec.Name)
		require.Len(t, spec.Tools, 1)
		assert.Equal(t, "get_weather", spec.Tools[0].Name)
		assert.Equal(t, "object", spec.Tools[0].Parameters["type"])
	}

	assert.Len(t, ta.svc.DeletedAgents, 1)
	assert.Len(t, ta.svc.DeletedThreads, 1)
	assert.Equal(t, 1, ta.tools.closed)
}

func TestRun_TeardownDisabled(t *testing.T) {
	cfg := validConfig()
	keep := false
	cfg.Teardown.DeleteAgent = &keep
	cfg.Teardown.DeleteThread = &keep

	ta := newTestApp(t, cfg, []string{"quit"})
	require.NoError(t, ta.app.Run(context.Background()))

	assert.Empty(t, ta.svc.DeletedAgents)
	assert.Empty(t, ta.svc.DeletedThreads)
	assert.Equal(t, 1, ta.tools.closed)
}

func TestRun_TeardownAfterCancellation(t *testing.T) {
	ta := newTestApp(t, validConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, ta.app.Run(ctx))
	assert.Len(t, ta.svc.DeletedAgents, 1)
	assert.Len(t, ta.svc.DeletedThreads, 1)
}

func TestRun_TeardownErrorsAreNotReturned(t *testing.T) {
	ta := newTestApp(t, validConfig(), nil)
	ta.svc.DeleteAgentErr = errors.New("403 forbidden")
	ta.svc.DeleteThreadErr = errors.New("403 forbidden")

	assert.NoError(t, ta.app.Run(context.Background()))
}

func TestRun_AcquisitionFailures(t *testing.T) {
	t.Run("invalid config touches nothing", func(t *testing.T) {
		cfg := validConfig()
		cfg.Service.Endpoint = ""
		ta := newTestApp(t, cfg, nil)
		called := false
		ta.app.newService = func(config.ServiceConfig) (agentsvc.Service, error) {
			called = true
			return ta.svc, nil
		}

		err := ta.app.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), config.EnvProjectEndpoint)
		assert.False(t, called)
	})

	t.Run("tool host failure creates no agent", func(t *testing.T) {
		ta := newTestApp(t, validConfig(), nil)
		ta.app.openTools = func(context.Context, config.ToolHostConfig) (ToolRegistry, error) {
			return nil, toolhost.ErrHandshake
		}

		err := ta.app.Run(context.Background())
		assert.ErrorIs(t, err, toolhost.ErrHandshake)
		assert.Empty(t, ta.svc.Agents)
	})

	t.Run("agent failure still closes the tool host", func(t *testing.T) {
		ta := newTestApp(t, validConfig(), nil)
		ta.svc.CreateAgentErr = errors.New("quota exceeded")

		err := ta.app.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create agent")
		assert.Equal(t, 1, ta.tools.closed)
	})

	t.Run("thread failure deletes the agent", func(t *testing.T) {
		ta := newTestApp(t, validConfig(), nil)
		ta.svc.CreateThreadErr = errors.New("unavailable")

		err := ta.app.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create thread")
		assert.Len(t, ta.svc.DeletedAgents, 1)
		assert.Empty(t, ta.svc.DeletedThreads)
	})

	t.Run("reader failure releases agent and thread", func(t *testing.T) {
		ta := newTestApp(t, validConfig(), nil)
		ta.app.newReader = func(string) (session.LineReader, error) { return nil, errors.New("not a terminal") }

		require.Error(t, ta.app.Run(context.Background()))
		assert.Len(t, ta.svc.DeletedAgents, 1)
		assert.Len(t, ta.svc.DeletedThreads, 1)
	})
}

func TestRun_WithoutToolHost(t *testing.T) {
	cfg := validConfig()
	cfg.ToolHost.Command = nil

	svc := agentsvctest.New([]agentsvctest.Step{{Status: agentsvc.RunStatusCompleted, Reply: "hi"}})
	out := &bytes.Buffer{}
	a := newApplication(&Config{AgentctlConfig: cfg}, out)
	a.newService = func(config.ServiceConfig) (agentsvc.Service, error) { return svc, nil }
	a.newReader = func(string) (session.LineReader, error) { return &linesReader{lines: []string{"hello"}}, nil }

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, "Assistant: hi\n", out.String())
	for _, spec := range svc.Agents {
		assert.Empty(t, spec.Tools)
	}
}

func TestListTools(t *testing.T) {
	ta := newTestApp(t, validConfig(), nil)

	descs, err := ta.app.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "get_weather", descs[0].Name)
	assert.Equal(t, 1, ta.tools.closed)

	cfg := validConfig()
	cfg.ToolHost.Command = nil
	_, err = newApplication(&Config{AgentctlConfig: cfg}, io.Discard).ListTools(context.Background())
	assert.ErrorIs(t, err, ErrNoToolHost)
}

func TestNewApplication_LoadsConfigFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  endpoint: https://example.services.ai.azure.com/api/projects/demo
  modelDeployment: gpt-4o-mini
agent:
  name: weather-bot
`), 0o644))

	a, err := NewApplication(NewConfig(path, true))
	require.NoError(t, err)
	require.NotNil(t, a.config.AgentctlConfig)
	assert.Equal(t, "weather-bot", a.config.AgentctlConfig.Agent.Name)
	assert.Equal(t, config.DefaultPollInterval, a.config.AgentctlConfig.Orchestrator.PollInterval)

	_, err = NewApplication(NewConfig(filepath.Join(t.TempDir(), "missing.yaml"), false))
	assert.Error(t, err)
}

func TestInitializeServices(t *testing.T) {
	cfg := validConfig()
	svc := agentsvctest.New()
	s := InitializeServices(cfg, svc, (*toolhost.Registry)(nil))

	assert.Same(t, svc, s.Agent)
	assert.NotNil(t, s.Dispatcher)
	assert.NotNil(t, s.Orchestrator)
}

func TestToolDefinitions(t *testing.T) {
	assert.Nil(t, toolDefinitions(nil))
	defs := toolDefinitions([]toolhost.Descriptor{{Name: "a", Description: "A", InputSchema: map[string]any{"type": "object"}}})
	assert.Equal(t, []agentsvc.ToolDefinition{{Name: "a", Description: "A", Parameters: map[string]any{"type": "object"}}}, defs)
}
