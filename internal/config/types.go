package config

import (
	"time"
)

// AgentctlConfig is the top-level configuration structure for agentctl.
type AgentctlConfig struct {
	Service      ServiceConfig      `yaml:"service"`
	Agent        AgentConfig        `yaml:"agent"`
	ToolHost     ToolHostConfig     `yaml:"toolHost"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Session      SessionConfig      `yaml:"session"`
	Teardown     TeardownConfig     `yaml:"teardown"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// AuthMode selects how requests to the agent service are authenticated.
type AuthMode string

const (
	// AuthModeAzure obtains bearer tokens from the Azure default credential chain.
	AuthModeAzure AuthMode = "azure"
	// AuthModeAPIKey sends a static key in the api-key header.
	AuthModeAPIKey AuthMode = "apiKey"
)

// ServiceConfig points at the remote agent service.
type ServiceConfig struct {
	Endpoint        string     `yaml:"endpoint,omitempty"`        // Project endpoint, e.g. https://<res>.services.ai.azure.com/api/projects/<project>
	ModelDeployment string     `yaml:"modelDeployment,omitempty"` // Model deployment the agent is created with
	APIVersion      string     `yaml:"apiVersion,omitempty"`      // api-version query parameter sent with every request
	Auth            AuthConfig `yaml:"auth"`
}

// AuthConfig configures the identity provider used for the agent service.
type AuthConfig struct {
	Mode   AuthMode `yaml:"mode,omitempty"`
	Scope  string   `yaml:"scope,omitempty"`  // Token scope for AuthModeAzure
	APIKey string   `yaml:"apiKey,omitempty"` // Key for AuthModeAPIKey; prefer AGENTCTL_API_KEY
}

// AgentConfig describes the agent created at startup.
type AgentConfig struct {
	Name         string `yaml:"name,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
}

const (
	// ToolTransportStdio launches the tool host as a subprocess and talks over its stdio.
	ToolTransportStdio = "stdio"
	// ToolTransportSSE is the Server-Sent Events transport.
	ToolTransportSSE = "sse"
	// ToolTransportStreamableHTTP is the streamable HTTP transport.
	ToolTransportStreamableHTTP = "streamable-http"
)

// ToolHostConfig defines how to reach the MCP tool host.
type ToolHostConfig struct {
	Transport        string            `yaml:"transport,omitempty"`        // "stdio" (default), "sse" or "streamable-http"
	Command          []string          `yaml:"command,omitempty"`          // Command and its arguments, e.g. ["python", "mcp_server.py"]
	Env              map[string]string `yaml:"env,omitempty"`              // Extra environment variables for the subprocess
	URL              string            `yaml:"url,omitempty"`              // Endpoint for the HTTP based transports
	HandshakeTimeout time.Duration     `yaml:"handshakeTimeout,omitempty"` // Upper bound for the initialize handshake
}

// Enabled reports whether a tool host is configured at all.
// Without one the agent runs with no tools.
func (t ToolHostConfig) Enabled() bool {
	if t.Transport == ToolTransportSSE || t.Transport == ToolTransportStreamableHTTP {
		return t.URL != ""
	}
	return len(t.Command) > 0
}

// OrchestratorConfig tunes the run polling loop.
type OrchestratorConfig struct {
	PollInterval     time.Duration `yaml:"pollInterval,omitempty"`
	MaxPolls         int           `yaml:"maxPolls,omitempty"`         // 0 polls forever
	MaxParallelTools int           `yaml:"maxParallelTools,omitempty"` // 1 dispatches tool calls sequentially
}

// SessionConfig controls the interactive console.
type SessionConfig struct {
	Prompt     string   `yaml:"prompt,omitempty"`
	Greeting   string   `yaml:"greeting,omitempty"` // Sent as the first turn when set
	Color      *bool    `yaml:"color,omitempty"`
	ExitTokens []string `yaml:"exitTokens,omitempty"`
}

// ColorEnabled returns the effective color setting.
func (s SessionConfig) ColorEnabled() bool {
	return s.Color == nil || *s.Color
}

// TeardownConfig decides which remote resources are deleted when the session ends.
type TeardownConfig struct {
	DeleteAgent  *bool `yaml:"deleteAgent,omitempty"`
	DeleteThread *bool `yaml:"deleteThread,omitempty"`
}

// ShouldDeleteAgent returns the effective agent teardown setting.
func (t TeardownConfig) ShouldDeleteAgent() bool {
	return t.DeleteAgent == nil || *t.DeleteAgent
}

// ShouldDeleteThread returns the effective thread teardown setting.
func (t TeardownConfig) ShouldDeleteThread() bool {
	return t.DeleteThread == nil || *t.DeleteThread
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "text" or "json"
}
