package config

import (
	"time"
)

const (
	DefaultAPIVersion       = "v1"
	DefaultAuthScope        = "https://ai.azure.com/.default"
	DefaultAgentName        = "agentctl-agent"
	DefaultInstructions     = "You are a helpful assistant that can have a conversation with the user."
	DefaultPrompt           = "You: "
	DefaultPollInterval     = time.Second
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultMaxParallelTools = 4
)

// DefaultExitTokens end the session when typed on their own, compared case-insensitively.
var DefaultExitTokens = []string{"exit", "quit", "離開", "退出"}

// GetDefaultConfig returns the built-in configuration every layer is merged onto.
func GetDefaultConfig() AgentctlConfig {
	return AgentctlConfig{
		Service: ServiceConfig{
			APIVersion: DefaultAPIVersion,
			Auth: AuthConfig{
				Mode:  AuthModeAzure,
				Scope: DefaultAuthScope,
			},
		},
		Agent: AgentConfig{
			Name:         DefaultAgentName,
			Instructions: DefaultInstructions,
		},
		ToolHost: ToolHostConfig{
			Transport:        ToolTransportStdio,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		Orchestrator: OrchestratorConfig{
			PollInterval:     DefaultPollInterval,
			MaxParallelTools: DefaultMaxParallelTools,
		},
		Session: SessionConfig{
			Prompt:     DefaultPrompt,
			ExitTokens: append([]string(nil), DefaultExitTokens...),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
