package app

import (
	"agentctl/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath, when set, replaces the layered lookup with a single file.
	ConfigPath string

	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Loaded agentctl configuration
	AgentctlConfig *config.AgentctlConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
	}
}
