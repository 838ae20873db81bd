package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/agentctl"
	projectConfigDir = ".agentctl"
	configFileName   = "config.yaml"
	dotEnvFileName   = ".env"
)

// Environment variables that override file based settings.
const (
	EnvProjectEndpoint = "PROJECT_ENDPOINT"
	EnvModelDeployment = "MODEL_DEPLOYMENT_NAME"
	EnvAPIKey          = "AGENTCTL_API_KEY"
	EnvAuthMode        = "AGENTCTL_AUTH_MODE"
	EnvLogLevel        = "AGENTCTL_LOG_LEVEL"
	EnvDebug           = "AGENTCTL_DEBUG"

	// EnvConfigPath is read by the CLI; when set, only that file is loaded.
	EnvConfigPath = "AGENTCTL_CONFIG"
)

// LoadConfig loads the agentctl configuration by layering default, user and project
// settings, then the .env file and finally the process environment.
func LoadConfig() (AgentctlConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if config, err = mergeFileIfExists(config, userConfigPath); err != nil {
		return AgentctlConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if config, err = mergeFileIfExists(config, projectConfigPath); err != nil {
		return AgentctlConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
	}

	// 4. .env never overrides variables that are already exported
	if err := loadDotEnv(); err != nil {
		return AgentctlConfig{}, fmt.Errorf("error loading %s: %w", dotEnvFileName, err)
	}

	// 5. Environment
	applyEnvOverrides(&config)

	return config, nil
}

// LoadConfigFromPath loads defaults plus a single YAML file, then the .env file and
// the process environment.
func LoadConfigFromPath(path string) (AgentctlConfig, error) {
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return AgentctlConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config := mergeConfigs(GetDefaultConfig(), overlay)
	if err := loadDotEnv(); err != nil {
		return AgentctlConfig{}, fmt.Errorf("error loading %s: %w", dotEnvFileName, err)
	}
	applyEnvOverrides(&config)
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

var loadDotEnv = func() error {
	wd, err := osGetwd()
	if err != nil {
		return nil
	}
	err = godotenv.Load(filepath.Join(wd, dotEnvFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func mergeFileIfExists(base AgentctlConfig, path string) (AgentctlConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return base, err
	}
	return mergeConfigs(base, overlay), nil
}

// loadConfigFromFile loads an AgentctlConfig from a YAML file.
func loadConfigFromFile(filePath string) (AgentctlConfig, error) {
	var config AgentctlConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return AgentctlConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return AgentctlConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values in the overlay
// leave the base untouched.
func mergeConfigs(base, overlay AgentctlConfig) AgentctlConfig {
	merged := base

	// Service
	setString(&merged.Service.Endpoint, overlay.Service.Endpoint)
	setString(&merged.Service.ModelDeployment, overlay.Service.ModelDeployment)
	setString(&merged.Service.APIVersion, overlay.Service.APIVersion)
	if overlay.Service.Auth.Mode != "" {
		merged.Service.Auth.Mode = overlay.Service.Auth.Mode
	}
	setString(&merged.Service.Auth.Scope, overlay.Service.Auth.Scope)
	setString(&merged.Service.Auth.APIKey, overlay.Service.Auth.APIKey)

	// Agent
	setString(&merged.Agent.Name, overlay.Agent.Name)
	setString(&merged.Agent.Instructions, overlay.Agent.Instructions)

	// Tool host: a command or URL in the overlay replaces the whole connection target
	setString(&merged.ToolHost.Transport, overlay.ToolHost.Transport)
	if len(overlay.ToolHost.Command) > 0 {
		merged.ToolHost.Command = append([]string(nil), overlay.ToolHost.Command...)
	}
	setString(&merged.ToolHost.URL, overlay.ToolHost.URL)
	if len(overlay.ToolHost.Env) > 0 {
		env := make(map[string]string, len(merged.ToolHost.Env)+len(overlay.ToolHost.Env))
		for k, v := range merged.ToolHost.Env {
			env[k] = v
		}
		for k, v := range overlay.ToolHost.Env {
			env[k] = v
		}
		merged.ToolHost.Env = env
	}
	if overlay.ToolHost.HandshakeTimeout > 0 {
		merged.ToolHost.HandshakeTimeout = overlay.ToolHost.HandshakeTimeout
	}

	// Orchestrator
	if overlay.Orchestrator.PollInterval > 0 {
		merged.Orchestrator.PollInterval = overlay.Orchestrator.PollInterval
	}
	if overlay.Orchestrator.MaxPolls > 0 {
		merged.Orchestrator.MaxPolls = overlay.Orchestrator.MaxPolls
	}
	if overlay.Orchestrator.MaxParallelTools > 0 {
		merged.Orchestrator.MaxParallelTools = overlay.Orchestrator.MaxParallelTools
	}

	// Session
	setString(&merged.Session.Prompt, overlay.Session.Prompt)
	setString(&merged.Session.Greeting, overlay.Session.Greeting)
	if overlay.Session.Color != nil {
		merged.Session.Color = overlay.Session.Color
	}
	if len(overlay.Session.ExitTokens) > 0 {
		merged.Session.ExitTokens = append([]string(nil), overlay.Session.ExitTokens...)
	}

	// Teardown
	if overlay.Teardown.DeleteAgent != nil {
		merged.Teardown.DeleteAgent = overlay.Teardown.DeleteAgent
	}
	if overlay.Teardown.DeleteThread != nil {
		merged.Teardown.DeleteThread = overlay.Teardown.DeleteThread
	}

	// Logging
	setString(&merged.Logging.Level, overlay.Logging.Level)
	setString(&merged.Logging.Format, overlay.Logging.Format)

	return merged
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyEnvOverrides(config *AgentctlConfig) {
	if v, ok := lookupNonEmpty(EnvProjectEndpoint); ok {
		config.Service.Endpoint = v
	}
	if v, ok := lookupNonEmpty(EnvModelDeployment); ok {
		config.Service.ModelDeployment = v
	}
	if v, ok := lookupNonEmpty(EnvAPIKey); ok {
		config.Service.Auth.APIKey = v
		// A key without an explicit mode means the caller wants key auth.
		if _, set := lookupNonEmpty(EnvAuthMode); !set {
			config.Service.Auth.Mode = AuthModeAPIKey
		}
	}
	if v, ok := lookupNonEmpty(EnvAuthMode); ok {
		config.Service.Auth.Mode = AuthMode(v)
	}
	if v, ok := lookupNonEmpty(EnvLogLevel); ok {
		config.Logging.Level = v
	}
	if v, ok := lookupNonEmpty(EnvDebug); ok {
		if debug, err := strconv.ParseBool(v); err == nil && debug {
			config.Logging.Level = "debug"
		}
	}
}

func lookupNonEmpty(key string) (string, bool) {
	v, ok := osLookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate reports configuration that makes a session impossible.
func (c AgentctlConfig) Validate() error {
	var problems []string
	if c.Service.Endpoint == "" {
		problems = append(problems, fmt.Sprintf("service endpoint is not set (export %s)", EnvProjectEndpoint))
	}
	if c.Service.ModelDeployment == "" {
		problems = append(problems, fmt.Sprintf("model deployment is not set (export %s)", EnvModelDeployment))
	}
	switch c.Service.Auth.Mode {
	case AuthModeAzure:
	case AuthModeAPIKey:
		if c.Service.Auth.APIKey == "" {
			problems = append(problems, fmt.Sprintf("auth mode %q requires an API key (export %s)", AuthModeAPIKey, EnvAPIKey))
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported auth mode %q (supported: %s, %s)", c.Service.Auth.Mode, AuthModeAzure, AuthModeAPIKey))
	}
	switch c.ToolHost.Transport {
	case "", ToolTransportStdio, ToolTransportSSE, ToolTransportStreamableHTTP:
	default:
		problems = append(problems, fmt.Sprintf("unsupported tool host transport %q (supported: %s, %s, %s)",
			c.ToolHost.Transport, ToolTransportStdio, ToolTransportSSE, ToolTransportStreamableHTTP))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
