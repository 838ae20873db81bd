package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"agentctl/internal/agentsvc"
	"agentctl/internal/config"
	"agentctl/internal/session"
	"agentctl/internal/toolhost"
	"agentctl/pkg/logging"
)

const subsystem = "Bootstrap"

// ErrNoToolHost is returned by ListTools when no tool host is configured.
var ErrNoToolHost = errors.New("no tool host configured")

// Application is the main application structure that bootstraps and runs agentctl
type Application struct {
	config *Config
	out    io.Writer

	newService func(cfg config.ServiceConfig) (agentsvc.Service, error)
	openTools  func(ctx context.Context, cfg config.ToolHostConfig) (ToolRegistry, error)
	newReader  func(prompt string) (session.LineReader, error)
}

// NewApplication loads the configuration and initializes logging.
// Remote resources are only acquired by Run.
func NewApplication(cfg *Config) (*Application, error) {
	// Bootstrap logging so configuration problems are reported
	initLogging(config.LoggingConfig{Level: "info"}, cfg.Debug)

	var agentctlCfg config.AgentctlConfig
	var err error

	if cfg.ConfigPath != "" {
		agentctlCfg, err = config.LoadConfigFromPath(cfg.ConfigPath)
		if err != nil {
			logging.Error(subsystem, err, "Failed to load agentctl configuration from path: %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load agentctl configuration from path %s: %w", cfg.ConfigPath, err)
		}
	} else {
		agentctlCfg, err = config.LoadConfig()
		if err != nil {
			logging.Error(subsystem, err, "Failed to load agentctl configuration")
			return nil, fmt.Errorf("failed to load agentctl configuration: %w", err)
		}
	}

	initLogging(agentctlCfg.Logging, cfg.Debug)
	if cfg.ConfigPath != "" {
		logging.Debug(subsystem, "Loaded configuration from custom path: %s", cfg.ConfigPath)
	} else {
		logging.Debug(subsystem, "Loaded configuration using layered approach")
	}

	cfg.AgentctlConfig = &agentctlCfg
	return newApplication(cfg, os.Stdout), nil
}

func newApplication(cfg *Config, out io.Writer) *Application {
	return &Application{
		config:     cfg,
		out:        out,
		newService: newAgentService,
		openTools:  openToolRegistry,
		newReader:  session.NewReadlineReader,
	}
}

// initLogging sends logs to stderr so the transcript on stdout stays clean.
func initLogging(cfg config.LoggingConfig, debug bool) {
	level := logging.ParseLevel(cfg.Level)
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(level, cfg.Format, os.Stderr)
}

// Run executes the interactive chat
func (a *Application) Run(ctx context.Context) error {
	return runChatMode(ctx, a)
}

// ListTools connects to the tool host and returns what it offers.
func (a *Application) ListTools(ctx context.Context) ([]toolhost.Descriptor, error) {
	cfg := a.config.AgentctlConfig.ToolHost
	if !cfg.Enabled() {
		return nil, ErrNoToolHost
	}

	tools, err := a.openTools(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeTools(tools)

	return tools.Descriptors(), nil
}

func closeTools(tools ToolRegistry) {
	if err := tools.Close(); err != nil {
		logging.Warn(subsystem, "Failed to close tool host connection: %v", err)
	}
}
