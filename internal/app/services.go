package app

import (
	"context"
	"strings"

	"agentctl/internal/agentsvc"
	"agentctl/internal/config"
	"agentctl/internal/dispatcher"
	"agentctl/internal/orchestrator"
	"agentctl/internal/toolhost"
	"agentctl/pkg/logging"
)

// ToolRegistry is the discovered tool set. *toolhost.Registry implements it, including
// as a nil pointer when no tool host is configured.
type ToolRegistry interface {
	Lookup(name string) (toolhost.Descriptor, bool)
	Descriptors() []toolhost.Descriptor
	Names() []string
	Close() error
}

// Services holds everything a chat session is wired from
type Services struct {
	Agent        agentsvc.Service
	Tools        ToolRegistry
	Dispatcher   *dispatcher.Dispatcher
	Orchestrator *orchestrator.Orchestrator
}

// InitializeServices wires the dispatcher and the orchestrator on top of an agent
// service and an already discovered tool registry.
func InitializeServices(cfg *config.AgentctlConfig, agent agentsvc.Service, tools ToolRegistry) *Services {
	d := dispatcher.New(tools, cfg.Orchestrator.MaxParallelTools)
	orch := orchestrator.New(agent, d, orchestrator.Options{
		PollInterval: cfg.Orchestrator.PollInterval,
		MaxPolls:     cfg.Orchestrator.MaxPolls,
	})
	return &Services{
		Agent:        agent,
		Tools:        tools,
		Dispatcher:   d,
		Orchestrator: orch,
	}
}

func newAgentService(cfg config.ServiceConfig) (agentsvc.Service, error) {
	return agentsvc.NewClient(cfg)
}

// openToolRegistry connects to the configured tool host. Without one it returns a nil
// registry that knows no tools.
func openToolRegistry(ctx context.Context, cfg config.ToolHostConfig) (ToolRegistry, error) {
	if !cfg.Enabled() {
		logging.Info(subsystem, "No tool host configured, the agent runs without tools")
		return (*toolhost.Registry)(nil), nil
	}
	r, err := toolhost.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if names := r.Names(); len(names) > 0 {
		logging.Info(subsystem, "Discovered %d tools: %s", len(names), strings.Join(names, ", "))
	}
	return r, nil
}

// toolDefinitions declares the discovered tools to the agent as functions.
func toolDefinitions(descs []toolhost.Descriptor) []agentsvc.ToolDefinition {
	if len(descs) == 0 {
		return nil
	}
	defs := make([]agentsvc.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, agentsvc.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		})
	}
	return defs
}
