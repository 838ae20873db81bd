package app

import (
	"context"
	"fmt"
	"time"

	"agentctl/internal/agentsvc"
	"agentctl/internal/session"
	"agentctl/pkg/logging"
)

// upper bound for deleting remote resources after the session ended
const teardownTimeout = 30 * time.Second

// runChatMode acquires the tool host, the agent and the thread, runs the session loop
// and releases everything in reverse order.
func runChatMode(ctx context.Context, a *Application) error {
	cfg := a.config.AgentctlConfig
	if err := cfg.Validate(); err != nil {
		return err
	}

	svc, err := a.newService(cfg.Service)
	if err != nil {
		return fmt.Errorf("failed to create agent service client: %w", err)
	}

	tools, err := a.openTools(ctx, cfg.ToolHost)
	if err != nil {
		logging.Error(subsystem, err, "Failed to connect to tool host")
		return err
	}
	defer closeTools(tools)

	agentID, err := svc.CreateAgent(ctx, agentsvc.AgentSpec{
		Model:        cfg.Service.ModelDeployment,
		Name:         cfg.Agent.Name,
		Instructions: cfg.Agent.Instructions,
		Tools:        toolDefinitions(tools.Descriptors()),
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	logging.Info(subsystem, "Created agent, agent ID: %s", agentID)
	if cfg.Teardown.ShouldDeleteAgent() {
		defer teardown(ctx, "agent", string(agentID), func(ctx context.Context) error {
			return svc.DeleteAgent(ctx, agentID)
		})
	}

	threadID, err := svc.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	logging.Info(subsystem, "Created thread, thread ID: %s", threadID)
	if cfg.Teardown.ShouldDeleteThread() {
		defer teardown(ctx, "thread", string(threadID), func(ctx context.Context) error {
			return svc.DeleteThread(ctx, threadID)
		})
	}

	reader, err := a.newReader(cfg.Session.Prompt)
	if err != nil {
		return err
	}

	services := InitializeServices(cfg, svc, tools)
	s := session.New(services.Orchestrator, svc, reader, a.out, session.Options{
		AgentID:    agentID,
		ThreadID:   threadID,
		Greeting:   cfg.Session.Greeting,
		ExitTokens: cfg.Session.ExitTokens,
		Color:      cfg.Session.ColorEnabled(),
		ToolNames:  tools.Names(),
	})
	return s.Run(ctx)
}

// teardown deletes a remote resource. It runs on a fresh context so it still works
// after ctx was cancelled; failures are logged only.
func teardown(ctx context.Context, kind, id string, del func(ctx context.Context) error) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := del(tctx); err != nil {
		logging.Error(subsystem, err, "Failed to delete %s %s", kind, id)
		return
	}
	logging.Info(subsystem, "Deleted %s %s", kind, id)
}
