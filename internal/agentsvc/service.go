package agentsvc

import (
	"context"
)

// Service is the remote agent service consumed by the orchestrator and the application.
type Service interface {
	CreateAgent(ctx context.Context, spec AgentSpec) (AgentID, error)
	DeleteAgent(ctx context.Context, id AgentID) error

	CreateThread(ctx context.Context) (ThreadID, error)
	DeleteThread(ctx context.Context, id ThreadID) error

	AppendMessage(ctx context.Context, threadID ThreadID, role Role, content string) (MessageID, error)
	ListMessages(ctx context.Context, threadID ThreadID, opts ListOptions) ([]Message, error)

	CreateRun(ctx context.Context, threadID ThreadID, agentID AgentID) (*Run, error)
	GetRun(ctx context.Context, threadID ThreadID, runID RunID) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID ThreadID, runID RunID, outputs []ToolOutput) (*Run, error)
}
