package agentsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentctl/internal/config"
	"agentctl/pkg/logging"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const subsystem = "AgentService"

// Client implements Service against an Assistants-compatible REST API
// (Azure AI Foundry Agents, Azure OpenAI Assistants, OpenAI Assistants).
type Client struct {
	api openai.Client
}

var _ Service = (*Client)(nil)

// NewClient builds a client for the configured endpoint. Extra options are appended
// after the generated ones and win over them.
func NewClient(cfg config.ServiceConfig, opts ...option.RequestOption) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("service endpoint is empty")
	}

	var auth option.RequestOption
	switch cfg.Auth.Mode {
	case config.AuthModeAPIKey:
		if cfg.Auth.APIKey == "" {
			return nil, fmt.Errorf("auth mode %s requires an API key", cfg.Auth.Mode)
		}
		auth = option.WithHeader("api-key", cfg.Auth.APIKey)
	case config.AuthModeAzure, "":
		cred, err := newDefaultCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		scope := cfg.Auth.Scope
		if scope == "" {
			scope = config.DefaultAuthScope
		}
		auth = option.WithMiddleware(bearerTokenMiddleware(cred, scope))
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	base := cfg.Endpoint
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	all := []option.RequestOption{option.WithBaseURL(base), auth}
	if cfg.APIVersion != "" {
		all = append(all, option.WithQuery("api-version", cfg.APIVersion))
	}
	all = append(all, opts...)

	return &Client{api: openai.NewClient(all...)}, nil
}

// CreateAgent creates an assistant declaring the given function tools.
func (c *Client) CreateAgent(ctx context.Context, spec AgentSpec) (AgentID, error) {
	params := openai.BetaAssistantNewParams{
		Model: shared.ChatModel(spec.Model),
	}
	if spec.Name != "" {
		params.Name = openai.String(spec.Name)
	}
	if spec.Instructions != "" {
		params.Instructions = openai.String(spec.Instructions)
	}
	for _, tool := range spec.Tools {
		fn := shared.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: shared.FunctionParameters(tool.Parameters),
		}
		if tool.Description != "" {
			fn.Description = openai.String(tool.Description)
		}
		params.Tools = append(params.Tools, openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{Function: fn},
		})
	}

	assistant, err := c.api.Beta.Assistants.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create agent %q: %w", spec.Name, err)
	}
	logging.Debug(subsystem, "Created agent %s with %d tools", assistant.ID, len(spec.Tools))
	return AgentID(assistant.ID), nil
}

func (c *Client) DeleteAgent(ctx context.Context, id AgentID) error {
	if _, err := c.api.Beta.Assistants.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}
	return nil
}

func (c *Client) CreateThread(ctx context.Context) (ThreadID, error) {
	thread, err := c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return ThreadID(thread.ID), nil
}

func (c *Client) DeleteThread(ctx context.Context, id ThreadID) error {
	if _, err := c.api.Beta.Threads.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", id, err)
	}
	return nil
}

func (c *Client) AppendMessage(ctx context.Context, threadID ThreadID, role Role, content string) (MessageID, error) {
	params := openai.BetaThreadMessageNewParams{
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(content)},
		Role:    openai.BetaThreadMessageNewParamsRole(role),
	}
	msg, err := c.api.Beta.Threads.Messages.New(ctx, string(threadID), params)
	if err != nil {
		return "", fmt.Errorf("failed to append message to thread %s: %w", threadID, err)
	}
	return MessageID(msg.ID), nil
}

func (c *Client) ListMessages(ctx context.Context, threadID ThreadID, opts ListOptions) ([]Message, error) {
	params := openai.BetaThreadMessageListParams{}
	switch opts.Order {
	case OrderAscending:
		params.Order = openai.BetaThreadMessageListParamsOrderAsc
	case OrderDescending:
		params.Order = openai.BetaThreadMessageListParamsOrderDesc
	}

	if opts.Limit > 0 {
		params.Limit = openai.Int(int64(opts.Limit))
		page, err := c.api.Beta.Threads.Messages.List(ctx, string(threadID), params)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages of thread %s: %w", threadID, err)
		}
		out := make([]Message, 0, len(page.Data))
		for _, m := range page.Data {
			out = append(out, toMessage(m))
		}
		return out, nil
	}

	var out []Message
	iter := c.api.Beta.Threads.Messages.ListAutoPaging(ctx, string(threadID), params)
	for iter.Next() {
		out = append(out, toMessage(iter.Current()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages of thread %s: %w", threadID, err)
	}
	return out, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID ThreadID, agentID AgentID) (*Run, error) {
	run, err := c.api.Beta.Threads.Runs.New(ctx, string(threadID), openai.BetaThreadRunNewParams{
		AssistantID: string(agentID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run on thread %s: %w", threadID, err)
	}
	return toRun(run), nil
}

func (c *Client) GetRun(ctx context.Context, threadID ThreadID, runID RunID) (*Run, error) {
	run, err := c.api.Beta.Threads.Runs.Get(ctx, string(threadID), string(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return toRun(run), nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, threadID ThreadID, runID RunID, outputs []ToolOutput) (*Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, o := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.ToolCallID),
			Output:     openai.String(o.Output),
		})
	}
	run, err := c.api.Beta.Threads.Runs.SubmitToolOutputs(ctx, string(threadID), string(runID), params)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %d tool outputs for run %s: %w", len(outputs), runID, err)
	}
	return toRun(run), nil
}

func toRun(r *openai.Run) *Run {
	run := &Run{
		ID:       RunID(r.ID),
		ThreadID: ThreadID(r.ThreadID),
		Status:   RunStatus(r.Status),
	}
	if r.LastError.Message != "" || r.LastError.Code != "" {
		run.LastError = &RunError{Code: string(r.LastError.Code), Message: r.LastError.Message}
	}

	switch string(r.Status) {
	case string(RunStatusRequiresAction):
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			run.RequiredAction = append(run.RequiredAction, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	case "expired", "incomplete":
		// Both end the run without an answer; callers treat them as failures.
		if run.LastError == nil {
			run.LastError = &RunError{Code: string(r.Status), Message: fmt.Sprintf("run %s", r.Status)}
		}
		run.Status = RunStatusFailed
	}
	return run
}

func toMessage(m openai.Message) Message {
	msg := Message{
		ID:        MessageID(m.ID),
		Role:      Role(m.Role),
		CreatedAt: time.Unix(m.CreatedAt, 0),
	}
	for _, part := range m.Content {
		if part.Type == ContentTypeText {
			msg.Content = append(msg.Content, ContentPart{Type: ContentTypeText, Text: part.Text.Value})
			continue
		}
		msg.Content = append(msg.Content, ContentPart{Type: part.Type})
	}
	return msg
}
