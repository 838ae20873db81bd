package agentsvc

import (
	"time"
)

type AgentID string
type ThreadID string
type RunID string
type MessageID string

// Role of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RunStatus is the lifecycle state of a run as reported by the service.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// RunError is the error the service attached to a failed run.
type RunError struct {
	Code    string
	Message string
}

func (e RunError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Run is one attempt to produce an assistant response for the thread.
type Run struct {
	ID       RunID
	ThreadID ThreadID
	Status   RunStatus
	// RequiredAction holds the pending tool calls while Status is requires_action.
	RequiredAction []ToolCall
	LastError      *RunError
}

// ToolCall is a request from the agent to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ToolOutput answers exactly one ToolCall.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

const ContentTypeText = "text"

// ContentPart is one element of a message body.
type ContentPart struct {
	Type string
	Text string
}

// Message is an immutable entry of a thread.
type Message struct {
	ID        MessageID
	Role      Role
	Content   []ContentPart
	CreatedAt time.Time
}

// LastText returns the last textual content part of the message.
func (m Message) LastText() (string, bool) {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if m.Content[i].Type == ContentTypeText {
			return m.Content[i].Text, true
		}
	}
	return "", false
}

// ToolDefinition declares a callable function to the agent.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of the arguments object
}

// AgentSpec is everything needed to create an agent.
type AgentSpec struct {
	Model        string
	Name         string
	Instructions string
	Tools        []ToolDefinition
}

// SortOrder for ListMessages.
type SortOrder string

const (
	OrderAscending  SortOrder = "asc"
	OrderDescending SortOrder = "desc"
)

// ListOptions narrows ListMessages. A zero Limit lists the whole thread.
type ListOptions struct {
	Order SortOrder
	Limit int
}
