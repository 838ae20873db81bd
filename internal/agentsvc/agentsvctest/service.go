// Package agentsvctest provides an in-memory, scripted agentsvc.Service for tests.
package agentsvctest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentctl/internal/agentsvc"
)

// Step is one state a scripted run passes through.
type Step struct {
	Status    agentsvc.RunStatus
	ToolCalls []agentsvc.ToolCall
	Error     *agentsvc.RunError
	// Reply is appended as an assistant message when the run reaches this step.
	Reply string
	// ReplyParts overrides Reply when set.
	ReplyParts []agentsvc.ContentPart
}

// Service replays one script per created run. Every GetRun moves the run one step
// forward; the last step sticks. SubmitToolOutputs answers the current
// requires_action step once and reports the run as queued, or as still requiring
// action when StaleSubmitSnapshot is set.
type Service struct {
	mu sync.Mutex

	scripts [][]Step

	CreateAgentErr  error
	DeleteAgentErr  error
	CreateThreadErr error
	DeleteThreadErr error
	AppendErr       error
	ListErr         error
	CreateRunErr    error
	GetRunErr       error
	SubmitErr       error

	StaleSubmitSnapshot bool

	Agents         map[agentsvc.AgentID]agentsvc.AgentSpec
	DeletedAgents  []agentsvc.AgentID
	DeletedThreads []agentsvc.ThreadID
	Submissions    [][]agentsvc.ToolOutput
	GetRunCalls    int
	AppendCalls    int

	threads map[agentsvc.ThreadID][]agentsvc.Message
	runs    map[agentsvc.RunID]*scriptedRun
	seq     int
	clock   time.Time
}

type scriptedRun struct {
	threadID agentsvc.ThreadID
	steps     []Step
	pos       int
	submitted bool
}

var _ agentsvc.Service = (*Service)(nil)

// New returns a service that plays the scripts in order, one per CreateRun.
func New(scripts ...[]Step) *Service {
	return &Service{
		scripts: scripts,
		Agents:  make(map[agentsvc.AgentID]agentsvc.AgentSpec),
		threads: make(map[agentsvc.ThreadID][]agentsvc.Message),
		runs:    make(map[agentsvc.RunID]*scriptedRun),
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddScript queues another run script.
func (s *Service) AddScript(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, steps)
}

// Messages returns a copy of the thread in creation order.
func (s *Service) Messages(threadID agentsvc.ThreadID) []agentsvc.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agentsvc.Message(nil), s.threads[threadID]...)
}

func (s *Service) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *Service) CreateAgent(ctx context.Context, spec agentsvc.AgentSpec) (agentsvc.AgentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateAgentErr != nil {
		return "", s.CreateAgentErr
	}
	id := agentsvc.AgentID(s.nextID("asst"))
	s.Agents[id] = spec
	return id, nil
}

func (s *Service) DeleteAgent(ctx context.Context, id agentsvc.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteAgentErr != nil {
		return s.DeleteAgentErr
	}
	s.DeletedAgents = append(s.DeletedAgents, id)
	return nil
}

func (s *Service) CreateThread(ctx context.Context) (agentsvc.ThreadID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateThreadErr != nil {
		return "", s.CreateThreadErr
	}
	id := agentsvc.ThreadID(s.nextID("thread"))
	s.threads[id] = nil
	return id, nil
}

func (s *Service) DeleteThread(ctx context.Context, id agentsvc.ThreadID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteThreadErr != nil {
		return s.DeleteThreadErr
	}
	s.DeletedThreads = append(s.DeletedThreads, id)
	return nil
}

func (s *Service) AppendMessage(ctx context.Context, threadID agentsvc.ThreadID, role agentsvc.Role, content string) (agentsvc.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AppendCalls++
	if s.AppendErr != nil {
		return "", s.AppendErr
	}
	if _, ok := s.threads[threadID]; !ok {
		return "", fmt.Errorf("thread %s not found", threadID)
	}
	return s.appendLocked(threadID, role, []agentsvc.ContentPart{{Type: agentsvc.ContentTypeText, Text: content}}), nil
}

func (s *Service) appendLocked(threadID agentsvc.ThreadID, role agentsvc.Role, parts []agentsvc.ContentPart) agentsvc.MessageID {
	s.clock = s.clock.Add(time.Second)
	msg := agentsvc.Message{
		ID:        agentsvc.MessageID(s.nextID("msg")),
		Role:      role,
		Content:   parts,
		CreatedAt: s.clock,
	}
	s.threads[threadID] = append(s.threads[threadID], msg)
	return msg.ID
}

func (s *Service) ListMessages(ctx context.Context, threadID agentsvc.ThreadID, opts agentsvc.ListOptions) ([]agentsvc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	msgs, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}

	out := make([]agentsvc.Message, 0, len(msgs))
	if opts.Order == agentsvc.OrderDescending {
		for i := len(msgs) - 1; i >= 0; i-- {
			out = append(out, msgs[i])
		}
	} else {
		out = append(out, msgs...)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Service) CreateRun(ctx context.Context, threadID agentsvc.ThreadID, agentID agentsvc.AgentID) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateRunErr != nil {
		return nil, s.CreateRunErr
	}
	if _, ok := s.threads[threadID]; !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	if len(s.scripts) == 0 {
		return nil, fmt.Errorf("no run script left")
	}

	steps := s.scripts[0]
	s.scripts = s.scripts[1:]
	id := agentsvc.RunID(s.nextID("run"))
	sr := &scriptedRun{threadID: threadID, steps: steps}
	s.runs[id] = sr
	s.enterLocked(sr)
	return s.snapshotLocked(id, sr), nil
}

func (s *Service) GetRun(ctx context.Context, threadID agentsvc.ThreadID, runID agentsvc.RunID) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetRunCalls++
	if s.GetRunErr != nil {
		return nil, s.GetRunErr
	}
	sr, ok := s.runs[runID]
	if !ok || sr.threadID != threadID {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	s.advanceLocked(sr)
	return s.snapshotLocked(runID, sr), nil
}

func (s *Service) SubmitToolOutputs(ctx context.Context, threadID agentsvc.ThreadID, runID agentsvc.RunID, outputs []agentsvc.ToolOutput) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SubmitErr != nil {
		return nil, s.SubmitErr
	}
	sr, ok := s.runs[runID]
	if !ok || sr.threadID != threadID {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if sr.current().Status != agentsvc.RunStatusRequiresAction || sr.submitted {
		return nil, fmt.Errorf("run %s is not waiting for tool outputs", runID)
	}
	s.Submissions = append(s.Submissions, append([]agentsvc.ToolOutput(nil), outputs...))
	sr.submitted = true

	run := s.snapshotLocked(runID, sr)
	if !s.StaleSubmitSnapshot {
		run.Status = agentsvc.RunStatusQueued
		run.RequiredAction = nil
	}
	return run, nil
}

func (r *scriptedRun) current() Step {
	if len(r.steps) == 0 {
		return Step{Status: agentsvc.RunStatusQueued}
	}
	return r.steps[r.pos]
}

func (s *Service) advanceLocked(sr *scriptedRun) {
	if sr.pos < len(sr.steps)-1 {
		sr.pos++
		sr.submitted = false
		s.enterLocked(sr)
	}
}

// enterLocked applies the side effects of reaching the current step.
func (s *Service) enterLocked(sr *scriptedRun) {
	step := sr.current()
	parts := step.ReplyParts
	if parts == nil && step.Reply != "" {
		parts = []agentsvc.ContentPart{{Type: agentsvc.ContentTypeText, Text: step.Reply}}
	}
	if parts != nil {
		s.appendLocked(sr.threadID, agentsvc.RoleAssistant, parts)
	}
}

func (s *Service) snapshotLocked(id agentsvc.RunID, sr *scriptedRun) *agentsvc.Run {
	step := sr.current()
	run := &agentsvc.Run{
		ID:       id,
		ThreadID: sr.threadID,
		Status:   step.Status,
	}
	if step.Status == agentsvc.RunStatusRequiresAction {
		run.RequiredAction = append([]agentsvc.ToolCall(nil), step.ToolCalls...)
	}
	if step.Error != nil {
		e := *step.Error
		run.LastError = &e
	}
	return run
}
