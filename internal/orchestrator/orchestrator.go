package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agentctl/internal/agentsvc"
	"agentctl/pkg/logging"

	"github.com/google/uuid"
)

const subsystem = "Orchestrator"

// how many recent messages are searched for the answer of a completed run
const answerWindow = 20

// ToolInvoker answers every pending tool call of a requires-action cycle.
// *dispatcher.Dispatcher implements it.
type ToolInvoker interface {
	InvokeAll(ctx context.Context, calls []agentsvc.ToolCall) []agentsvc.ToolOutput
}

// Options tunes the polling loop.
type Options struct {
	PollInterval time.Duration
	// MaxPolls bounds the number of status fetches per turn; 0 means no bound.
	MaxPolls int
	// Observer, when set, sees every run status the turn passes through.
	Observer func(runID agentsvc.RunID, status agentsvc.RunStatus)
}

// TurnResult describes a finished turn.
type TurnResult struct {
	TurnID     string
	RunID      agentsvc.RunID
	Status     agentsvc.RunStatus
	Text       string // empty when the answer carries no text part
	ToolRounds int
	Polls      int
}

// Orchestrator drives one run per user turn until it reaches a terminal state.
type Orchestrator struct {
	service agentsvc.Service
	tools   ToolInvoker
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. A non-positive poll interval falls back to one second.
func New(service agentsvc.Service, tools ToolInvoker, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Orchestrator{
		service: service,
		tools:   tools,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// RunTurn appends the user message, creates a run and drives it to a terminal state.
//
// A failed run returns a *RunFailedError, a cancelled run ErrRunCancelled; both come
// with a non-nil TurnResult.
func (o *Orchestrator) RunTurn(ctx context.Context, agentID agentsvc.AgentID, threadID agentsvc.ThreadID, text string) (*TurnResult, error) {
	result := &TurnResult{TurnID: uuid.NewString()}

	userMsgID, err := o.service.AppendMessage(ctx, threadID, agentsvc.RoleUser, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	run, err := o.service.CreateRun(ctx, threadID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	result.RunID = run.ID
	logging.Debug(subsystem, "Turn %s started run %s", result.TurnID, run.ID)

	for {
		result.Status = run.Status
		o.observe(run)

		switch run.Status {
		case agentsvc.RunStatusCompleted:
			answer, err := o.FinalText(ctx, threadID, userMsgID)
			if err != nil {
				return result, err
			}
			result.Text = answer
			logging.Debug(subsystem, "Turn %s completed after %d polls and %d tool rounds", result.TurnID, result.Polls, result.ToolRounds)
			return result, nil

		case agentsvc.RunStatusFailed:
			runErr := newRunFailedError(run)
			logging.Warn(subsystem, "Turn %s: %v", result.TurnID, runErr)
			return result, runErr

		case agentsvc.RunStatusCancelled:
			logging.Info(subsystem, "Turn %s: run %s was cancelled", result.TurnID, run.ID)
			return result, ErrRunCancelled

		case agentsvc.RunStatusRequiresAction:
			submitted, err := o.React(ctx, threadID, run)
			if err != nil {
				return result, err
			}
			result.ToolRounds++
			// The submission's snapshot can still list the calls just answered,
			// so the next state always comes from a poll.
			if run, err = o.pollTurn(ctx, threadID, submitted, result); err != nil {
				return result, err
			}

		default:
			if run, err = o.pollTurn(ctx, threadID, run, result); err != nil {
				return result, err
			}
		}
	}
}

// pollTurn polls run once on behalf of a turn, enforcing MaxPolls.
func (o *Orchestrator) pollTurn(ctx context.Context, threadID agentsvc.ThreadID, run *agentsvc.Run, result *TurnResult) (*agentsvc.Run, error) {
	if o.opts.MaxPolls > 0 && result.Polls >= o.opts.MaxPolls {
		return nil, fmt.Errorf("%w: run %s still %s after %d polls", ErrRunTimeout, run.ID, run.Status, result.Polls)
	}
	next, err := o.Poll(ctx, threadID, run.ID)
	if err != nil {
		return nil, err
	}
	result.Polls++
	return next, nil
}

// Poll waits one poll interval and fetches the run again. It never touches the thread.
func (o *Orchestrator) Poll(ctx context.Context, threadID agentsvc.ThreadID, runID agentsvc.RunID) (*agentsvc.Run, error) {
	if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
		return nil, err
	}
	run, err := o.service.GetRun(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll run %s: %w", runID, err)
	}
	return run, nil
}

// React answers every tool call of a requires-action run and submits the outputs as
// one batch. It returns the run snapshot the submission reports, which may lag behind.
func (o *Orchestrator) React(ctx context.Context, threadID agentsvc.ThreadID, run *agentsvc.Run) (*agentsvc.Run, error) {
	calls := run.RequiredAction
	if len(calls) == 0 {
		return nil, fmt.Errorf("%w (run %s)", ErrNoToolCalls, run.ID)
	}

	logging.Info(subsystem, "Run %s requested %d tool call(s)", run.ID, len(calls))
	outputs := o.tools.InvokeAll(ctx, calls)
	if err := checkCorrelation(calls, outputs); err != nil {
		return nil, err
	}

	updated, err := o.service.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to submit tool outputs: %w", err)
	}
	return updated, nil
}

// FinalText returns the last text part of the newest assistant message written after
// the message identified by since. A missing or text-less answer yields "".
func (o *Orchestrator) FinalText(ctx context.Context, threadID agentsvc.ThreadID, since agentsvc.MessageID) (string, error) {
	msgs, err := o.service.ListMessages(ctx, threadID, agentsvc.ListOptions{
		Order: agentsvc.OrderDescending,
		Limit: answerWindow,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch the answer: %w", err)
	}

	for _, msg := range msgs {
		if since != "" && msg.ID == since {
			break
		}
		if msg.Role != agentsvc.RoleAssistant {
			continue
		}
		text, _ := msg.LastText()
		return text, nil
	}
	return "", nil
}

func (o *Orchestrator) observe(run *agentsvc.Run) {
	if o.opts.Observer != nil {
		o.opts.Observer(run.ID, run.Status)
	}
}

// checkCorrelation verifies that outputs answer every call exactly once.
func checkCorrelation(calls []agentsvc.ToolCall, outputs []agentsvc.ToolOutput) error {
	if len(outputs) != len(calls) {
		return fmt.Errorf("dispatcher returned %d outputs for %d tool calls", len(outputs), len(calls))
	}
	pending := make(map[string]int, len(calls))
	for _, c := range calls {
		pending[c.ID]++
	}
	for _, out := range outputs {
		if pending[out.ToolCallID] == 0 {
			return fmt.Errorf("output for unexpected tool call %q", out.ToolCallID)
		}
		pending[out.ToolCallID]--
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsTurnAbort reports whether err ended only the current turn, leaving the session usable.
func IsTurnAbort(err error) bool {
	return errors.Is(err, ErrRunFailed) || errors.Is(err, ErrRunCancelled) || errors.Is(err, ErrRunTimeout)
}
