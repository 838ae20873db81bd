// Package session implements the interactive console loop: read a line, run a turn,
// print the answer, repeat until the user leaves.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"agentctl/internal/agentsvc"
	"agentctl/internal/orchestrator"
	"agentctl/pkg/logging"

	"github.com/atotto/clipboard"
)

const subsystem = "Session"

// Turner runs one conversational turn. *orchestrator.Orchestrator implements it.
type Turner interface {
	RunTurn(ctx context.Context, agentID agentsvc.AgentID, threadID agentsvc.ThreadID, text string) (*orchestrator.TurnResult, error)
}

// MessageLister reads the thread for /history.
type MessageLister interface {
	ListMessages(ctx context.Context, threadID agentsvc.ThreadID, opts agentsvc.ListOptions) ([]agentsvc.Message, error)
}

// Options configures a Session.
type Options struct {
	AgentID  agentsvc.AgentID
	ThreadID agentsvc.ThreadID

	// Greeting, when set, is sent as the first turn.
	Greeting   string
	ExitTokens []string
	Color      bool
	// ToolNames is what /tools prints.
	ToolNames []string
}

// Session is one interactive conversation bound to an agent and a thread.
type Session struct {
	turner   Turner
	messages MessageLister
	reader   LineReader
	out      *printer
	opts     Options

	lastReply     string
	copyClipboard func(string) error
}

// New creates a session. The session owns reader and closes it when Run returns.
func New(turner Turner, messages MessageLister, reader LineReader, out io.Writer, opts Options) *Session {
	return &Session{
		turner:        turner,
		messages:      messages,
		reader:        reader,
		out:           &printer{out: out, color: opts.Color},
		opts:          opts,
		copyClipboard: clipboard.WriteAll,
	}
}

// Run loops until an exit token, EOF, an interrupt on an empty line, or context
// cancellation. Turn errors are printed and never end the loop.
func (s *Session) Run(ctx context.Context) error {
	stop := make(chan struct{})
	var once sync.Once
	closeReader := func() { once.Do(func() { _ = s.reader.Close() }) }
	defer closeReader()
	defer close(stop)

	// unblock Readline when the context goes away
	go func() {
		select {
		case <-ctx.Done():
			closeReader()
		case <-stop:
		}
	}()

	if s.opts.Greeting != "" {
		s.out.user(s.opts.Greeting)
		s.turn(ctx, s.opts.Greeting)
	}

	for {
		if ctx.Err() != nil {
			logging.Info(subsystem, "Session cancelled")
			return nil
		}

		line, err := s.reader.Readline()
		if errors.Is(err, ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				logging.Info(subsystem, "Interrupted, goodbye")
				return nil
			}
			continue
		} else if errors.Is(err, io.EOF) {
			logging.Info(subsystem, "Input closed, goodbye")
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if s.isExit(input) {
			logging.Info(subsystem, "Goodbye!")
			return nil
		}
		if cmd, ok := lookupCommand(input); ok {
			cmd.run(s, ctx)
			continue
		}

		s.turn(ctx, input)
	}
}

func (s *Session) isExit(input string) bool {
	for _, token := range s.opts.ExitTokens {
		if strings.EqualFold(input, strings.TrimSpace(token)) {
			return true
		}
	}
	return false
}

// turn runs one turn and prints its outcome.
func (s *Session) turn(ctx context.Context, text string) {
	result, err := s.turner.RunTurn(ctx, s.opts.AgentID, s.opts.ThreadID, text)
	if err == nil {
		s.lastReply = result.Text
		s.out.assistant(result.Text)
		return
	}

	var runErr *orchestrator.RunFailedError
	switch {
	case ctx.Err() != nil:
		// the loop ends on its next iteration
	case errors.As(err, &runErr):
		s.out.runFailed(runErr.Message)
	case errors.Is(err, orchestrator.ErrRunCancelled):
	default:
		logging.Error(subsystem, err, "Turn failed")
		s.out.errorf("Error: %v", err)
	}
}
