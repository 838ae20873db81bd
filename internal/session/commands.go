package session

import (
	"context"
	"strings"

	"agentctl/internal/agentsvc"
)

// localCommand is handled by the client and never reaches the agent.
type localCommand struct {
	name        string
	description string
	run         func(s *Session, ctx context.Context)
}

var localCommands []localCommand

func init() {
	localCommands = []localCommand{
		{name: "/help", description: "Show local commands", run: (*Session).cmdHelp},
		{name: "/history", description: "Print the whole conversation", run: (*Session).cmdHistory},
		{name: "/copy", description: "Copy the last answer to the clipboard", run: (*Session).cmdCopy},
		{name: "/tools", description: "List the tools the agent can use", run: (*Session).cmdTools},
	}
}

func lookupCommand(input string) (localCommand, bool) {
	for _, c := range localCommands {
		if strings.EqualFold(input, c.name) {
			return c, true
		}
	}
	return localCommand{}, false
}

func (s *Session) cmdHelp(ctx context.Context) {
	for _, c := range localCommands {
		s.out.info("  %-9s %s", c.name, c.description)
	}
	if len(s.opts.ExitTokens) > 0 {
		s.out.info("  Leave with: %s", strings.Join(s.opts.ExitTokens, ", "))
	}
}

func (s *Session) cmdHistory(ctx context.Context) {
	msgs, err := s.messages.ListMessages(ctx, s.opts.ThreadID, agentsvc.ListOptions{Order: agentsvc.OrderAscending})
	if err != nil {
		s.out.errorf("Error: failed to load history: %v", err)
		return
	}
	if len(msgs) == 0 {
		s.out.info("No messages yet.")
		return
	}
	for _, msg := range msgs {
		s.out.message(msg)
	}
}

func (s *Session) cmdCopy(ctx context.Context) {
	if s.lastReply == "" {
		s.out.info("Nothing to copy yet.")
		return
	}
	if err := s.copyClipboard(s.lastReply); err != nil {
		s.out.errorf("Error: failed to copy to clipboard: %v", err)
		return
	}
	s.out.info("Copied the last answer to the clipboard.")
}

func (s *Session) cmdTools(ctx context.Context) {
	if len(s.opts.ToolNames) == 0 {
		s.out.info("No tools available.")
		return
	}
	for _, name := range s.opts.ToolNames {
		s.out.info("  • %s", name)
	}
}
