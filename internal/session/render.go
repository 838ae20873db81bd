package session

import (
	"fmt"
	"io"

	"agentctl/internal/agentsvc"

	"github.com/charmbracelet/lipgloss"
)

var (
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle            = lipgloss.NewStyle().Faint(true)
)

// printer writes the transcript. With color disabled every line is plain text.
type printer struct {
	out   io.Writer
	color bool
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) assistant(text string) {
	if text == "" {
		fmt.Fprintf(p.out, "%s %s\n", p.style(assistantLabelStyle, "Assistant:"), p.style(dimStyle, "(no text in response)"))
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.style(assistantLabelStyle, "Assistant:"), text)
}

func (p *printer) user(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.style(userLabelStyle, "You:"), text)
}

func (p *printer) message(msg agentsvc.Message) {
	text, ok := msg.LastText()
	if !ok {
		text = p.style(dimStyle, "(no text)")
	}
	switch msg.Role {
	case agentsvc.RoleAssistant:
		fmt.Fprintf(p.out, "%s %s\n", p.style(assistantLabelStyle, "Assistant:"), text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", p.style(userLabelStyle, "You:"), text)
	}
}

func (p *printer) runFailed(message string) {
	fmt.Fprintln(p.out, p.style(errorStyle, "Run failed: "+message))
}

func (p *printer) errorf(format string, args ...any) {
	fmt.Fprintln(p.out, p.style(errorStyle, fmt.Sprintf(format, args...)))
}

func (p *printer) info(format string, args ...any) {
	fmt.Fprintln(p.out, p.style(dimStyle, fmt.Sprintf(format, args...)))
}
