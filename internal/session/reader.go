package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by a LineReader when the user pressed Ctrl+C.
var ErrInterrupt = errors.New("interrupted")

// LineReader reads one line of user input at a time. Readline returns io.EOF
// once input is exhausted and ErrInterrupt (with the partial line) on Ctrl+C.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// HistoryFile is where the interactive reader keeps its line history.
func HistoryFile() string {
	return filepath.Join(os.TempDir(), ".agentctl_history")
}

type readlineReader struct {
	rl *readline.Instance
}

// NewReadlineReader opens a terminal reader with history and completion of local commands.
func NewReadlineReader(prompt string) (LineReader, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(localCommands))
	for _, c := range localCommands {
		items = append(items, readline.PcItem(c.name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     HistoryFile(),
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return &readlineReader{rl: rl}, nil
}

func (r *readlineReader) Readline() (string, error) {
	line, err := r.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return line, ErrInterrupt
	case errors.Is(err, io.EOF):
		return line, io.EOF
	}
	return line, err
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

// filterInput drops Ctrl+Z so the chat cannot be suspended mid-turn.
func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
