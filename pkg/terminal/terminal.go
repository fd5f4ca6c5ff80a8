package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"

	"github.com/sumprime/sumprime/service"
)

const (
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"

	ansiRed = 31
)

// Term represents the console connected to a coordinator.
type Term struct {
	client service.Client
	prompt string
	line   *liner.State
	cmds   *Commands
	dumb   bool
	stdout io.Writer
	stderr io.Writer
}

// New returns a new Term.
func New(client service.Client) *Term {
	var w io.Writer

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	return &Term{
		client: client,
		prompt: "(sumprime) ",
		line:   liner.NewLiner(),
		cmds:   ConsoleCommands(),
		dumb:   dumb,
		stdout: w,
		stderr: os.Stderr,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run reads and executes commands until exit or end of input. History is
// kept in memory for the duration of the session.
func (t *Term) Run() (int, error) {
	defer t.Close()

	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(func(line string) []string {
		return t.cmds.Complete(strings.ToLower(line))
	})

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			t.errorf("Command failed: %s\n", err)
		}
	}
}

func (t *Term) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !t.dumb {
		msg = fmt.Sprintf(terminalHighlightEscapeCode, ansiRed) + strings.TrimSuffix(msg, "\n") + terminalResetEscapeCode + "\n"
	}
	fmt.Fprint(t.stderr, msg)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	if err := t.client.Disconnect(); err != nil {
		return 1, err
	}
	return 0, nil
}
