package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// ErrUnknownCommand is returned by Handle for an unrecognised slash command.
var ErrUnknownCommand = errors.New("unknown command")

// CommandName identifies an in-interview command.
type CommandName string

const (
	CmdNone     CommandName = ""
	CmdHelp     CommandName = "help"
	CmdSave     CommandName = "save"
	CmdMemoir   CommandName = "memoir"
	CmdContinue CommandName = "continue"
	CmdExit     CommandName = "exit"
)

// Command is a parsed line of input.
type Command struct {
	Name CommandName
	Arg  string
	// Raw is the original input, kept for unknown commands.
	Raw string
}

var commandAliases = map[string]CommandName{
	"help":     CmdHelp,
	"?":        CmdHelp,
	"save":     CmdSave,
	"memoir":   CmdMemoir,
	"write":    CmdMemoir,
	"continue": CmdContinue,
	"exit":     CmdExit,
	"quit":     CmdExit,
	"end":      CmdExit,
}

// ParseCommand recognises "/name [arg]" input. Anything else is ordinary
// speech and yields CmdNone.
func ParseCommand(input string) (Command, bool) {
	in := strings.TrimSpace(input)
	if !strings.HasPrefix(in, "/") {
		return Command{Name: CmdNone, Raw: input}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(in, "/"), " ")
	cmd := Command{Arg: strings.TrimSpace(arg), Raw: in}
	if n, ok := commandAliases[strings.ToLower(name)]; ok {
		cmd.Name = n
		return cmd, true
	}
	cmd.Name = CommandName(strings.ToLower(name))
	return cmd, true
}

// HelpText lists the in-interview commands.
const HelpText = `Commands:
  /help              show this help
  /save              save the interview now
  /memoir [style]    write the memoir (factual, literary or letter)
  /continue          go back to the interview after a memoir draft
  /exit, /quit       end the interview
Anything else is your answer.`

// Outcome is the result of Handle.
type Outcome struct {
	Command  Command
	Turn     *Turn
	Document *interview.Document
	Help     string
	Saved    bool
	Closed   bool
}

// Handle dispatches input to the matching engine operation. Plain text is a
// turn. A non-fatal persistence failure is returned with the outcome.
func (e *Engine) Handle(ctx context.Context, s *interview.Session, input string) (*Outcome, error) {
	cmd, isCmd := ParseCommand(input)
	out := &Outcome{Command: cmd}
	if !isCmd {
		turn, err := e.SubmitTurn(ctx, s, input)
		if turn == nil {
			return nil, err
		}
		out.Turn = turn
		return out, err
	}

	switch cmd.Name {
	case CmdHelp:
		out.Help = HelpText
		return out, nil
	case CmdSave:
		if err := e.Save(ctx, s); err != nil {
			return out, err
		}
		out.Saved = true
		return out, nil
	case CmdMemoir:
		style, err := interview.ParseStyle(cmd.Arg)
		if err != nil {
			return nil, err
		}
		doc, err := e.RequestMemoir(ctx, s, style)
		if doc == nil {
			return nil, err
		}
		out.Document = doc
		return out, err
	case CmdContinue:
		turn, err := e.ContinueInterview(ctx, s)
		if turn == nil {
			return nil, err
		}
		out.Turn = turn
		return out, err
	case CmdExit:
		err := e.EndSession(ctx, s)
		out.Closed = s.Closed()
		return out, err
	default:
		return nil, fmt.Errorf("%w: /%s", ErrUnknownCommand, cmd.Name)
	}
}
