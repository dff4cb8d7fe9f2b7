package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/ui"
	"github.com/felixgeelhaar/memoir/internal/ui/tui"
)

var (
	resumeID   string
	scriptPath string
	useTUI     bool
)

var (
	assistantLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	userLabel      = color.New(color.FgGreen).SprintFunc()
	bannerColor    = color.New(color.FgMagenta).SprintFunc()
	noteColor      = color.New(color.Faint).SprintFunc()
	warnColor      = color.New(color.FgYellow).SprintFunc()
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Start or resume an interview",
	Long: `Start a new interview, or pick up a saved one with --resume.
Type /help during the interview for the available commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ciMode {
			color.NoColor = true
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		s, err := openSession(ctx, a)
		if s == nil {
			return err
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, warnColor("warning: "+err.Error()))
		}

		out := cmd.OutOrStdout()
		switch {
		case useTUI:
			return runTUI(ctx, a, s)
		case scriptPath != "":
			return runScript(ctx, a, s, out)
		default:
			return runREPL(ctx, a, s, out)
		}
	},
}

func openSession(ctx context.Context, a *app) (*interview.Session, error) {
	if resumeID == "" {
		return a.engine.StartSession(ctx)
	}
	s, err := a.engine.Load(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	if s.Closed() {
		return nil, fmt.Errorf("session %s has ended; use `memoir write %s` for its memoir", s.ID, s.ID)
	}
	return s, nil
}

// respond runs one line through the engine and renders what it produced.
func respond(ctx context.Context, a *app, s *interview.Session, input string) (tui.Reply, error) {
	out, err := a.engine.Handle(ctx, s, input)
	if out == nil {
		return tui.Reply{}, err
	}

	var r tui.Reply
	switch {
	case out.Help != "":
		r.Text = out.Help
	case out.Saved:
		r.Text = "Saved."
	case out.Closed:
		r.Text = lastAssistant(s)
		r.Closed = true
	case out.Document != nil:
		r.Text = exportText(ctx, a, out.Document)
	case out.Turn != nil:
		r.Text = out.Turn.Reply
		if out.Turn.Document != nil {
			r.Text = exportText(ctx, a, out.Turn.Document) + "\n\n" + r.Text
		}
	}
	return r, err
}

func exportText(ctx context.Context, a *app, doc *interview.Document) string {
	art, md, err := exportMemoir(ctx, a.store, doc)
	if err != nil {
		a.obs.Log().Error().Str("session", doc.SourceSessionID).Err(err).Msg("memoir export failed")
		return md
	}
	return md + "\n" + noteColor(fmt.Sprintf("(saved as %s)", art.ID))
}

func lastAssistant(s *interview.Session) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == interview.RoleAssistant {
			return s.Messages[i].Text
		}
	}
	return ""
}

// lineUI prints engine progress between turns.
type lineUI struct {
	w       io.Writer
	covered int
}

func (l *lineUI) UpdateStage(stage interview.Stage) {
	fmt.Fprintln(l.w, bannerColor(fmt.Sprintf("-- %s --", strings.ReplaceAll(string(stage), "_", " "))))
}

func (l *lineUI) UpdateProgress(covered, total int) {
	if covered == l.covered {
		return
	}
	l.covered = covered
	fmt.Fprintln(l.w, noteColor(fmt.Sprintf("[topics %d/%d]", covered, total)))
}

func (l *lineUI) Log(msg string) {
	fmt.Fprintln(l.w, noteColor(msg))
}

func topicTotal(a *app) int {
	return len(a.cfg.Topics())
}

// converse feeds lines from next into the engine until the session closes
// or input runs out. It reports whether the session closed.
func converse(ctx context.Context, a *app, s *interview.Session, out io.Writer, next func() (string, bool)) bool {
	for {
		line, ok := next()
		if !ok {
			return false
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := respond(ctx, a, s, line)
		if err != nil {
			switch {
			case errors.Is(err, interview.ErrSessionClosed):
				return true
			case errors.Is(err, interview.ErrPersistenceFailure):
				fmt.Fprintln(out, warnColor("warning: "+err.Error()))
			default:
				fmt.Fprintln(out, warnColor(err.Error()))
			}
		}
		if r.Text != "" {
			fmt.Fprintf(out, "%s %s\n", assistantLabel("memoir>"), r.Text)
		}
		if r.Closed {
			return true
		}
	}
}

func greet(out io.Writer, s *interview.Session) {
	if len(s.Messages) > 1 {
		fmt.Fprintln(out, noteColor(fmt.Sprintf("Resuming session %s (%s, %d exchanges)", s.ID, s.Stage, s.Exchanges())))
	}
	fmt.Fprintf(out, "%s %s\n", assistantLabel("memoir>"), lastAssistant(s))
}

func finish(ctx context.Context, a *app, s *interview.Session, out io.Writer, closed bool) error {
	if closed {
		fmt.Fprintln(out, noteColor("Session "+s.ID+" closed."))
		return nil
	}
	if err := a.engine.Save(ctx, s); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", noteColor(fmt.Sprintf("Saved. Resume with: memoir interview --resume %s", s.ID)))
	return nil
}

// runScript answers from a file, one utterance per line. "-" reads stdin.
func runScript(ctx context.Context, a *app, s *interview.Session, out io.Writer) error {
	var in io.Reader = os.Stdin
	if scriptPath != "-" {
		f, err := os.Open(scriptPath) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	ui.Attach(a.bus, &lineUI{w: out}, s.ID, topicTotal(a))
	greet(out, s)

	sc := bufio.NewScanner(in)
	closed := converse(ctx, a, s, out, func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line := sc.Text()
		fmt.Fprintf(out, "%s %s\n", userLabel("you>"), line)
		return line, true
	})
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return finish(ctx, a, s, out, closed)
}

func runREPL(ctx context.Context, a *app, s *interview.Session, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          userLabel("you> "),
		HistoryFile:     filepath.Join(a.dir, "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "/exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start prompt: %w", err)
	}
	defer rl.Close()

	ui.Attach(a.bus, &lineUI{w: rl.Stdout()}, s.ID, topicTotal(a))
	greet(rl.Stdout(), s)
	fmt.Fprintln(rl.Stdout(), noteColor("Type /help for commands."))

	closed := converse(ctx, a, s, rl.Stdout(), func() (string, bool) {
		line, err := rl.Readline()
		if err != nil {
			// ^C or ^D leave the interview open for --resume.
			return "", false
		}
		return line, true
	})
	return finish(ctx, a, s, out, closed)
}

func runTUI(ctx context.Context, a *app, s *interview.Session) error {
	opening := []string{lastAssistant(s)}
	model := tui.NewModel("Memoir", s.Stage, topicTotal(a), opening, func(input string) (tui.Reply, error) {
		return respond(ctx, a, s, input)
	})
	model.Covered = len(s.TopicsCovered)

	program := tea.NewProgram(model, tea.WithAltScreen())
	ui.Attach(a.bus, tui.NewTUI(program), s.ID, topicTotal(a))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("interview screen failed: %w", err)
	}
	return finish(ctx, a, s, os.Stdout, s.Closed())
}

func init() {
	RootCmd.AddCommand(interviewCmd)
	interviewCmd.Flags().StringVarP(&resumeID, "resume", "r", "", "Resume a saved session by id")
	interviewCmd.Flags().StringVar(&scriptPath, "script", "", "Read answers from a file, one per line (- for stdin)")
	interviewCmd.Flags().BoolVarP(&useTUI, "tui", "i", false, "Start the full-screen interview")
}
