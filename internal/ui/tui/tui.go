package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// TUI forwards engine progress into a running program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStage(stage interview.Stage) {
	t.program.Send(StageMsg(stage))
}

func (t *TUI) UpdateProgress(covered, total int) {
	t.program.Send(ProgressMsg{Covered: covered, Total: total})
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575"))

	noteStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true)

	userStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5FAFFF"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000"))
)

// Reply is what the screen shows after one line of input.
type Reply struct {
	Text   string
	Closed bool
}

// RespondFunc handles one line of input. It runs off the UI goroutine.
type RespondFunc func(input string) (Reply, error)

type Model struct {
	Title      string
	Stage      interview.Stage
	Covered    int
	Total      int
	Transcript []string
	Input      textinput.Model
	Progress   progress.Model
	Viewport   viewport.Model
	Busy       bool
	Quitting   bool
	Ready      bool
	Width      int
	Height     int

	respond RespondFunc
}

type (
	LogMsg      string
	StageMsg    interview.Stage
	ProgressMsg struct{ Covered, Total int }

	replyMsg struct {
		reply Reply
		err   error
	}
)

// NewModel builds the interview screen. opening is the greeting already on
// the session.
func NewModel(title string, stage interview.Stage, total int, opening []string, respond RespondFunc) Model {
	in := textinput.New()
	in.Placeholder = "Type your answer, or /help"
	in.CharLimit = 4000
	in.Focus()

	return Model{
		Title:      title,
		Stage:      stage,
		Total:      total,
		Transcript: append([]string(nil), opening...),
		Input:      in,
		Progress:   progress.New(progress.WithDefaultGradient()),
		respond:    respond,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.Input.Value())
			if text == "" || m.Busy {
				return m, nil
			}
			m.Input.Reset()
			m.Busy = true
			m = m.appendLine(userStyle.Render("You: ") + text)
			respond := m.respond
			return m, func() tea.Msg {
				r, err := respond(text)
				return replyMsg{reply: r, err: err}
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-8)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - 8
		}
		m.Input.Width = msg.Width - 4
		m.Progress.Width = msg.Width - 4
		m.Viewport.SetContent(strings.Join(m.Transcript, "\n\n"))
		m.Viewport.GotoBottom()

	case replyMsg:
		m.Busy = false
		if msg.err != nil {
			m = m.appendLine(errorStyle.Render("! " + msg.err.Error()))
		}
		if msg.reply.Text != "" {
			m = m.appendLine(msg.reply.Text)
		}
		if msg.reply.Closed {
			m.Quitting = true
			return m, tea.Quit
		}

	case LogMsg:
		m = m.appendLine(noteStyle.Render(string(msg)))

	case StageMsg:
		m.Stage = interview.Stage(msg)

	case ProgressMsg:
		m.Covered = msg.Covered
		m.Total = msg.Total
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) appendLine(line string) Model {
	m.Transcript = append(m.Transcript, line)
	if m.Ready {
		m.Viewport.SetContent(strings.Join(m.Transcript, "\n\n"))
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) fraction() float64 {
	if m.Total <= 0 {
		return 0
	}
	return float64(m.Covered) / float64(m.Total)
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" Stage: %s ", m.Stage))
	topics := fmt.Sprintf(" Topics: %d/%d ", m.Covered, m.Total)
	if m.Busy {
		topics += noteStyle.Render(" thinking...")
	}

	view := fmt.Sprintf("%s%s%s\n\n%s\n\n%s\n%s",
		header, status, topics,
		m.Viewport.View(),
		m.Progress.ViewAs(m.fraction()),
		m.Input.View())

	if m.Quitting {
		return view + "\n  Goodbye.\n"
	}

	return view
}
