package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tatianab/seven-sects/internal/command"
	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
)

type sessionState int

const (
	stateInputSlot sessionState = iota
	stateLoading
	statePlaying
)

type model struct {
	state     sessionState
	engine    *engine.Engine
	exec      *command.Executor
	textInput textinput.Model
	viewport  viewport.Model
	reply     string
	draft     *command.Draft
	err       error
	width     int
	height    int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	logStyles = map[models.LogType]lipgloss.Style{
		models.LogMove:     gameStyle,
		models.LogConflict: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8787")),
		models.LogEvent:    lipgloss.NewStyle().Foreground(lipgloss.Color("#87D7FF")),
		models.LogSystem:   helpStyle,
	}
)

func NewModel(eng *engine.Engine, exec *command.Executor) model {
	ti := textinput.New()
	ti.Placeholder = "Save slot to load, or Enter for a new game..."
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 60

	return model{
		state:     stateInputSlot,
		engine:    eng,
		exec:      exec,
		textInput: ti,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

type commandDoneMsg struct {
	input string
	reply command.Reply
	err   error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state == stateLoading {
				return m, nil
			}
			input := strings.TrimSpace(m.textInput.Value())
			m.textInput.Reset()

			if m.state == stateInputSlot {
				m.textInput.Placeholder = "go N, pick A ok, commit, win mover, help..."
				line := "new"
				if input != "" {
					line = "load " + input
				}
				m.state = stateLoading
				return m, m.run(line)
			}
			if input == "" {
				return m, nil
			}
			m.state = stateLoading
			return m, m.run(input)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.7)
		m.viewport.Height = max(msg.Height-14, 5)
		m.refreshLog()

	case commandDoneMsg:
		m.state = statePlaying
		m.err = msg.err
		m.reply = userStyle.Render("> "+msg.input) + "\n" + msg.reply.Text
		m.draft = msg.reply.Draft
		if msg.reply.Quit {
			return m, tea.Quit
		}
		m.refreshLog()
		return m, nil
	}

	if m.state != stateLoading {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) refreshLog() {
	if m.viewport.Width == 0 {
		return
	}
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateInputSlot:
		s = fmt.Sprintf(
			"七派逐鹿 · Seven Sects\n\n%s\n\n%s",
			"Type a save slot to continue, or press Enter to start a new game:",
			m.textInput.View(),
		)

	case stateLoading, statePlaying:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderRoster(),
		)

		input := m.textInput.View()
		if m.state == stateLoading {
			input = helpStyle.Render("  Waiting on the storyteller...")
		}

		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.renderDesk(),
			"\n"+input,
			helpStyle.Render("Type help for commands. Esc quits."),
		)
	}

	return "\n" + s + "\n"
}

// renderRoster lists every sect in turn order, marking the active one.
func (m model) renderRoster() string {
	st := m.engine.State()

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("第%d日 · %s", st.Day, st.Weather)))
	b.WriteString("\n\n")
	for i, id := range st.TurnQueue {
		sect := st.Sects[id]
		line := fmt.Sprintf("%s %3.0f/%d %s", id.Name(), sect.Progress, models.Goal, sect.CurrentLocationName)
		if sect.SkipNextTurn {
			line += " [滞留]"
		}
		if i == st.ActiveIndex {
			line = activeStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		fmt.Fprintf(&b, "\n    武%d 智%d 财%d 望%d · %s\n",
			sect.Stats.Martial, sect.Stats.Strategy, sect.Stats.Wealth, sect.Stats.Prestige, sect.LastMoveDesc)
	}

	width := int(float64(m.width) * 0.28)
	return stateStyle.Width(width).Height(m.viewport.Height).Render(b.String())
}

// renderDesk shows the last reply, the pending interaction and the draft.
func (m model) renderDesk() string {
	var parts []string
	if m.reply != "" {
		parts = append(parts, m.reply)
	}
	if m.err != nil {
		parts = append(parts, errStyle.Render("Error: "+m.err.Error()))
	}
	if in, ok := m.engine.Pending(); ok {
		parts = append(parts, titleStyle.Render("PENDING")+"\n"+command.Describe(in))
		if m.draft != nil && m.draft.Interaction == in.ID {
			parts = append(parts, titleStyle.Render("DRAFT")+"\n"+command.DescribeDraft(m.draft.Adj))
		}
	}
	return gameStyle.Width(m.width).Render(strings.Join(parts, "\n\n"))
}

func (m model) renderLog() string {
	st := m.engine.State()
	var b strings.Builder
	for _, e := range st.Log {
		style, ok := logStyles[e.Type]
		if !ok {
			style = gameStyle
		}
		b.WriteString(style.Width(m.viewport.Width).Render(fmt.Sprintf("[%d] %s", e.Day, e.Content)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) run(line string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.exec.Run(context.Background(), line)
		return commandDoneMsg{input: line, reply: reply, err: err}
	}
}

func Run(eng *engine.Engine, exec *command.Executor) error {
	p := tea.NewProgram(NewModel(eng, exec), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
